// memory based authenticator for testing and single-node deployments
package memory

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"sync"

	"github.com/scholaros/scholaros/server/auth"
)

// Store implements auth.Authenticator with an in-memory account table.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]account // key: username
	tokens   map[string]string  // token digest hex -> username
}

type account struct {
	passwordDigest [32]byte
	displayName    string
}

// New creates an empty in-memory authenticator.
func New() *Store {
	return &Store{
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
	}
}

// AddUser registers a username/password account.
func (s *Store) AddUser(username, password, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = account{
		passwordDigest: sha256.Sum256([]byte(password)),
		displayName:    displayName,
	}
}

// AddToken registers an API token for an existing username.
func (s *Store) AddToken(token, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	digest := sha256.Sum256([]byte(token))
	s.tokens[string(digest[:])] = username
}

func (s *Store) Authenticate(_ context.Context, creds auth.Credentials) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[creds.Username]
	if !ok {
		return nil, &auth.Error{Type: auth.ErrInvalidCredentials, Message: "unknown user"}
	}
	digest := sha256.Sum256([]byte(creds.Password))
	if subtle.ConstantTimeCompare(digest[:], acct.passwordDigest[:]) != 1 {
		return nil, &auth.Error{Type: auth.ErrInvalidCredentials, Message: "wrong password"}
	}
	return &auth.Principal{ID: creds.Username, DisplayName: acct.displayName}, nil
}

func (s *Store) AuthenticateToken(_ context.Context, token string) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	digest := sha256.Sum256([]byte(token))
	username, ok := s.tokens[string(digest[:])]
	if !ok {
		return nil, &auth.Error{Type: auth.ErrUnauthorized, Message: "unknown token"}
	}
	acct := s.accounts[username]
	return &auth.Principal{ID: username, DisplayName: acct.displayName}, nil
}
