package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const (
	// PrincipalContextKey is the context key for the authenticated principal
	PrincipalContextKey contextKey = "principal"
)

// GetPrincipalFromContext retrieves the authenticated principal from the context
func GetPrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*Principal); ok {
		return p
	}
	return nil
}

// Middleware creates HTTP middleware that enforces authentication. Both
// bearer tokens and basic credentials are accepted; the health endpoint is
// left open for probes.
func Middleware(authenticator Authenticator, realm string) func(http.Handler) http.Handler {
	if realm == "" {
		realm = "ScholarOS"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				requestAuth(w, realm)
				return
			}

			principal, err := authenticate(r.Context(), authenticator, authHeader)
			if err != nil {
				if aerr, ok := err.(*Error); ok && aerr.Type == ErrForbidden {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				requestAuth(w, realm)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, authenticator Authenticator, header string) (*Principal, error) {
	switch {
	case strings.HasPrefix(header, "Bearer "):
		return authenticator.AuthenticateToken(ctx, strings.TrimPrefix(header, "Bearer "))
	case strings.HasPrefix(header, "Basic "):
		creds, err := parseBasicAuth(header)
		if err != nil {
			return nil, err
		}
		return authenticator.Authenticate(ctx, creds)
	default:
		return nil, &Error{Type: ErrUnauthorized, Message: "unsupported authorization scheme"}
	}
}

func parseBasicAuth(header string) (Credentials, error) {
	encoded := strings.TrimPrefix(header, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Credentials{}, &Error{Type: ErrInvalidCredentials, Message: "malformed basic auth", Err: err}
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return Credentials{}, &Error{Type: ErrInvalidCredentials, Message: "malformed basic auth"}
	}
	return Credentials{Username: username, Password: password}, nil
}

func requestAuth(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
