package ai

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// BearerAuthTransport implements http.RoundTripper and adds a bearer token
// to outgoing requests, logging both sides at debug level.
type BearerAuthTransport struct {
	Token     string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBearerAuthTransport creates a transport with the given token and
// optional underlying transport. If transport is nil, http.DefaultTransport
// is used.
func NewBearerAuthTransport(token string, transport http.RoundTripper, logger *slog.Logger) *BearerAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BearerAuthTransport{
		Token:     token,
		Transport: transport,
		Logger:    logger,
	}
}

// RoundTrip implements the http.RoundTripper interface.
func (t *BearerAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBody := ""
	if req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err == nil {
			reqBody = string(bodyBytes)
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
	}

	t.Logger.Debug("outgoing request",
		"method", req.Method,
		"url", req.URL.String(),
		"body_bytes", len(reqBody))

	if t.Token == "" {
		return nil, errors.New("bearer token cannot be empty")
	}
	if t.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	req.Header.Set("Authorization", "Bearer "+t.Token)
	resp, err := t.Transport.RoundTrip(req)

	if err == nil && resp != nil {
		t.Logger.Debug("incoming response", "status", resp.Status)
	}

	return resp, err
}
