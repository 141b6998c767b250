package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_Success(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  All on track.  "}},
			},
		})
	})

	c := NewClient(srv.URL, "sk-test", "test-model", nil)
	out, err := c.Complete(context.Background(), "be brief", "status?")
	require.NoError(t, err)
	assert.Equal(t, "All on track.", out)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
}

func TestComplete_APIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited"},
		})
	})

	c := NewClient(srv.URL, "sk-test", "", nil)
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestComplete_NoChoices(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	c := NewClient(srv.URL, "sk-test", "", nil)
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestComplete_Unconfigured(t *testing.T) {
	c := NewClient("", "", "", nil)
	assert.False(t, c.IsConfigured())
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
}

func TestIsConfigured_RequiresKey(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the server")
	})

	// An endpoint without a key is unconfigured; Complete fails before any
	// request goes out.
	c := NewClient(srv.URL, "", "", nil)
	assert.False(t, c.IsConfigured())
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSummarizeTasks_EmptyInput(t *testing.T) {
	c := NewClient("http://unused", "sk", "", nil)
	out, err := c.SummarizeTasks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
