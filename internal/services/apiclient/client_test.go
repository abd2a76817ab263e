package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trash2cash/chatsync/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"
	cfg.Timeout = 2 * time.Second
	cfg.RateLimit = 0
	client, err := NewClient(cfg, &services.NoOpLogger{})
	require.NoError(t, err)
	return client
}

func TestClientSendsBearerAndDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/send/", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 9, "content": "hello"}`))
	})

	var out struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	}
	err := client.Do(context.Background(), "abc", Request{
		Operation: "chat.send",
		Method:    http.MethodPost,
		Path:      "/chat/send/",
		Body:      map[string]interface{}{"chatroom_id": 1, "content": "hello"},
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), out.ID)
}

func TestClientOmitsAuthorizationWithoutToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.Do(context.Background(), "", Request{Operation: "ping", Method: http.MethodGet, Path: "health"})
	assert.NoError(t, err)
}

func TestClientClassifiesStatuses(t *testing.T) {
	status := http.StatusUnauthorized
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"error": "chat room not found"}`))
	})
	req := Request{Operation: "chat.messages", Method: http.MethodGet, Path: "/chat/messages/1/"}

	err := client.Do(context.Background(), "abc", req)
	assert.True(t, IsAuthRequired(err))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	status = http.StatusNotFound
	err = client.Do(context.Background(), "abc", req)
	assert.True(t, IsNetwork(err))
	assert.False(t, IsAuthRequired(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "chat room not found", apiErr.Message)
	assert.Equal(t, "chat.messages", apiErr.Operation)
}

func TestClientTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	srv.Close()

	client, err := NewClient(cfg, &services.NoOpLogger{})
	require.NoError(t, err)

	err = client.Do(context.Background(), "", Request{Operation: "chat.rooms", Method: http.MethodGet, Path: "/chat/my-chatrooms/"})
	assert.True(t, IsNetwork(err))
	assert.Zero(t, StatusCode(err))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.BaseURL = "not a url"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RateBurst = 0
	assert.Error(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8080/api/token/", DefaultConfig().endpoint("/token/"))
}

func TestErrorSentinels(t *testing.T) {
	err := NewValidationError("chat.send", "message is empty")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNetwork))
	assert.Contains(t, err.Error(), "VALIDATION")

	wrapped := NewAuthRequiredError("tokens.refresh", "no refresh token", nil)
	assert.True(t, IsAuthRequired(wrapped))
}
