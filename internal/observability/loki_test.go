package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLokiPush(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []lokiPushRequest
		users    []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		user, _, _ := r.BasicAuth()

		var req lokiPushRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		requests = append(requests, req)
		users = append(users, user)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := InitLoki(LokiConfig{URL: srv.URL, User: "42", APIKey: "k", Instance: "test-1"}, zerolog.Nop())
	t.Cleanup(func() { InitLoki(LokiConfig{}, zerolog.Nop()) })

	LogToolCall("req-1", "github", "close_issue", 12, "error", "Failed to close issue: 404 - Not Found")
	c.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 1)
	assert.Equal(t, "42", users[0])

	stream := requests[0].Streams[0]
	assert.Equal(t, map[string]string{
		"app":      "issuebridge",
		"instance": "test-1",
		"module":   "github",
		"status":   "error",
		"level":    "error",
	}, stream.Stream)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(stream.Values[0][1]), &data))
	assert.Equal(t, "close_issue", data["tool"])
	assert.Equal(t, "Failed to close issue: 404 - Not Found", data["error"])
}

func TestLokiDisabled(t *testing.T) {
	c := InitLoki(LokiConfig{URL: "http://127.0.0.1:1"}, zerolog.Nop())
	assert.False(t, c.enabled)

	// Must not block or panic without credentials
	LogSecurityEvent("req-1", "missing_bearer_token", map[string]any{"remote_addr": "127.0.0.1"})
	c.Flush()

	var nilClient *LokiClient
	nilClient.Flush()
}
