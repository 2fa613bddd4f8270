package ark

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reply-gateway/internal/domain"
)

type fakeKey struct {
	val   string
	err   error
	calls int
}

func (f *fakeKey) Value(_ context.Context) (string, error) {
	f.calls++
	return f.val, f.err
}

// ---------------------------------------------------------------------------
// completionsURL helper
// ---------------------------------------------------------------------------

func TestCompletionsURL(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
	}{
		{"https://ark.cn-beijing.volces.com/api/v3/chat/completions", DefaultEndpoint},
		{"https://ark.cn-beijing.volces.com/api/v3", DefaultEndpoint},
		{"https://ark.cn-beijing.volces.com/api/v3/", DefaultEndpoint},
		{"http://localhost:8080/chat/completions/", "http://localhost:8080/chat/completions"},
		{"", DefaultEndpoint},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, completionsURL(tc.endpoint), "endpoint=%q", tc.endpoint)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilKey(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(&fakeKey{val: "k"})
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoint, c.endpoint)
	require.NotNil(t, c.httpClient)
}

// ---------------------------------------------------------------------------
// Client.Chat
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeKey{val: "ark-test"},
		WithEndpoint(srv.URL+"/api/v3"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer ark-test", r.Header.Get("Authorization"))

		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal(reqBody, &got))
		require.Equal(t, "doubao-test", got["model"])
		require.InDelta(t, 0.7, got["temperature"], 1e-9)
		require.EqualValues(t, 800, got["max_tokens"])
		require.Equal(t, map[string]any{"type": "disabled"}, got["thinking"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1670000000,
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "你好，我是小凼" }
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), "doubao-test", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "你好，我是小凼", resp)
}

func TestClient_Chat_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), "doubao-test", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")
	require.Contains(t, err.Error(), "400")
	require.NotErrorIs(t, err, domain.ErrMalformedCompletion)
}

func TestClient_Chat_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), "doubao-test", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 429, statusErr.HTTPStatusCode())
}

func TestClient_Chat_ProtocolErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `not-a-json`, "decode response"},
		{"no choices", `{"choices":[]}`, "no choices"},
		{"empty content", `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`, "empty message content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(200)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).Chat(context.Background(), "doubao-test", nil)
			require.ErrorIs(t, err, domain.ErrMalformedCompletion)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestClient_Chat_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Chat(ctx, "doubao-test", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestClient_Chat_NetworkError(t *testing.T) {
	c, err := NewClient(&fakeKey{val: "k"}, WithEndpoint("http://127.0.0.1:1"))
	require.NoError(t, err)
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Chat(context.Background(), "doubao-test", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Chat_EmptyModel(t *testing.T) {
	c, err := NewClient(&fakeKey{val: "k"})
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClient_Chat_KeyError(t *testing.T) {
	key := &fakeKey{err: errors.New("ssm unavailable")}
	c, err := NewClient(key)
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "doubao-test", nil)
	require.ErrorContains(t, err, "ssm unavailable")
	require.Equal(t, 1, key.calls)
}
