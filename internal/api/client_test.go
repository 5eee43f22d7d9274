package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/feed"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithHTTP(srv.URL, srv.Client(), feed.NewNopLogger())
}

func TestClient_Do_SendsRequest(t *testing.T) {
	var got struct {
		method, path, query, auth, contentType string
		body                                   map[string]string
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.body)
		w.Write([]byte(`{"ok":true}`))
	})

	body, err := c.Do(context.Background(), &feed.Request{
		Method: http.MethodPost,
		Path:   "/likes",
		Query:  url.Values{"q": []string{"go lang"}},
		Token:  "tok",
		Body:   map[string]string{"post_id": "p1"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/likes", got.path)
	assert.Equal(t, "q=go+lang", got.query)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, map[string]string{"post_id": "p1"}, got.body)
}

func TestClient_Do_ServerErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{name: "message field", status: 400, body: `{"message":"bad input","detail":"ignored"}`, wantMessage: "bad input"},
		{name: "detail field", status: 409, body: `{"detail":"already liked"}`, wantMessage: "already liked"},
		{name: "error field", status: 401, body: `{"error":"invalid token"}`, wantMessage: "invalid token"},
		{name: "structured detail", status: 422, body: `{"detail":[{"loc":"content"}]}`, wantMessage: `[{"loc":"content"}]`},
		{name: "plain text", status: 500, body: "upstream exploded", wantMessage: "request failed with status 500: upstream exploded"},
		{name: "empty body", status: 502, body: "", wantMessage: "request failed with status 502"},
		{name: "json without known fields", status: 503, body: `{"code":7}`, wantMessage: `request failed with status 503: {"code":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Do(context.Background(), &feed.Request{Method: http.MethodGet, Path: "/post"})
			require.Error(t, err)
			assert.ErrorIs(t, err, feed.ErrServer)

			var fe *feed.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.status, fe.Status)
			assert.Equal(t, tt.wantMessage, fe.Message)
		})
	}
}

func TestClient_Do_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClientWithHTTP(srv.URL, srv.Client(), feed.NewNopLogger())
	srv.Close()

	_, err := c.Do(context.Background(), &feed.Request{Method: http.MethodGet, Path: "/post"})
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrNetwork)
}

func TestNewClient_TrimsBaseURL(t *testing.T) {
	c := NewClient("https://api.example.com/", 0, feed.NewNopLogger())
	assert.Equal(t, "https://api.example.com", c.baseURL)
}
