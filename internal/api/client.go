package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"feedsync/internal/feed"
)

const (
	defaultHTTPConnectTimeout = 5 * time.Second
	defaultHTTPTLSTimeout     = 5 * time.Second

	// maxErrorText bounds how much of a non-JSON error body ends up in a message.
	maxErrorText = 512
)

// Client is the feed.Transport for the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  feed.Logger
}

var _ feed.Transport = (*Client)(nil)

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger feed.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    defaultClient(timeout),
		logger:  logger,
	}
}

// NewClientWithHTTP creates a Client using hc, e.g. an httptest server client.
func NewClientWithHTTP(baseURL string, hc *http.Client, logger feed.Logger) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, logger: logger}
}

func defaultClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHTTPConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHTTPTLSTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Do sends req and returns the response body of a 2xx answer.
func (c *Client) Do(ctx context.Context, req *feed.Request) ([]byte, error) {
	op := req.Method + " " + req.Path

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	res, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("request failed", "op", op, "error", err)
		return nil, feed.NetworkFailure(op, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, feed.NetworkFailure(op, fmt.Errorf("reading response: %w", err))
	}
	c.logger.Debug("request done", "op", op, "status", res.StatusCode, "duration", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, feed.ServerError(op, res.StatusCode, errorMessage(res.StatusCode, data))
	}
	return data, nil
}

// errorMessage extracts the message of an error response. JSON bodies are
// searched for message, detail and error in that order; anything else falls
// back to a templated message that quotes the raw text.
func errorMessage(status int, body []byte) string {
	var fields struct {
		Message any `json:"message"`
		Detail  any `json:"detail"`
		Error   any `json:"error"`
	}
	if json.Unmarshal(body, &fields) == nil {
		for _, v := range []any{fields.Message, fields.Detail, fields.Error} {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorText {
		text = text[:maxErrorText] + "..."
	}
	if text == "" {
		return fmt.Sprintf("request failed with status %d", status)
	}
	return fmt.Sprintf("request failed with status %d: %s", status, text)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
