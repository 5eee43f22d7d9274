package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"feedsync/internal/feed"
)

// Response is a canned answer for FakeTransport. A non-nil Err is returned
// as is; otherwise Status decides between Body and a server error.
type Response struct {
	Status int
	Body   string
	Err    error

	// Gate, when non-nil, blocks the call until it is closed.
	Gate chan struct{}
}

// FakeTransport answers requests from a route table keyed by "METHOD path"
// and records every request it receives.
type FakeTransport struct {
	mu       sync.Mutex
	routes   map[string][]Response
	requests []feed.Request
}

var _ feed.Transport = (*FakeTransport)(nil)

// NewFakeTransport creates a FakeTransport with no routes.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{routes: make(map[string][]Response)}
}

// On queues responses for a route. When more than one is queued they are used
// in order and the last one repeats.
func (f *FakeTransport) On(method, path string, responses ...Response) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.routes[key] = append(f.routes[key], responses...)
	return f
}

// OK queues a 200 response with body for a route.
func (f *FakeTransport) OK(method, path, body string) *FakeTransport {
	return f.On(method, path, Response{Status: 200, Body: body})
}

// Fail queues a server error for a route.
func (f *FakeTransport) Fail(method, path string, status int, message string) *FakeTransport {
	body, _ := json.Marshal(map[string]string{"message": message})
	return f.On(method, path, Response{Status: status, Body: string(body)})
}

func (f *FakeTransport) Do(ctx context.Context, req *feed.Request) ([]byte, error) {
	key := req.Method + " " + req.Path

	f.mu.Lock()
	f.requests = append(f.requests, *req)
	queue := f.routes[key]
	var res Response
	found := len(queue) > 0
	if found {
		res = queue[0]
		if len(queue) > 1 {
			f.routes[key] = queue[1:]
		}
	}
	f.mu.Unlock()

	if !found {
		return nil, feed.ServerError(key, 404, fmt.Sprintf("no route for %s", key))
	}
	if res.Gate != nil {
		select {
		case <-res.Gate:
		case <-ctx.Done():
			return nil, feed.NetworkFailure(key, ctx.Err())
		}
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Status < 200 || res.Status > 299 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal([]byte(res.Body), &body)
		return nil, feed.ServerError(key, res.Status, body.Message)
	}
	return []byte(res.Body), nil
}

// Requests returns the requests received so far.
func (f *FakeTransport) Requests() []feed.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]feed.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count returns how many requests were made to a route.
func (f *FakeTransport) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}
