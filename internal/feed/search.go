package feed

import (
	"context"
	"strings"
	"sync"
)

// Search separates what the user is typing from the query the timeline is
// filtered by. Only Submit changes the committed query.
type Search struct {
	mu        sync.Mutex
	draft     string
	committed string
	onCommit  func(ctx context.Context, query string) error
}

// NewSearch creates a Search with an empty draft and committed query.
func NewSearch() *Search {
	return &Search{}
}

// OnCommit sets the function run when the committed query changes.
func (s *Search) OnCommit(fn func(ctx context.Context, query string) error) {
	s.mu.Lock()
	s.onCommit = fn
	s.mu.Unlock()
}

// Type replaces the draft. It never triggers a fetch.
func (s *Search) Type(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Draft returns the text typed so far.
func (s *Search) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Committed returns the query the timeline is filtered by. Empty means
// unfiltered.
func (s *Search) Committed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Submit commits the trimmed draft. The commit callback runs only when the
// committed query actually changes; changed reports whether it did.
func (s *Search) Submit(ctx context.Context) (changed bool, err error) {
	s.mu.Lock()
	next := strings.TrimSpace(s.draft)
	if next == s.committed {
		s.mu.Unlock()
		return false, nil
	}
	s.committed = next
	fn := s.onCommit
	s.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, next); err != nil {
			return true, err
		}
	}
	return true, nil
}
