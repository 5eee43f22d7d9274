package testutil

import (
	"context"
	"errors"
	"sync"

	"feedsync/internal/feed"
	"feedsync/internal/model"
)

// StubProvider is a feed.IdentityProvider driven by the test.
type StubProvider struct {
	mu       sync.Mutex
	subs     map[int]func(*model.User, error)
	next     int
	tokenErr error
	tokens   int
	signOuts int
}

var _ feed.IdentityProvider = (*StubProvider)(nil)

func NewStubProvider() *StubProvider {
	return &StubProvider{subs: make(map[int]func(*model.User, error))}
}

func (p *StubProvider) Subscribe(fn func(*model.User, error)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Emit reports user (nil for signed out) and err to every subscriber.
func (p *StubProvider) Emit(user *model.User, err error) {
	p.mu.Lock()
	fns := make([]func(*model.User, error), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(user, err)
	}
}

// SignIn reports a signed-in user.
func (p *StubProvider) SignIn(id, email string) {
	p.Emit(&model.User{ID: id, Email: email}, nil)
}

func (p *StubProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	p.Emit(nil, nil)
	return nil
}

// FailTokens makes every Token call fail with err.
func (p *StubProvider) FailTokens(err error) {
	p.mu.Lock()
	p.tokenErr = err
	p.mu.Unlock()
}

func (p *StubProvider) Token(_ context.Context, user model.User) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	if user.ID == "" {
		return "", errors.New("no user")
	}
	p.tokens++
	return "token-" + user.ID, nil
}

// TokenCalls returns how many tokens were issued.
func (p *StubProvider) TokenCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens
}

// NewSignedInSession returns a Session initialised with a StubProvider that
// has already signed in user uid.
func NewSignedInSession(uid, email string) (*feed.Session, *StubProvider) {
	p := NewStubProvider()
	s := feed.NewSession(feed.NewNopLogger())
	s.Init(p)
	p.SignIn(uid, email)
	return s, p
}
