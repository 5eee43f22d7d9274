package feed

import (
	"context"
	"sync"

	"feedsync/internal/model"
)

// Session is the process-wide identity context. It subscribes to the identity
// provider once (Init) and fans transitions out to the components that were
// handed the Session, so nothing else subscribes to the provider directly.
type Session struct {
	mu          sync.Mutex
	current     model.Identity
	provider    IdentityProvider
	unsubscribe func()
	subs        map[int]func(prev, next model.Identity)
	nextSub     int
	logger      Logger
}

// NewSession creates a Session whose identity is Unknown until Init is called
// and the provider answers.
func NewSession(logger Logger) *Session {
	return &Session{
		current: model.UnknownIdentity(),
		subs:    make(map[int]func(prev, next model.Identity)),
		logger:  logger,
	}
}

// Init subscribes to provider. Calling Init again replaces the previous
// subscription.
func (s *Session) Init(provider IdentityProvider) {
	s.mu.Lock()
	old := s.unsubscribe
	s.provider = provider
	s.mu.Unlock()

	if old != nil {
		old()
	}

	unsub := provider.Subscribe(s.handle)

	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()
}

// Teardown removes the provider subscription. The current identity is kept.
func (s *Session) Teardown() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Current returns the identity as last reported by the provider.
func (s *Session) Current() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Provider returns the provider passed to Init, or nil.
func (s *Session) Provider() IdentityProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// Subscribe registers fn for identity transitions. fn is called once per
// actual change, never for a repeated identical report.
func (s *Session) Subscribe(fn func(prev, next model.Identity)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SignOut asks the provider to end the session. The transition to Absent
// arrives through the provider callback.
func (s *Session) SignOut(ctx context.Context) error {
	p := s.Provider()
	if p == nil {
		return NotAuthenticated("sign out")
	}
	return p.SignOut(ctx)
}

// handle is the provider callback.
func (s *Session) handle(user *model.User, err error) {
	next := model.AbsentIdentity()
	switch {
	case err != nil:
		s.logger.Warn("identity resolution failed", "error", err)
	case user != nil:
		next = model.PresentIdentity(user.ID, user.Email)
	}

	s.mu.Lock()
	prev := s.current
	if prev.Equal(next) {
		s.mu.Unlock()
		return
	}
	s.current = next
	fns := make([]func(prev, next model.Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.logger.Info("identity changed", "from", prev.String(), "to", next.String())
	for _, fn := range fns {
		fn(prev, next)
	}
}
