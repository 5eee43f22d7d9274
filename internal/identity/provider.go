package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"feedsync/internal/encryption"
	"feedsync/internal/feed"
	"feedsync/internal/model"
)

// ErrExpired is reported when the stored token is past its expiry.
var ErrExpired = errors.New("session expired, sign in again")

// Provider is a feed.IdentityProvider backed by a stored bearer token. The
// token is issued elsewhere and handed to SignIn; the provider only keeps it
// and reads its claims.
type Provider struct {
	tokens tokenStore
	clock  feed.Clock
	logger feed.Logger

	mu   sync.Mutex
	subs map[int]func(*model.User, error)
	next int
}

var _ feed.IdentityProvider = (*Provider)(nil)

// NewFileProvider creates a Provider that keeps the token sealed at path.
func NewFileProvider(path string, sealer encryption.Sealer, clock feed.Clock, logger feed.Logger) *Provider {
	return newProvider(&fileTokens{path: path, sealer: sealer}, clock, logger)
}

// NewMemoryProvider creates a Provider that forgets the token on exit.
func NewMemoryProvider(clock feed.Clock, logger feed.Logger) *Provider {
	return newProvider(&memoryTokens{}, clock, logger)
}

func newProvider(tokens tokenStore, clock feed.Clock, logger feed.Logger) *Provider {
	return &Provider{
		tokens: tokens,
		clock:  clock,
		logger: logger,
		subs:   make(map[int]func(*model.User, error)),
	}
}

// Subscribe registers fn and immediately reports the current state to it.
func (p *Provider) Subscribe(fn func(user *model.User, err error)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	p.mu.Unlock()

	fn(p.current())

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// SignIn stores token and reports the user it belongs to.
func (p *Provider) SignIn(ctx context.Context, token string) (*model.User, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	if claims.Expired(p.clock.Now()) {
		return nil, fmt.Errorf("signing in: %w", ErrExpired)
	}
	if err := p.tokens.save(token); err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	user := &model.User{ID: claims.UserID, Email: claims.Email}
	p.logger.Info("signed in", "user", user.ID)
	p.emit(user, nil)
	return user, nil
}

// SignOut forgets the stored token.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.tokens.clear(); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	p.logger.Info("signed out")
	p.emit(nil, nil)
	return nil
}

// Token returns the stored token if it still belongs to user and has not
// expired.
func (p *Provider) Token(ctx context.Context, user model.User) (string, error) {
	token, claims, err := p.load()
	if err != nil {
		return "", err
	}
	if claims.UserID != user.ID {
		return "", fmt.Errorf("stored token belongs to %s, not %s", claims.UserID, user.ID)
	}
	return token, nil
}

func (p *Provider) load() (string, Claims, error) {
	token, err := p.tokens.load()
	if err != nil {
		return "", Claims{}, err
	}
	claims, err := ParseClaims(token)
	if err != nil {
		return "", Claims{}, err
	}
	if claims.Expired(p.clock.Now()) {
		return "", claims, ErrExpired
	}
	return token, claims, nil
}

// current resolves the stored token into the callback arguments.
func (p *Provider) current() (*model.User, error) {
	_, claims, err := p.load()
	switch {
	case errors.Is(err, errNoToken):
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return &model.User{ID: claims.UserID, Email: claims.Email}, nil
	}
}

func (p *Provider) emit(user *model.User, err error) {
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
