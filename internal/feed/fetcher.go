package feed

import (
	"context"

	"feedsync/internal/model"
)

// Fetcher performs authenticated reads against the backend.
type Fetcher struct {
	provider  IdentityProvider
	transport Transport
	logger    Logger
}

// NewFetcher creates a Fetcher. Tokens come from provider on every call.
func NewFetcher(provider IdentityProvider, transport Transport, logger Logger) *Fetcher {
	return &Fetcher{
		provider:  provider,
		transport: transport,
		logger:    logger,
	}
}

// Fetch reads r on behalf of identity. Without a present identity it fails with
// NotAuthenticated before touching the network. A fresh token is requested for
// every call so rotated tokens are never reused.
func Fetch[T any](ctx context.Context, f *Fetcher, identity model.Identity, r Resource[T]) (T, error) {
	var zero T
	op := "fetch " + r.Name

	if !identity.IsPresent() {
		return zero, NotAuthenticated(op)
	}

	token, err := f.provider.Token(ctx, identity.User)
	if err != nil {
		f.logger.Warn("token unavailable", "resource", r.Name, "error", err)
		return zero, &Error{Kind: KindNotAuthenticated, Op: op, Message: "token unavailable", Err: err}
	}

	body, err := f.transport.Do(ctx, r.Request(token))
	if err != nil {
		f.logger.Warn("fetch failed", "resource", r.Name, "error", err)
		return zero, withOp(op, err)
	}

	v, err := r.Decode(body)
	if err != nil {
		f.logger.Warn("unexpected response shape", "resource", r.Name, "error", err)
		return zero, DataShape(op, err)
	}

	f.logger.Debug("fetched", "resource", r.Name, "path", r.Path)
	return v, nil
}
