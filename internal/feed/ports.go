package feed

import (
	"context"
	"net/url"

	"feedsync/internal/model"
)

// IdentityProvider is the boundary to the external sign-in service.
type IdentityProvider interface {
	// Subscribe registers fn for sign-in/sign-out transitions and returns a
	// function that removes it. fn receives nil when nobody is signed in, and a
	// non-nil err when the provider could not resolve the session.
	Subscribe(fn func(user *model.User, err error)) (unsubscribe func())

	// SignOut ends the current session.
	SignOut(ctx context.Context) error

	// Token returns a bearer token for user. It may fail; callers do not retry.
	Token(ctx context.Context, user model.User) (string, error)
}

// BlobStore is the boundary to the external image store.
type BlobStore interface {
	// Upload stores data under path and returns a reference to it.
	Upload(ctx context.Context, path string, data []byte) (string, error)

	// DownloadURL returns a URL from which the referenced object can be read.
	DownloadURL(ctx context.Context, ref string) (string, error)
}

// Request is one call to the backend REST API.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Token  string
	Body   any // encoded as JSON when non-nil
}

// Transport performs backend requests. Implementations return the response
// body on 2xx, a *Error of KindServer on any other status, and a *Error of
// KindNetwork when no response was received.
type Transport interface {
	Do(ctx context.Context, req *Request) ([]byte, error)
}

// Journal records the outcome of settled mutations.
type Journal interface {
	Record(ctx context.Context, rec *model.MutationRecord) error
	Recent(ctx context.Context, limit int) ([]*model.MutationRecord, error)
	Close() error
}

// NopJournal discards every record.
type NopJournal struct{}

func (NopJournal) Record(context.Context, *model.MutationRecord) error { return nil }
func (NopJournal) Recent(context.Context, int) ([]*model.MutationRecord, error) {
	return nil, nil
}
func (NopJournal) Close() error { return nil }
