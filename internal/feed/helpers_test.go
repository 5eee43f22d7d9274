package feed_test

import (
	"testing"

	"feedsync/internal/blob"
	"feedsync/internal/feed"
	"feedsync/internal/model"
	"feedsync/internal/store"
	"feedsync/internal/testutil"
)

// pngData is enough of a PNG for content sniffing.
var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type harness struct {
	store     *store.Store
	transport *testutil.FakeTransport
	provider  *testutil.StubProvider
	session   *feed.Session
	blobs     *blob.MemoryStore
	journal   *testutil.RecordingJournal
	deps      feed.Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	session, provider := testutil.NewSignedInSession("u1", "alice@example.com")
	h := &harness{
		store:     store.New(),
		transport: testutil.NewFakeTransport(),
		provider:  provider,
		session:   session,
		blobs:     blob.NewMemoryStore(),
		journal:   testutil.NewRecordingJournal(),
	}
	h.deps = feed.Deps{
		Session:   h.session,
		Store:     h.store,
		Transport: h.transport,
		Blobs:     h.blobs,
		Journal:   h.journal,
		Clock:     testutil.FixedClock(),
		IDs:       testutil.NewStubIDGenerator(),
		Logger:    feed.NewNopLogger(),
	}
	return h
}

func (h *harness) engine() *feed.Engine {
	return feed.NewEngine(h.deps)
}

func (h *harness) service() *feed.Service {
	return feed.NewService(h.deps)
}

func post(id string, liked bool, count int) model.Post {
	return model.Post{ID: id, AuthorName: "bob", Content: "post " + id, LikedByMe: liked, LikeCount: count}
}

// seedPost puts p in the timeline and in its own thread.
func (h *harness) seedPost(p model.Post) {
	h.store.ReplaceCollection(feed.CollectionTimeline, []model.Entity{p})
	h.store.ReplaceCollection(feed.ThreadCollection(p.ID), []model.Entity{p, model.Post{ID: "r1", ParentID: p.ID}})
}

// postIn returns the post with id from the named collection.
func (h *harness) postIn(t *testing.T, collection, id string) model.Post {
	t.Helper()
	for _, p := range feed.Items[model.Post](h.store, collection) {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("post %s not in %s", id, collection)
	return model.Post{}
}
