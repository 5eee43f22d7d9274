package feed

import "feedsync/internal/model"

// Collection names used by the views.
const (
	CollectionTimeline      = "timeline"
	CollectionNotifications = "notifications"
	CollectionProfile       = "profile"
)

// ThreadCollection names the collection holding a post followed by its replies.
func ThreadCollection(postID string) string {
	return "thread/" + postID
}

// StateStore holds the named, ordered collections the views render.
// Replace, PatchByID and PatchByIDAcrossAll are the only mutations.
type StateStore interface {
	// ReplaceCollection swaps in items as the full content of name.
	ReplaceCollection(name string, items []model.Entity)

	// PatchByID patches the entity with the given id in one collection.
	// Returns false if the collection or the id is absent.
	PatchByID(name, id string, p model.Patch) bool

	// PatchByIDAcrossAll patches every occurrence of id in every collection
	// as one atomic step and returns the number of entities patched.
	PatchByIDAcrossAll(id string, p model.Patch) int

	// Collection returns a copy of the named collection.
	Collection(name string) []model.Entity

	// Find returns the first occurrence of id in any collection.
	Find(id string) (model.Entity, bool)

	// Names lists the collections currently held.
	Names() []string

	// Subscribe registers fn to be called with the collection name after every
	// change. The returned function removes the subscription.
	Subscribe(fn func(name string)) (unsubscribe func())
}

// Items returns the entities of the named collection that are of type T.
func Items[T model.Entity](s StateStore, name string) []T {
	entities := s.Collection(name)
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func entities[T model.Entity](items []T) []model.Entity {
	out := make([]model.Entity, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// FindAs returns the first entity with the given id that is of type T.
func FindAs[T model.Entity](s StateStore, id string) (T, bool) {
	if e, ok := s.Find(id); ok {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	for _, name := range s.Names() {
		for _, e := range s.Collection(name) {
			if v, ok := e.(T); ok && e.EntityID() == id {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}
