package store

import (
	"sort"
	"sync"

	"feedsync/internal/feed"
	"feedsync/internal/model"
)

// Store is an in-memory feed.StateStore. All collections share one lock, so a
// patch across collections is observed either fully applied or not at all.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]model.Entity

	subMu   sync.Mutex
	subs    map[int]func(name string)
	nextSub int
}

var _ feed.StateStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string][]model.Entity),
		subs:        make(map[int]func(name string)),
	}
}

func (s *Store) ReplaceCollection(name string, items []model.Entity) {
	cp := make([]model.Entity, len(items))
	copy(cp, items)

	s.mu.Lock()
	s.collections[name] = cp
	s.mu.Unlock()

	s.notify(name)
}

func (s *Store) PatchByID(name, id string, p model.Patch) bool {
	s.mu.Lock()
	patched := patchIn(s.collections[name], id, p) > 0
	s.mu.Unlock()

	if patched {
		s.notify(name)
	}
	return patched
}

func (s *Store) PatchByIDAcrossAll(id string, p model.Patch) int {
	var changed []string
	total := 0

	s.mu.Lock()
	for name, items := range s.collections {
		if n := patchIn(items, id, p); n > 0 {
			total += n
			changed = append(changed, name)
		}
	}
	s.mu.Unlock()

	sort.Strings(changed)
	for _, name := range changed {
		s.notify(name)
	}
	return total
}

// patchIn replaces every entity with the given id by its patched copy, in
// place, and returns how many were patched.
func patchIn(items []model.Entity, id string, p model.Patch) int {
	n := 0
	for i, e := range items {
		if e.EntityID() == id {
			items[i] = e.WithPatch(p)
			n++
		}
	}
	return n
}

func (s *Store) Collection(name string) []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.collections[name]
	if !ok {
		return nil
	}
	cp := make([]model.Entity, len(items))
	copy(cp, items)
	return cp
}

func (s *Store) Find(id string) (model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.sortedNames() {
		for _, e := range s.collections[name] {
			if e.EntityID() == id {
				return e, true
			}
		}
	}
	return nil, false
}

func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedNames()
}

func (s *Store) sortedNames() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe registers fn for change notifications. fn runs after the store
// lock is released, on the goroutine that made the change.
func (s *Store) Subscribe(fn func(name string)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(name string) {
	s.subMu.Lock()
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(name)
	}
}
