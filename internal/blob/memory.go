package blob

import (
	"context"
	"fmt"
	"sync"

	"feedsync/internal/feed"
)

// MemoryStore keeps uploaded objects in memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	fail    error
}

var _ feed.BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// FailUploads makes every subsequent Upload return err. Pass nil to recover.
func (m *MemoryStore) FailUploads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *MemoryStore) Upload(_ context.Context, path string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty object path")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[path] = cp
	return path, nil
}

func (m *MemoryStore) DownloadURL(_ context.Context, ref string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[ref]; !ok {
		return "", fmt.Errorf("object not found: %s", ref)
	}
	return "memory://" + ref, nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	return data, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
