package feed

import (
	"context"
	"sync"
)

// keyedLocks serializes work per key. Keys that are not held cost nothing.
type keyedLocks struct {
	mu    sync.Mutex
	held  map[string]chan struct{}
	waits map[string]int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{
		held:  make(map[string]chan struct{}),
		waits: make(map[string]int),
	}
}

// lock blocks until key is free or ctx is done. On success the returned
// function releases the key.
func (l *keyedLocks) lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.held[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.held[key] = ch
	}
	l.waits[key]++
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { l.unlock(key, ch) }, nil
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}
}

func (l *keyedLocks) unlock(key string, ch chan struct{}) {
	<-ch
	l.release(key)
}

func (l *keyedLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits[key]--
	if l.waits[key] == 0 {
		delete(l.waits, key)
		delete(l.held, key)
	}
}
