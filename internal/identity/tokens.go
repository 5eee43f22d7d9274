package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"feedsync/internal/encryption"
)

// errNoToken means nobody has signed in.
var errNoToken = errors.New("no stored token")

// tokenStore persists the raw sign-in token.
type tokenStore interface {
	load() (string, error)
	save(token string) error
	clear() error
}

// fileTokens keeps the token sealed in a single file.
type fileTokens struct {
	path   string
	sealer encryption.Sealer
}

func (f *fileTokens) load() (string, error) {
	sealed, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", errNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	plain, err := f.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("opening token file: %w", err)
	}
	return string(plain), nil
}

func (f *fileTokens) save(token string) error {
	sealed, err := f.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("sealing token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(f.path, sealed, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func (f *fileTokens) clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// memoryTokens keeps the token for the life of the process.
type memoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memoryTokens) load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", errNoToken
	}
	return m.token, nil
}

func (m *memoryTokens) save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memoryTokens) clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
