package identity

import (
	"fmt"

	"feedsync/internal/config"
	"feedsync/internal/encryption"
	"feedsync/internal/feed"
)

// NewProviderFromConfig creates a Provider based on the session config type.
func NewProviderFromConfig(cfg config.SessionConfig, clock feed.Clock, logger feed.Logger) (*Provider, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryProvider(clock, logger), nil
	case "file", "":
		if cfg.TokenPath == "" {
			return nil, fmt.Errorf("file session requires token_path to be set")
		}
		sealer, err := encryption.NewSealerFromConfig(cfg.Sealer)
		if err != nil {
			return nil, fmt.Errorf("creating token sealer: %w", err)
		}
		return NewFileProvider(cfg.TokenPath, sealer, clock, logger), nil
	default:
		return nil, fmt.Errorf("unknown session type: %s", cfg.Type)
	}
}
