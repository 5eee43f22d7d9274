package encryption

import (
	"fmt"

	"feedsync/internal/config"
)

// NewSealerFromConfig creates a Sealer based on the configuration type.
func NewSealerFromConfig(cfg config.SealerConfig) (Sealer, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.IdentityPath == "" {
			return nil, fmt.Errorf("age sealer requires identity_path to be set")
		}
		return NewAgeSealer(cfg), nil
	case "none":
		return NopSealer{}, nil
	default:
		return nil, fmt.Errorf("unknown sealer type: %q", cfg.Type)
	}
}
