package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultAPIURL is the backend used when none is configured.
const DefaultAPIURL = "https://hackathon-7-haruto-imamura-backend-212382913943.us-central1.run.app"

// Config represents the main configuration for feedsync.
type Config struct {
	BaseDir string        `toml:"base_dir"`
	LogDir  string        `toml:"log_dir"`
	HTTP    HTTPConfig    `toml:"http"`
	Session SessionConfig `toml:"session"`
	Blob    BlobConfig    `toml:"blob"`
	Journal JournalConfig `toml:"journal"`
}

// HTTPConfig describes the backend REST API.
type HTTPConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // overall request timeout; defaults to 60
}

// Timeout returns the configured request timeout.
func (c HTTPConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionConfig represents configuration for the identity provider.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SessionConfig struct {
	Type      string       `toml:"type"`                 // "file" or "memory"
	TokenPath string       `toml:"token_path,omitempty"` // only used for type=file
	Sealer    SealerConfig `toml:"sealer"`
}

// SealerConfig selects how the cached sign-in token is protected at rest.
type SealerConfig struct {
	Type         string `toml:"type"`                    // "age" (default) or "none"
	IdentityPath string `toml:"identity_path,omitempty"` // age X25519 identity file
}

// BlobConfig represents configuration for the image store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", "s3" or "minio"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3/MinIO fields
	Bucket           string `toml:"bucket,omitempty"`
	Region           string `toml:"region,omitempty"`
	Endpoint         string `toml:"endpoint,omitempty"`
	AccessKey        string `toml:"access_key,omitempty"`
	SecretKey        string `toml:"secret_key,omitempty"`
	UseSSL           bool   `toml:"use_ssl,omitempty"`    // minio only
	PathStyle        bool   `toml:"path_style,omitempty"` // s3 only
	URLExpirySeconds int    `toml:"url_expiry_seconds,omitempty"`
}

// URLExpiry returns how long presigned download URLs stay valid.
func (c BlobConfig) URLExpiry() time.Duration {
	if c.URLExpirySeconds <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.URLExpirySeconds) * time.Second
}

// JournalConfig represents configuration for the mutation journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config rooted at baseDir with file-backed defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		HTTP: HTTPConfig{
			BaseURL:        DefaultAPIURL,
			TimeoutSeconds: 60,
		},
		Session: SessionConfig{
			Type:      "file",
			TokenPath: filepath.Join(baseDir, "session", "token.age"),
			Sealer: SealerConfig{
				Type:         "age",
				IdentityPath: filepath.Join(baseDir, "keys", "feedsync.key"),
			},
		},
		Blob: BlobConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "blobs"),
		},
		Journal: JournalConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold blob store credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
