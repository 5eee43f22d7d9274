package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envConfigPath = "FEEDSYNC_CONFIG_PATH"
	envHome       = "FEEDSYNC_HOME"
)

// GetDefaults resolves where feedsync keeps its config and data. The keys are
// "config_path", "base_dir" and "log_dir". FEEDSYNC_CONFIG_PATH and
// FEEDSYNC_HOME override the XDG-style locations under the home directory;
// both may come from a .env file loaded by the CLI.
func GetDefaults() (map[string]string, error) {
	home, err := os.UserHomeDir()
	if err != nil && (os.Getenv(envConfigPath) == "" || os.Getenv(envHome) == "") {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	configPath := envOr(envConfigPath, filepath.Join(home, ".config", "feedsync.toml"))
	baseDir := envOr(envHome, filepath.Join(home, ".local", "share", "feedsync"))

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
