package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/feedsync",
		LogDir:  "/home/user/.local/share/feedsync/log",
		HTTP:    HTTPConfig{BaseURL: "https://api.example.com", TimeoutSeconds: 10},
		Session: SessionConfig{
			Type:      "file",
			TokenPath: "/home/user/.local/share/feedsync/session/token.age",
			Sealer:    SealerConfig{Type: "age", IdentityPath: "/home/user/.local/share/feedsync/keys/feedsync.key"},
		},
		Blob: BlobConfig{
			Type:      "minio",
			Endpoint:  "localhost:9000",
			Bucket:    "images",
			AccessKey: "minio",
			SecretKey: "minio123",
		},
		Journal: JournalConfig{Type: "sqlite", DataDir: "/home/user/.local/share/feedsync/db"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if *got != *original {
		t.Errorf("Read() = %+v, want %+v", got, original)
	}
}

func TestManager_Read_Sections(t *testing.T) {
	input := `
base_dir = "/data/feedsync"

[http]
base_url = "http://localhost:8080"

[session]
type = "memory"

[blob]
type = "s3"
bucket = "feed-images"
region = "eu-west-1"
path_style = true

[journal]
type = "memory"
`
	m := &Manager{}
	got, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HTTP.BaseURL != "http://localhost:8080" {
		t.Errorf("HTTP.BaseURL = %q, want %q", got.HTTP.BaseURL, "http://localhost:8080")
	}
	if got.Session.Type != "memory" {
		t.Errorf("Session.Type = %q, want %q", got.Session.Type, "memory")
	}
	if got.Blob.Type != "s3" || got.Blob.Bucket != "feed-images" || !got.Blob.PathStyle {
		t.Errorf("Blob = %+v, want s3 bucket feed-images with path style", got.Blob)
	}
	if got.Journal.Type != "memory" {
		t.Errorf("Journal.Type = %q, want %q", got.Journal.Type, "memory")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/feedsync")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", cfg.BaseDir, "/data/feedsync"},
		{"LogDir", cfg.LogDir, "/data/feedsync/log"},
		{"HTTP.BaseURL", cfg.HTTP.BaseURL, DefaultAPIURL},
		{"Session.Type", cfg.Session.Type, "file"},
		{"Session.TokenPath", cfg.Session.TokenPath, "/data/feedsync/session/token.age"},
		{"Session.Sealer.Type", cfg.Session.Sealer.Type, "age"},
		{"Session.Sealer.IdentityPath", cfg.Session.Sealer.IdentityPath, "/data/feedsync/keys/feedsync.key"},
		{"Blob.Type", cfg.Blob.Type, "filesystem"},
		{"Blob.Root", cfg.Blob.Root, "/data/feedsync/blobs"},
		{"Journal.Type", cfg.Journal.Type, "sqlite"},
		{"Journal.DataDir", cfg.Journal.DataDir, "/data/feedsync/db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	if got := (HTTPConfig{}).Timeout(); got != 60*time.Second {
		t.Errorf("HTTPConfig{}.Timeout() = %v, want 60s", got)
	}
	if got := (HTTPConfig{TimeoutSeconds: 5}).Timeout(); got != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", got)
	}
	if got := (BlobConfig{}).URLExpiry(); got != 7*24*time.Hour {
		t.Errorf("BlobConfig{}.URLExpiry() = %v, want 168h", got)
	}
	if got := (BlobConfig{URLExpirySeconds: 90}).URLExpiry(); got != 90*time.Second {
		t.Errorf("URLExpiry() = %v, want 90s", got)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "feedsync.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "feedsync.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, NewConfig(dir)); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "feedsync.toml")
		cfg := NewConfig(dir)
		cfg.Journal = JournalConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
		if got.Journal.Type != "memory" {
			t.Errorf("Journal.Type = %q, want %q", got.Journal.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/feedsync.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
