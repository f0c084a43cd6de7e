package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.Address)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("expected default database type sqlite, got %s", cfg.Database.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
address: ":9090"
database:
  type: sqlite
  path: /tmp/test.db
auth:
  jwt_secret: secret
  token_lifetime: 1h
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Address != ":9090" {
		t.Errorf("expected address :9090, got %s", cfg.Address)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("expected database path /tmp/test.db, got %s", cfg.Database.Path)
	}
	if cfg.Auth.TokenLifetime != time.Hour {
		t.Errorf("expected token lifetime 1h, got %s", cfg.Auth.TokenLifetime)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unset fields keep defaults
	if cfg.Hub.SendBufferSize != 64 {
		t.Errorf("expected default send buffer size 64, got %d", cfg.Hub.SendBufferSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARCELTRACK_ADDRESS", ":7070")
	t.Setenv("PARCELTRACK_DB_TYPE", "mysql")
	t.Setenv("PARCELTRACK_DB_PATH", "user:pass@/parceltrack")
	t.Setenv("PARCELTRACK_SEND_BUFFER", "128")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Address != ":7070" {
		t.Errorf("expected address :7070, got %s", cfg.Address)
	}
	if cfg.Database.Type != "mysql" {
		t.Errorf("expected database type mysql, got %s", cfg.Database.Type)
	}
	if cfg.Hub.SendBufferSize != 128 {
		t.Errorf("expected send buffer 128, got %d", cfg.Hub.SendBufferSize)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Type = "mongodb"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported database type")
	}

	cfg = DefaultConfig()
	cfg.TLS.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for TLS without cert files")
	}

	cfg = DefaultConfig()
	cfg.Hub.SendBufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero send buffer size")
	}
}
