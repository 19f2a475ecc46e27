package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MANGAMIRROR_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.SourceDomain != "https://asuracomic.net" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.SyncInterval != 30*time.Minute || cfg.DeepCleanInterval != 168*time.Hour {
		t.Errorf("intervals = %v / %v", cfg.SyncInterval, cfg.DeepCleanInterval)
	}
	if cfg.JWTSecret == "" {
		t.Error("no fallback jwt secret")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
listen_addr = ":9999"
source_domain = "https://mirror.example"
sync_interval_minutes = 5
migrate_slugs = true
jwt_secret = "file-secret"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MANGAMIRROR_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.SourceDomain != "https://mirror.example" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("sync interval = %v", cfg.SyncInterval)
	}
	if !cfg.MigrateSlugs || cfg.JWTSecret != "file-secret" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`listen_addr = ":9999"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MANGAMIRROR_CONFIG", path)
	t.Setenv("MANGAMIRROR_LISTEN_ADDR", ":7777")
	t.Setenv("MANGAMIRROR_SYNC_INTERVAL_MINUTES", "12")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("env override lost: %q", cfg.ListenAddr)
	}
	if cfg.SyncInterval != 12*time.Minute {
		t.Errorf("sync interval = %v", cfg.SyncInterval)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`listen_addr = [broken`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MANGAMIRROR_CONFIG", path)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("malformed file accepted")
	}
}
