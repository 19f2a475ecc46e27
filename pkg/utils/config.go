package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is read from ~/.mangamirror/config.toml (if present) and then
// overridden field by field from MANGAMIRROR_* environment variables.
type Config struct {
	ListenAddr   string `toml:"listen_addr"`
	DBPath       string `toml:"db_path"`
	SourceDomain string `toml:"source_domain"`

	SyncInterval      time.Duration `toml:"-"`
	DeepCleanInterval time.Duration `toml:"-"`
	SyncIntervalMin   int           `toml:"sync_interval_minutes"`
	DeepCleanHours    int           `toml:"deep_clean_interval_hours"`
	MigrateSlugs      bool          `toml:"migrate_slugs"`

	AdminPasswordHash string `toml:"admin_password_hash"` // bcrypt
	JWTSecret         string `toml:"jwt_secret"`
	JWTIssuer         string `toml:"jwt_issuer"`
	JWTTTLHours       int    `toml:"jwt_ttl_hours"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		SourceDomain:    "https://asuracomic.net",
		SyncIntervalMin: 30,
		DeepCleanHours:  168, // weekly
		JWTIssuer:       "mangamirror",
		JWTTTLHours:     24,
	}
}

func configPath() string {
	if p := os.Getenv("MANGAMIRROR_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".mangamirror", "config.toml")
}

// LoadConfig never fails on a missing file; only a malformed one is an error.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	path := configPath()
	if b, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if cfg.SyncIntervalMin <= 0 {
		cfg.SyncIntervalMin = 30
	}
	if cfg.DeepCleanHours <= 0 {
		cfg.DeepCleanHours = 168
	}
	if cfg.JWTTTLHours <= 0 {
		cfg.JWTTTLHours = 24
	}
	cfg.SyncInterval = time.Duration(cfg.SyncIntervalMin) * time.Minute
	cfg.DeepCleanInterval = time.Duration(cfg.DeepCleanHours) * time.Hour

	if cfg.JWTSecret == "" {
		// dev default (change for production)
		cfg.JWTSecret = "dev-secret-change-me"
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MANGAMIRROR_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MANGAMIRROR_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MANGAMIRROR_SOURCE_DOMAIN"); v != "" {
		cfg.SourceDomain = v
	}
	if v := os.Getenv("MANGAMIRROR_SYNC_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SyncIntervalMin = n
		}
	}
	if v := os.Getenv("MANGAMIRROR_DEEP_CLEAN_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DeepCleanHours = n
		}
	}
	if v := os.Getenv("MANGAMIRROR_MIGRATE_SLUGS"); v != "" {
		cfg.MigrateSlugs = v == "1" || v == "true"
	}
	if v := os.Getenv("MANGAMIRROR_ADMIN_PASSWORD_HASH"); v != "" {
		cfg.AdminPasswordHash = v
	}
	if v := os.Getenv("MANGAMIRROR_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("MANGAMIRROR_JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
}
