package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Config scalar names.
const (
	ConfigSourceDomain = "sourceDomain"
	ConfigLastSyncAt   = "lastSyncAt"
)

func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// SourceDomain returns the configured base URL of the source site, or ""
// when none has been stored yet.
func (s *Store) SourceDomain(ctx context.Context) (string, error) {
	return s.GetConfig(ctx, ConfigSourceDomain)
}

func (s *Store) SetSourceDomain(ctx context.Context, domain string) error {
	return s.SetConfig(ctx, ConfigSourceDomain, domain)
}

func (s *Store) LastSyncAt(ctx context.Context) (time.Time, error) {
	v, err := s.GetConfig(ctx, ConfigLastSyncAt)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, v)
}

func (s *Store) SetLastSyncAt(ctx context.Context, at time.Time) error {
	return s.SetConfig(ctx, ConfigLastSyncAt, at.UTC().Format(time.RFC3339Nano))
}
