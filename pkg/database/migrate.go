package database

import (
	"database/sql"
	"fmt"
)

// schema is applied in full on every startup; all statements are
// IF NOT EXISTS so re-running is harmless.
const schema = `
CREATE TABLE IF NOT EXISTS titles (
	slug          TEXT PRIMARY KEY,
	original_slug TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL,
	source_url    TEXT NOT NULL DEFAULT '',
	cover_url     TEXT NOT NULL DEFAULT '',
	synopsis      TEXT NOT NULL DEFAULT '',
	genres        TEXT NOT NULL DEFAULT '[]',
	author        TEXT NOT NULL DEFAULT '',
	artist        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT '',
	rating        REAL NOT NULL DEFAULT 0,
	followers     INTEGER NOT NULL DEFAULT 0,
	posted_at     TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL DEFAULT '',
	chapters      TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_titles_updated_at ON titles(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_titles_original_slug ON titles(original_slug);

CREATE TABLE IF NOT EXISTS chapter_content (
	slug       TEXT NOT NULL,
	number     TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	pages      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (slug, number)
);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
