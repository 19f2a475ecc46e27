package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would silently overwrite an
	// existing record, e.g. a slug migration whose target is occupied.
	ErrConflict = errors.New("key occupied")
)

// Logical key layout, used by maintenance passes that operate on the
// store as a flat key set:
//
//	title:{slug}
//	chapterContent:{slug}:{number}
//	config:{name}
//
// Chapter references live inside the title record and the catalog index
// is the set of title keys itself, so neither has keys of its own.
const (
	KindTitle   = "title"
	KindContent = "chapterContent"
	KindConfig  = "config"
)

type Key struct {
	Kind   string
	Slug   string
	Number string // content keys only
	Name   string // config keys only
}

func (k Key) String() string {
	switch k.Kind {
	case KindContent:
		return k.Kind + ":" + k.Slug + ":" + k.Number
	case KindConfig:
		return k.Kind + ":" + k.Name
	default:
		return k.Kind + ":" + k.Slug
	}
}

func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 3)
	switch {
	case len(parts) == 2 && parts[0] == KindTitle:
		return Key{Kind: KindTitle, Slug: parts[1]}, nil
	case len(parts) == 2 && parts[0] == KindConfig:
		return Key{Kind: KindConfig, Name: parts[1]}, nil
	case len(parts) == 3 && parts[0] == KindContent:
		return Key{Kind: KindContent, Slug: parts[1], Number: parts[2]}, nil
	}
	return Key{}, fmt.Errorf("malformed key %q", s)
}

// Keys enumerates every logical key in the store, titles first.
func (s *Store) Keys(ctx context.Context) ([]Key, error) {
	slugs, err := s.Slugs(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(slugs))
	for _, slug := range slugs {
		keys = append(keys, Key{Kind: KindTitle, Slug: slug})
	}

	contentKeys, err := s.ContentKeys(ctx)
	if err != nil {
		return nil, err
	}
	keys = append(keys, contentKeys...)

	rows, err := s.DB.QueryContext(ctx, `SELECT key FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("select config keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan config key: %w", err)
		}
		keys = append(keys, Key{Kind: KindConfig, Name: name})
	}
	return keys, rows.Err()
}

// ContentKeys enumerates every chapter content key.
func (s *Store) ContentKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT slug, number FROM chapter_content ORDER BY slug, number`)
	if err != nil {
		return nil, fmt.Errorf("select content keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		k := Key{Kind: KindContent}
		if err := rows.Scan(&k.Slug, &k.Number); err != nil {
			return nil, fmt.Errorf("scan content key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// OrphanContentKeys enumerates content rows whose slug has no title
// record. These are legacy leftovers swept by the deep-clean pass.
func (s *Store) OrphanContentKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT c.slug, c.number FROM chapter_content c
		LEFT JOIN titles t ON t.slug = c.slug
		WHERE t.slug IS NULL
		ORDER BY c.slug, c.number
	`)
	if err != nil {
		return nil, fmt.Errorf("select orphan content: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		k := Key{Kind: KindContent}
		if err := rows.Scan(&k.Slug, &k.Number); err != nil {
			return nil, fmt.Errorf("scan orphan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteKey removes whatever record a logical key points at. Missing
// records are not an error; bulk deletes must be retryable.
func (s *Store) DeleteKey(ctx context.Context, k Key) error {
	switch k.Kind {
	case KindTitle:
		return s.Delete(ctx, k.Slug)
	case KindContent:
		_, err := s.DB.ExecContext(ctx,
			`DELETE FROM chapter_content WHERE slug = ? AND number = ?`, k.Slug, k.Number)
		if err != nil {
			return fmt.Errorf("delete content %s/%s: %w", k.Slug, k.Number, err)
		}
		return nil
	case KindConfig:
		_, err := s.DB.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, k.Name)
		if err != nil {
			return fmt.Errorf("delete config %s: %w", k.Name, err)
		}
		return nil
	}
	return fmt.Errorf("delete key: unknown kind %q", k.Kind)
}
