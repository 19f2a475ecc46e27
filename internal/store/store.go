package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mangamirror/pkg/models"
)

// Store is the catalog persistence layer. Titles (with their embedded
// chapter references), chapter content blobs and config scalars each get
// their own table; the set of slugs in the titles table doubles as the
// catalog index.
//
// Writers (sync, dedup, migration, domain rewrite) are expected to run as
// mutually exclusive passes; the store itself takes no locks beyond what
// sqlite provides.
type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

const titleColumns = `slug, original_slug, title, source_url, cover_url, synopsis,
		genres, author, artist, status, rating, followers, posted_at, updated_at, chapters`

// Put upserts a title record keyed by slug.
func (s *Store) Put(ctx context.Context, t *models.Title) error {
	genresJSON, err := json.Marshal(t.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres for %s: %w", t.Slug, err)
	}
	chaptersJSON, err := json.Marshal(t.Chapters)
	if err != nil {
		return fmt.Errorf("marshal chapters for %s: %w", t.Slug, err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO titles (`+titleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
		  original_slug = excluded.original_slug,
		  title = excluded.title,
		  source_url = excluded.source_url,
		  cover_url = excluded.cover_url,
		  synopsis = excluded.synopsis,
		  genres = excluded.genres,
		  author = excluded.author,
		  artist = excluded.artist,
		  status = excluded.status,
		  rating = excluded.rating,
		  followers = excluded.followers,
		  posted_at = excluded.posted_at,
		  updated_at = excluded.updated_at,
		  chapters = excluded.chapters
	`,
		t.Slug, t.OriginalSlug, t.Name, t.SourceURL, t.CoverURL, t.Synopsis,
		string(genresJSON), t.Author, t.Artist, t.Status, t.Rating, t.Followers,
		encodeTime(t.PostedAt), encodeTime(t.UpdatedAt), string(chaptersJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert title %s: %w", t.Slug, err)
	}
	return nil
}

// GetBySlug returns the title with the given slug, or nil when absent.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*models.Title, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE slug = ?`, slug)
	return scanTitle(row)
}

// GetByOriginalSlug returns the title whose source-site identifier matched
// at last scrape, or nil when absent.
func (s *Store) GetByOriginalSlug(ctx context.Context, originalSlug string) (*models.Title, error) {
	if originalSlug == "" {
		return nil, nil
	}
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE original_slug = ? LIMIT 1`, originalSlug)
	return scanTitle(row)
}

// All returns every stored title, unordered.
func (s *Store) All(ctx context.Context) ([]models.Title, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+titleColumns+` FROM titles`)
	if err != nil {
		return nil, fmt.Errorf("select titles: %w", err)
	}
	defer rows.Close()

	var out []models.Title
	for rows.Next() {
		t, err := scanTitleRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Slugs enumerates the catalog index.
func (s *Store) Slugs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT slug FROM titles ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("select slugs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		out = append(out, slug)
	}
	return out, rows.Err()
}

// Delete removes a title record. Chapter content is removed separately
// (see DeleteContentFor) so maintenance passes can drive content deletion
// through the rate-limited mutator.
func (s *Store) Delete(ctx context.Context, slug string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM titles WHERE slug = ?`, slug); err != nil {
		return fmt.Errorf("delete title %s: %w", slug, err)
	}
	return nil
}

// DeleteContentFor removes all chapter content stored under a slug.
func (s *Store) DeleteContentFor(ctx context.Context, slug string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM chapter_content WHERE slug = ?`, slug); err != nil {
		return fmt.Errorf("delete content for %s: %w", slug, err)
	}
	return nil
}

// Rename moves a title and all its chapter content to a new slug in one
// transaction. It fails if the target slug is already occupied.
func (s *Store) Rename(ctx context.Context, oldSlug, newSlug string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var occupied int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM titles WHERE slug = ?`, newSlug).Scan(&occupied); err != nil {
		return fmt.Errorf("check target slug: %w", err)
	}
	if occupied > 0 {
		return fmt.Errorf("rename %s: target slug %q occupied: %w", oldSlug, newSlug, ErrConflict)
	}

	res, err := tx.ExecContext(ctx, `UPDATE titles SET slug = ? WHERE slug = ?`, newSlug, oldSlug)
	if err != nil {
		return fmt.Errorf("rename title %s: %w", oldSlug, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rename %s: %w", oldSlug, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chapter_content SET slug = ? WHERE slug = ?`, newSlug, oldSlug); err != nil {
		return fmt.Errorf("rename content %s: %w", oldSlug, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

// PutContent creates or overwrites the page list for one chapter.
func (s *Store) PutContent(ctx context.Context, c *models.ChapterContent) error {
	pagesJSON, err := json.Marshal(c.Pages)
	if err != nil {
		return fmt.Errorf("marshal pages for %s/%s: %w", c.Slug, c.Number, err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO chapter_content (slug, number, title, source_url, pages)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slug, number) DO UPDATE SET
		  title = excluded.title,
		  source_url = excluded.source_url,
		  pages = excluded.pages
	`, c.Slug, c.Number, c.Title, c.SourceURL, string(pagesJSON))
	if err != nil {
		return fmt.Errorf("upsert content %s/%s: %w", c.Slug, c.Number, err)
	}
	return nil
}

// GetContent returns the stored content for (slug, number), or nil.
func (s *Store) GetContent(ctx context.Context, slug, number string) (*models.ChapterContent, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT slug, number, title, source_url, pages
		FROM chapter_content WHERE slug = ? AND number = ?
	`, slug, number)

	var (
		c         models.ChapterContent
		pagesJSON string
	)
	if err := row.Scan(&c.Slug, &c.Number, &c.Title, &c.SourceURL, &pagesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan content: %w", err)
	}
	_ = json.Unmarshal([]byte(pagesJSON), &c.Pages)
	return &c, nil
}

// AllContent returns every stored content blob. Used by the domain
// rewrite pass; content is usually much sparser than titles.
func (s *Store) AllContent(ctx context.Context) ([]models.ChapterContent, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT slug, number, title, source_url, pages FROM chapter_content`)
	if err != nil {
		return nil, fmt.Errorf("select content: %w", err)
	}
	defer rows.Close()

	var out []models.ChapterContent
	for rows.Next() {
		var (
			c         models.ChapterContent
			pagesJSON string
		)
		if err := rows.Scan(&c.Slug, &c.Number, &c.Title, &c.SourceURL, &pagesJSON); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		_ = json.Unmarshal([]byte(pagesJSON), &c.Pages)
		out = append(out, c)
	}
	return out, rows.Err()
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTitle(row *sql.Row) (*models.Title, error) {
	t, err := scanTitleRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func scanTitleRows(row rowScanner) (*models.Title, error) {
	var (
		t            models.Title
		genresJSON   string
		chaptersJSON string
		postedAt     string
		updatedAt    string
	)
	if err := row.Scan(
		&t.Slug, &t.OriginalSlug, &t.Name, &t.SourceURL, &t.CoverURL, &t.Synopsis,
		&genresJSON, &t.Author, &t.Artist, &t.Status, &t.Rating, &t.Followers,
		&postedAt, &updatedAt, &chaptersJSON,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan title: %w", err)
	}

	_ = json.Unmarshal([]byte(genresJSON), &t.Genres)
	_ = json.Unmarshal([]byte(chaptersJSON), &t.Chapters)
	t.PostedAt = decodeTime(postedAt)
	t.UpdatedAt = decodeTime(updatedAt)
	return &t, nil
}
