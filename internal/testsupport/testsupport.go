// Package testsupport holds shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"mangamirror/internal/store"
	"mangamirror/pkg/database"
	"mangamirror/pkg/models"
)

// NewStore opens a fresh sqlite-backed catalog store in a temp dir.
func NewStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := database.Open(database.Config{
		Path: filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return store.New(db)
}

// Title builds a minimal valid title record for tests.
func Title(slug, name string, chapters ...models.ChapterRef) *models.Title {
	return &models.Title{
		Slug:      slug,
		Name:      name,
		SourceURL: "https://old.example/manga/" + slug,
		UpdatedAt: time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC),
		Chapters:  chapters,
	}
}

// Ref builds a chapter reference.
func Ref(number, title string) models.ChapterRef {
	return models.ChapterRef{
		Number:    number,
		Title:     title,
		SourceURL: "https://old.example/chapter-" + number,
	}
}
