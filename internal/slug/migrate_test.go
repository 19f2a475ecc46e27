package slug_test

import (
	"context"
	"testing"

	"mangamirror/internal/slug"
	"mangamirror/internal/testsupport"
	"mangamirror/pkg/models"
)

func TestMigratorRun(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	// Legacy slug: moves to its normalized form, content included.
	if err := s.Put(ctx, testsupport.Title("solo-max-2", "Solo Max")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutContent(ctx, &models.ChapterContent{
		Slug: "solo-max-2", Number: "1", Pages: []string{"a.jpg"},
	}); err != nil {
		t.Fatalf("put content: %v", err)
	}

	// Already clean: untouched.
	if err := s.Put(ctx, testsupport.Title("my-title", "My Title")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Legacy slug whose target is occupied: skipped as a conflict.
	if err := s.Put(ctx, testsupport.Title("my-title-2", "My Title Copy")); err != nil {
		t.Fatalf("put: %v", err)
	}

	m := &slug.Migrator{Store: s}
	moved, conflicts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if moved != 1 || conflicts != 1 {
		t.Fatalf("moved=%d conflicts=%d, want 1/1", moved, conflicts)
	}

	if got, _ := s.GetBySlug(ctx, "solo-max-2"); got != nil {
		t.Error("legacy slug still present")
	}
	if got, _ := s.GetBySlug(ctx, "solo-max"); got == nil {
		t.Fatal("normalized slug missing")
	}
	if c, _ := s.GetContent(ctx, "solo-max", "1"); c == nil {
		t.Error("chapter content did not follow the rename")
	}
	if got, _ := s.GetBySlug(ctx, "my-title-2"); got == nil {
		t.Error("conflicting title was removed instead of skipped")
	}

	// Second run finds nothing left to move.
	moved, conflicts, err = m.Run(ctx)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if moved != 0 || conflicts != 1 {
		t.Errorf("rerun moved=%d conflicts=%d, want 0/1", moved, conflicts)
	}
}
