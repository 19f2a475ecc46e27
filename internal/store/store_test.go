package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mangamirror/internal/store"
	"mangamirror/internal/testsupport"
	"mangamirror/pkg/models"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	in := &models.Title{
		Slug:         "my-title",
		OriginalSlug: "123-my-title-abc12345",
		Name:         "My Title",
		SourceURL:    "https://old.example/manga/123-my-title-abc12345",
		CoverURL:     "https://old.example/covers/my-title.jpg",
		Synopsis:     "A story.",
		Genres:       []string{"Action", "Fantasy"},
		Author:       "Someone",
		Status:       "Ongoing",
		Rating:       8.7,
		Followers:    500,
		PostedAt:     time.Date(2023, 5, 1, 16, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC),
		Chapters: []models.ChapterRef{
			{Number: "2", Title: "Chapter 2", SourceURL: "https://old.example/c2"},
			{Number: "1", Title: "Chapter 1", SourceURL: "https://old.example/c1"},
		},
	}
	if err := s.Put(ctx, in); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetBySlug(ctx, "my-title")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get returned nil for stored title")
	}
	if got.Name != in.Name || got.OriginalSlug != in.OriginalSlug {
		t.Errorf("got %q/%q, want %q/%q", got.Name, got.OriginalSlug, in.Name, in.OriginalSlug)
	}
	if got.Rating != 8.7 || got.Followers != 500 {
		t.Errorf("rating/followers = %v/%d", got.Rating, got.Followers)
	}
	if len(got.Genres) != 2 || got.Genres[1] != "Fantasy" {
		t.Errorf("genres = %v", got.Genres)
	}
	if len(got.Chapters) != 2 || got.Chapters[0].Number != "2" {
		t.Errorf("chapters = %v", got.Chapters)
	}
	if !got.UpdatedAt.Equal(in.UpdatedAt) {
		t.Errorf("updatedAt = %v, want %v", got.UpdatedAt, in.UpdatedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := testsupport.NewStore(t)
	got, err := s.GetBySlug(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestGetByOriginalSlug(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	tt := testsupport.Title("my-title", "My Title")
	tt.OriginalSlug = "123-my-title-abc12345"
	if err := s.Put(ctx, tt); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetByOriginalSlug(ctx, "123-my-title-abc12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Slug != "my-title" {
		t.Errorf("got %+v, want slug my-title", got)
	}

	// Empty original slug must never match anything.
	got, err = s.GetByOriginalSlug(ctx, "")
	if err != nil || got != nil {
		t.Errorf("empty original slug: got %+v, %v", got, err)
	}
}

func TestRename(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testsupport.Title("my-title-2", "My Title")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutContent(ctx, &models.ChapterContent{
		Slug: "my-title-2", Number: "1", Pages: []string{"p1.jpg"},
	}); err != nil {
		t.Fatalf("put content: %v", err)
	}

	if err := s.Rename(ctx, "my-title-2", "my-title"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if got, _ := s.GetBySlug(ctx, "my-title-2"); got != nil {
		t.Error("old slug still present after rename")
	}
	if got, _ := s.GetBySlug(ctx, "my-title"); got == nil {
		t.Fatal("new slug missing after rename")
	}
	c, err := s.GetContent(ctx, "my-title", "1")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if c == nil || len(c.Pages) != 1 {
		t.Errorf("content did not move with the title: %+v", c)
	}
}

func TestRenameConflict(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testsupport.Title("my-title", "Original")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, testsupport.Title("my-title-2", "Duplicate")); err != nil {
		t.Fatalf("put: %v", err)
	}

	err := s.Rename(ctx, "my-title-2", "my-title")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("rename onto occupied slug: err = %v, want ErrConflict", err)
	}
	// Neither record may have been touched.
	a, _ := s.GetBySlug(ctx, "my-title")
	b, _ := s.GetBySlug(ctx, "my-title-2")
	if a == nil || a.Name != "Original" || b == nil || b.Name != "Duplicate" {
		t.Errorf("records changed after failed rename: %+v / %+v", a, b)
	}
}

func TestRenameMissing(t *testing.T) {
	s := testsupport.NewStore(t)
	err := s.Rename(context.Background(), "ghost", "anything")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rename missing: err = %v, want ErrNotFound", err)
	}
}

func TestListPage(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	for i := 0; i < 23; i++ {
		tt := testsupport.Title(fmt.Sprintf("title-%02d", i), fmt.Sprintf("Title %02d", i))
		tt.Genres = []string{"Action"}
		if i%2 == 0 {
			tt.Genres = append(tt.Genres, "Romance")
		}
		tt.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.Put(ctx, tt); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	res, err := s.ListPage(ctx, store.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 23 || res.Limit != 10 || res.Page != 1 || res.PagesLeft != 2 {
		t.Errorf("defaults: total=%d limit=%d page=%d pagesLeft=%d",
			res.Total, res.Limit, res.Page, res.PagesLeft)
	}
	if len(res.Items) != 10 {
		t.Fatalf("len(items) = %d", len(res.Items))
	}
	// Most recently updated first.
	if res.Items[0].Slug != "title-22" {
		t.Errorf("first item = %s, want title-22", res.Items[0].Slug)
	}

	res, err = s.ListPage(ctx, store.ListQuery{Page: 3})
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(res.Items) != 3 || res.PagesLeft != 0 {
		t.Errorf("page 3: %d items, pagesLeft=%d", len(res.Items), res.PagesLeft)
	}

	// Limit is clamped to the maximum page size.
	res, err = s.ListPage(ctx, store.ListQuery{Limit: 999})
	if err != nil {
		t.Fatalf("list clamped: %v", err)
	}
	if res.Limit != 25 {
		t.Errorf("limit = %d, want 25", res.Limit)
	}

	// Genre filter is any-match and case-insensitive.
	res, err = s.ListPage(ctx, store.ListQuery{Genres: []string{"romance"}, Limit: 25})
	if err != nil {
		t.Fatalf("list genres: %v", err)
	}
	if res.Total != 12 {
		t.Errorf("romance total = %d, want 12", res.Total)
	}

	// Title substring filter.
	res, err = s.ListPage(ctx, store.ListQuery{TitleContains: "title 0"})
	if err != nil {
		t.Fatalf("list search: %v", err)
	}
	if res.Total != 10 {
		t.Errorf("search total = %d, want 10", res.Total)
	}
}

func TestKeysAndParse(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testsupport.Title("my-title", "My Title")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutContent(ctx, &models.ChapterContent{Slug: "my-title", Number: "1.5"}); err != nil {
		t.Fatalf("put content: %v", err)
	}
	if err := s.SetSourceDomain(ctx, "https://old.example"); err != nil {
		t.Fatalf("set domain: %v", err)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("len(keys) = %d: %v", len(keys), keys)
	}

	for _, k := range keys {
		parsed, err := store.ParseKey(k.String())
		if err != nil {
			t.Errorf("ParseKey(%q): %v", k.String(), err)
			continue
		}
		if parsed != k {
			t.Errorf("round trip %q: got %+v", k.String(), parsed)
		}
	}

	if _, err := store.ParseKey("bogus"); err == nil {
		t.Error("ParseKey accepted malformed key")
	}
}

func TestOrphanContentKeys(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testsupport.Title("kept", "Kept")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutContent(ctx, &models.ChapterContent{Slug: "kept", Number: "1"}); err != nil {
		t.Fatalf("put content: %v", err)
	}
	if err := s.PutContent(ctx, &models.ChapterContent{Slug: "gone", Number: "3"}); err != nil {
		t.Fatalf("put orphan: %v", err)
	}

	orphans, err := s.OrphanContentKeys(ctx)
	if err != nil {
		t.Fatalf("orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].Slug != "gone" || orphans[0].Number != "3" {
		t.Fatalf("orphans = %v", orphans)
	}

	if err := s.DeleteKey(ctx, orphans[0]); err != nil {
		t.Fatalf("delete key: %v", err)
	}
	orphans, _ = s.OrphanContentKeys(ctx)
	if len(orphans) != 0 {
		t.Errorf("orphans after delete = %v", orphans)
	}
	// Deleting again must be a no-op, not an error.
	if err := s.DeleteKey(ctx, store.Key{Kind: store.KindContent, Slug: "gone", Number: "3"}); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	domain, err := s.SourceDomain(ctx)
	if err != nil {
		t.Fatalf("source domain: %v", err)
	}
	if domain != "" {
		t.Errorf("unset domain = %q", domain)
	}

	if err := s.SetSourceDomain(ctx, "https://new.example"); err != nil {
		t.Fatalf("set: %v", err)
	}
	domain, err = s.SourceDomain(ctx)
	if err != nil || domain != "https://new.example" {
		t.Errorf("domain = %q, %v", domain, err)
	}

	at := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := s.SetLastSyncAt(ctx, at); err != nil {
		t.Fatalf("set last sync: %v", err)
	}
	got, err := s.LastSyncAt(ctx)
	if err != nil || !got.Equal(at) {
		t.Errorf("last sync = %v, %v", got, err)
	}
}
