package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mangamirror/internal/events"
	"mangamirror/internal/scraper"
	"mangamirror/internal/store"
	"mangamirror/pkg/models"
)

// ErrNoSourceDomain aborts a pass before any scraping happens.
var ErrNoSourceDomain = errors.New("no source domain configured")

// Engine drives one sync pass: scrape the full source listing, match
// every scraped title against the stored catalog, merge and write back.
// It runs as a single sequential pipeline; the matching step needs a
// consistent view of the catalog index and both the source site and the
// store dislike parallel writers.
type Engine struct {
	Store  *store.Store
	Site   scraper.Site
	Events *events.Hub

	// ResolveContent controls opportunistic chapter-page resolution for
	// chapters a pass creates or discovers. Failures leave pages
	// unresolved, they never fail the title.
	ResolveContent bool
}

// Counts is the per-pass summary reported to the operator.
type Counts struct {
	Created int
	Updated int
	Skipped int
	Errored int
}

// catalogIndex is the in-memory view of the stored catalog a single pass
// matches against. It is scoped to one Run so successive or restarted
// passes never share state.
type catalogIndex struct {
	slugs      map[string]struct{}
	byOriginal map[string]string // originalSlug -> slug
	names      []nameEntry
}

type nameEntry struct {
	name string
	slug string
}

func (idx *catalogIndex) add(t *models.Title) {
	idx.slugs[t.Slug] = struct{}{}
	if t.OriginalSlug != "" {
		idx.byOriginal[t.OriginalSlug] = t.Slug
	}
	idx.names = append(idx.names, nameEntry{name: t.Name, slug: t.Slug})
}

// match resolves a scraped title to a stored slug. First hit wins:
// exact slug, then originalSlug, then fuzzy title containment.
func (idx *catalogIndex) match(scraped *models.Title) (string, bool) {
	if _, ok := idx.slugs[scraped.Slug]; ok {
		return scraped.Slug, true
	}
	if s, ok := idx.byOriginal[scraped.OriginalSlug]; ok && scraped.OriginalSlug != "" {
		return s, true
	}
	for _, e := range idx.names {
		if scraper.FuzzyTitleMatch(scraped.Name, e.name) {
			return e.slug, true
		}
	}
	return "", false
}

// Run executes one full sync pass and reports per-pass counts. Per-title
// errors are contained: they are logged, counted and the title is left in
// its prior state. Only store-connection-level failures propagate.
func (e *Engine) Run(ctx context.Context) (Counts, error) {
	var counts Counts
	started := time.Now()
	runID := uuid.NewString()[:8]

	domain, err := e.Store.SourceDomain(ctx)
	if err != nil {
		return counts, fmt.Errorf("read source domain: %w", err)
	}
	if domain != "" {
		e.Site.SetDomain(domain)
	} else if e.Site.Domain() == "" {
		return counts, ErrNoSourceDomain
	}

	idx, err := e.loadIndex(ctx)
	if err != nil {
		return counts, fmt.Errorf("load catalog index: %w", err)
	}

	log.Printf("[sync] run %s: starting pass against %s (%d titles stored)",
		runID, e.Site.Domain(), len(idx.slugs))
	e.Events.Publish(events.Event{Type: events.PassStarted, RunID: runID, Domain: e.Site.Domain()})

	walkErr := e.Site.ListTitles(ctx, func(scraped *models.Title) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if scraped.Slug == "" || scraped.Name == "" {
			counts.Skipped++
			return nil
		}
		if err := e.processTitle(ctx, runID, idx, scraped, &counts); err != nil {
			counts.Errored++
			log.Printf("[sync] run %s: %s: %v", runID, scraped.Slug, err)
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		// listing failures end the walk but whatever was already merged
		// stays committed; the next pass re-matches idempotently
		log.Printf("[sync] run %s: listing walk ended early: %v", runID, walkErr)
	}

	if err := e.Store.SetLastSyncAt(ctx, time.Now()); err != nil {
		log.Printf("[sync] run %s: store lastSyncAt: %v", runID, err)
	}

	elapsed := time.Since(started).Round(time.Millisecond)
	log.Printf("[sync] run %s: done in %s: %d created, %d updated, %d skipped, %d errored",
		runID, elapsed, counts.Created, counts.Updated, counts.Skipped, counts.Errored)
	e.Events.Publish(events.Event{
		Type:   events.PassFinished,
		RunID:  runID,
		Detail: fmt.Sprintf("%d created, %d updated, %d skipped, %d errored", counts.Created, counts.Updated, counts.Skipped, counts.Errored),
	})

	if walkErr != nil && errors.Is(walkErr, context.Canceled) {
		return counts, walkErr
	}
	return counts, nil
}

func (e *Engine) loadIndex(ctx context.Context) (*catalogIndex, error) {
	titles, err := e.Store.All(ctx)
	if err != nil {
		return nil, err
	}
	idx := &catalogIndex{
		slugs:      make(map[string]struct{}, len(titles)),
		byOriginal: make(map[string]string, len(titles)),
		names:      make([]nameEntry, 0, len(titles)),
	}
	for i := range titles {
		idx.add(&titles[i])
	}
	return idx, nil
}

func (e *Engine) processTitle(ctx context.Context, runID string, idx *catalogIndex, scraped *models.Title, counts *Counts) error {
	now := time.Now()

	matchedSlug, ok := idx.match(scraped)
	if !ok {
		return e.createTitle(ctx, runID, idx, scraped, now, counts)
	}

	stored, err := e.Store.GetBySlug(ctx, matchedSlug)
	if err != nil {
		return fmt.Errorf("load %s: %w", matchedSlug, err)
	}
	if stored == nil {
		// index said it exists but the row is gone; treat as new
		return e.createTitle(ctx, runID, idx, scraped, now, counts)
	}

	added := newChapterNumbers(stored.Chapters, scraped.Chapters)
	merged := MergeTitle(stored, scraped, now)

	if err := e.Store.Put(ctx, merged); err != nil {
		return fmt.Errorf("store %s: %w", merged.Slug, err)
	}
	idx.add(merged)
	counts.Updated++

	if e.ResolveContent && len(added) > 0 {
		log.Printf("[sync] run %s: %s: %d new chapters", runID, merged.Slug, len(added))
		e.resolveChapters(ctx, merged, added)
	}

	e.Events.Publish(events.Event{Type: events.TitleUpdated, RunID: runID, Slug: merged.Slug})
	return nil
}

func (e *Engine) createTitle(ctx context.Context, runID string, idx *catalogIndex, scraped *models.Title, now time.Time, counts *Counts) error {
	t := *scraped
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	t.Chapters = MergeChapters(nil, t.Chapters)

	if err := e.Store.Put(ctx, &t); err != nil {
		return fmt.Errorf("store new %s: %w", t.Slug, err)
	}
	idx.add(&t)
	counts.Created++

	if e.ResolveContent {
		e.resolveChapters(ctx, &t, chapterNumbers(t.Chapters))
	}

	e.Events.Publish(events.Event{Type: events.TitleCreated, RunID: runID, Slug: t.Slug})
	return nil
}

// resolveChapters fetches page images for the given chapter numbers.
// Strictly best effort: a failed chapter stays unresolved and the next
// reader request or pass can try again.
func (e *Engine) resolveChapters(ctx context.Context, t *models.Title, numbers []string) {
	want := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		want[n] = struct{}{}
	}

	for _, ref := range t.Chapters {
		if _, ok := want[ref.Number]; !ok {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		pages, err := e.Site.ChapterPages(ctx, ref.SourceURL)
		if err != nil {
			log.Printf("[sync] resolve %s/%s: %v", t.Slug, ref.Number, err)
			continue
		}
		if len(pages) == 0 {
			continue
		}
		content := &models.ChapterContent{
			Slug:      t.Slug,
			Number:    ref.Number,
			Title:     ref.Title,
			SourceURL: ref.SourceURL,
			Pages:     pages,
		}
		if err := e.Store.PutContent(ctx, content); err != nil {
			log.Printf("[sync] store content %s/%s: %v", t.Slug, ref.Number, err)
		}
	}
}

func chapterNumbers(refs []models.ChapterRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Number)
	}
	return out
}

// newChapterNumbers returns numbers present in scraped but not stored.
func newChapterNumbers(stored, scraped []models.ChapterRef) []string {
	have := make(map[string]struct{}, len(stored))
	for _, ref := range stored {
		have[ref.Number] = struct{}{}
	}
	var out []string
	for _, ref := range scraped {
		if _, ok := have[ref.Number]; !ok {
			out = append(out, ref.Number)
		}
	}
	return out
}
