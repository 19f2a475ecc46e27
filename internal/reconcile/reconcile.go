package reconcile

import (
	"context"
	"fmt"
	"log"

	"mangamirror/internal/scraper"
	"mangamirror/internal/slug"
	"mangamirror/internal/store"
	"mangamirror/pkg/models"
)

// Pass collapses duplicate catalog entries left behind by older slug
// schemes and renamed source pages. Titles are grouped by normalized
// title text; within a group the member with the most chapter references
// survives and the rest are deleted together with their chapter content.
//
// Running the pass twice in a row is a no-op the second time: after one
// run every group has a single member.
type Pass struct {
	Store *store.Store
}

// Run executes one dedup sweep and returns the number of titles removed.
func (p *Pass) Run(ctx context.Context) (int, error) {
	titles, err := p.Store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load titles: %w", err)
	}

	groups := make(map[string][]*models.Title)
	for i := range titles {
		t := &titles[i]
		key := scraper.NormalizeTitleKey(t.Name)
		if key == "" {
			// unnameable records group by their legacy-normalized slug
			key = "slug:" + slug.NormalizeLegacy(t.Slug)
		}
		groups[key] = append(groups[key], t)
	}

	removed := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}

		keep := group[0]
		for _, t := range group[1:] {
			if len(t.Chapters) > len(keep.Chapters) {
				keep = t
			}
		}

		for _, t := range group {
			if t.Slug == keep.Slug {
				continue
			}
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			log.Printf("[reconcile] duplicate of %s: deleting %s (%d chapters vs %d)",
				keep.Slug, t.Slug, len(t.Chapters), len(keep.Chapters))
			if err := p.Store.DeleteContentFor(ctx, t.Slug); err != nil {
				return removed, err
			}
			if err := p.Store.Delete(ctx, t.Slug); err != nil {
				return removed, err
			}
			removed++
		}
	}

	if removed > 0 {
		log.Printf("[reconcile] removed %d duplicate titles", removed)
	}
	return removed, nil
}
