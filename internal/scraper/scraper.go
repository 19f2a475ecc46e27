package scraper

import (
	"context"
	"strings"
	"unicode"

	"mangamirror/pkg/models"
)

// Site is implemented by each source-site adapter. An adapter owns the
// selectors and URL shapes for one site's markup; everything above it
// only sees normalized Title records.
type Site interface {
	Name() string

	// Domain returns the current base URL; SetDomain points the adapter
	// at a new origin after a failover.
	Domain() string
	SetDomain(domain string)

	// ListTitles walks the site's listing pages and calls fn once per
	// scraped title. A fetch or parse failure on one title is logged and
	// skipped; an error returned by fn aborts the walk. Each invocation
	// starts a fresh pagination walk with fresh per-run state.
	ListTitles(ctx context.Context, fn func(*models.Title) error) error

	// ChapterPages resolves the page-image URLs for one chapter. Called
	// lazily; most sync passes never need it.
	ChapterPages(ctx context.Context, chapterURL string) ([]string, error)
}

// NormalizeTitleKey converts a title to the canonical form used for fuzzy
// matching and dedup grouping: lowercase with every non-letter/digit rune
// dropped.
func NormalizeTitleKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FuzzyTitleMatch reports whether two titles are close enough to be the
// same work: one normalized form contains the other and their lengths
// differ by at most three runes. The length guard keeps unrelated titles
// that merely share a prefix from matching; short titles can still
// false-positive, which is a known precision limit of this heuristic.
func FuzzyTitleMatch(a, b string) bool {
	na, nb := NormalizeTitleKey(a), NormalizeTitleKey(b)
	if na == "" || nb == "" {
		return false
	}
	if !strings.Contains(na, nb) && !strings.Contains(nb, na) {
		return false
	}
	diff := len([]rune(na)) - len([]rune(nb))
	if diff < 0 {
		diff = -diff
	}
	return diff <= 3
}
