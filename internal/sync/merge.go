package sync

import (
	"sort"
	"strings"
	"time"

	"mangamirror/pkg/models"
)

// MergeTitle folds a freshly scraped record into the stored one. Scraped
// values win only when they carry information: empty strings and
// non-positive numbers never replace a populated stored field, so a bad
// scrape cannot regress the catalog. UpdatedAt is always refreshed.
func MergeTitle(stored, scraped *models.Title, now time.Time) *models.Title {
	out := *stored

	if scraped.OriginalSlug != "" {
		out.OriginalSlug = scraped.OriginalSlug
	}
	if scraped.Name != "" {
		out.Name = scraped.Name
	}
	if scraped.SourceURL != "" {
		out.SourceURL = scraped.SourceURL
	}
	if scraped.CoverURL != "" {
		out.CoverURL = scraped.CoverURL
	}
	if scraped.Synopsis != "" {
		out.Synopsis = scraped.Synopsis
	}
	if len(scraped.Genres) > 0 {
		out.Genres = append([]string(nil), scraped.Genres...)
	}
	if scraped.Author != "" {
		out.Author = scraped.Author
	}
	if scraped.Artist != "" {
		out.Artist = scraped.Artist
	}
	if scraped.Status != "" {
		out.Status = scraped.Status
	}
	if scraped.Rating > 0 {
		out.Rating = scraped.Rating
	}
	if scraped.Followers > 0 {
		out.Followers = scraped.Followers
	}
	if out.PostedAt.IsZero() {
		out.PostedAt = scraped.PostedAt
	}

	out.UpdatedAt = now
	out.Chapters = MergeChapters(stored.Chapters, scraped.Chapters)
	return &out
}

// MergeChapters merges two reference lists by chapter number. Numbers
// present only in the scrape are added, stored numbers are never dropped,
// and when both sides carry the same number the cleaner title wins. The
// result is sorted by descending number.
func MergeChapters(stored, scraped []models.ChapterRef) []models.ChapterRef {
	byNum := make(map[string]models.ChapterRef, len(stored)+len(scraped))
	order := make([]string, 0, len(stored)+len(scraped))

	for _, ref := range stored {
		if _, ok := byNum[ref.Number]; !ok {
			order = append(order, ref.Number)
		}
		byNum[ref.Number] = ref
	}
	for _, ref := range scraped {
		if cur, ok := byNum[ref.Number]; ok {
			byNum[ref.Number] = betterRef(cur, ref)
		} else {
			byNum[ref.Number] = ref
			order = append(order, ref.Number)
		}
	}

	out := make([]models.ChapterRef, 0, len(order))
	for _, num := range order {
		out = append(out, byNum[num])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return models.ChapterNumberValue(out[i].Number) > models.ChapterNumberValue(out[j].Number)
	})
	return out
}

// betterRef picks between two references to the same chapter number:
// a canonical "Chapter N" title beats a noisy one, otherwise the shorter
// title wins, ties keeping the stored side. Whichever wins inherits any
// details it is missing from the loser.
func betterRef(stored, scraped models.ChapterRef) models.ChapterRef {
	win, lose := stored, scraped

	cs, cn := isCanonicalChapterTitle(stored), isCanonicalChapterTitle(scraped)
	switch {
	case cs && !cn:
		// keep stored
	case cn && !cs:
		win, lose = scraped, stored
	default:
		if len(strings.TrimSpace(scraped.Title)) < len(strings.TrimSpace(stored.Title)) {
			win, lose = scraped, stored
		}
	}

	if win.Title == "" {
		win.Title = lose.Title
	}
	if win.SourceURL == "" {
		win.SourceURL = lose.SourceURL
	}
	if win.PublishedAt.IsZero() {
		win.PublishedAt = lose.PublishedAt
	}
	return win
}

func isCanonicalChapterTitle(ref models.ChapterRef) bool {
	return strings.EqualFold(strings.TrimSpace(ref.Title), "Chapter "+ref.Number)
}
