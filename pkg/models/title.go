package models

import "time"

// Title is the normalized, internal form of one catalogued serialized work.
//
// Every site adapter maps its scraped markup into this structure first,
// then the sync engine merges it against the stored record with the same
// slug. Zero values mean "not scraped"; the merge rules treat them as
// "keep whatever the store already has".
type Title struct {
	Slug         string       `json:"slug"`                    // our canonical ID, URL-safe
	OriginalSlug string       `json:"original_slug,omitempty"` // the source site's own identifier at last scrape
	Name         string       `json:"title"`
	SourceURL    string       `json:"source_url,omitempty"`
	CoverURL     string       `json:"cover_url,omitempty"`
	Synopsis     string       `json:"synopsis,omitempty"`
	Genres       []string     `json:"genres"`
	Author       string       `json:"author,omitempty"`
	Artist       string       `json:"artist,omitempty"`
	Status       string       `json:"status,omitempty"` // "ongoing", "completed", etc.
	Rating       float64      `json:"rating,omitempty"`
	Followers    int          `json:"followers,omitempty"`
	PostedAt     time.Time    `json:"posted_at,omitzero"`
	UpdatedAt    time.Time    `json:"updated_at,omitzero"`
	Chapters     []ChapterRef `json:"chapters"`
}

// FindChapter returns the reference with the given number, or nil.
func (t *Title) FindChapter(number string) *ChapterRef {
	for i := range t.Chapters {
		if t.Chapters[i].Number == number {
			return &t.Chapters[i]
		}
	}
	return nil
}
