package models

import (
	"strconv"
	"time"
)

// ChapterRef is a lightweight pointer to one installment of a Title,
// stored inside the Title record. Page images live in ChapterContent.
//
// Number is a decimal-valued identifier kept as the source site printed
// it ("12", "12.5"). It is unique within a Title and compared numerically.
type ChapterRef struct {
	Number      string    `json:"number"`
	Title       string    `json:"title,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// ChapterContent is the resolved page-image list for one chapter, stored
// separately from the Title and keyed by (slug, number). An absent record
// just means the pages have not been resolved yet.
type ChapterContent struct {
	Slug      string   `json:"slug"`
	Number    string   `json:"number"`
	Title     string   `json:"title,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	Pages     []string `json:"pages"`
}

// ChapterNumberValue parses a chapter number for numeric ordering.
// Unparseable numbers sort as zero.
func ChapterNumberValue(number string) float64 {
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0
	}
	return v
}
