package models_test

import (
	"testing"

	"mangamirror/pkg/models"
)

func TestChapterNumberValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12", 12},
		{"12.5", 12.5},
		{"0", 0},
		{"chapter-one", 0},
		{"", 0},
	}
	for _, c := range cases {
		if got := models.ChapterNumberValue(c.in); got != c.want {
			t.Errorf("ChapterNumberValue(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFindChapter(t *testing.T) {
	title := &models.Title{Chapters: []models.ChapterRef{
		{Number: "2", Title: "Chapter 2"},
		{Number: "1.5", Title: "Chapter 1.5"},
	}}

	ref := title.FindChapter("1.5")
	if ref == nil || ref.Title != "Chapter 1.5" {
		t.Fatalf("ref = %+v", ref)
	}
	if title.FindChapter("99") != nil {
		t.Error("found a chapter that does not exist")
	}
}
