package slug

import (
	"regexp"
	"strings"
)

// All three functions here are pure and idempotent: applying any of them
// to already-clean input returns the input unchanged. They run both at
// scrape time and as a one-off migration over the whole catalog, so
// re-normalizing must never move a slug twice.

var (
	nonAlnumRun  = regexp.MustCompile(`[^a-z0-9]+`)
	leadingDigit = regexp.MustCompile(`^([0-9]+-)+`)
	hashSuffix   = regexp.MustCompile(`-[0-9a-f]{8,}$`)
	digitSuffix  = regexp.MustCompile(`(-[0-9]+)+$`)
)

// FromTitle derives a slug from human-readable title text: lowercase,
// non-alphanumeric runs collapsed to single dashes, edges trimmed.
func FromTitle(title string) string {
	s := strings.ToLower(title)
	s = nonAlnumRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// FromURL derives a slug from a source URL: the last non-empty path
// segment with the site's numeric ID prefix and any trailing content-hash
// suffix (a dash followed by 8+ hex characters) stripped.
func FromURL(rawURL string) string {
	seg := LastSegment(rawURL)
	if seg == "" {
		return ""
	}
	seg = leadingDigit.ReplaceAllString(seg, "")
	seg = hashSuffix.ReplaceAllString(seg, "")
	return FromTitle(seg)
}

// LastSegment returns the last non-empty path segment of a URL, raw.
// This is what the source site calls the title, and what we keep as
// originalSlug.
func LastSegment(rawURL string) string {
	rawURL = strings.SplitN(rawURL, "?", 2)[0]
	parts := strings.Split(rawURL, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// NormalizeLegacy strips the trailing "-<digits>" suffix an earlier slug
// scheme appended to disambiguate collisions.
func NormalizeLegacy(s string) string {
	return digitSuffix.ReplaceAllString(s, "")
}
