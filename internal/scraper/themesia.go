package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"mangamirror/internal/slug"
	"mangamirror/pkg/models"
)

// Themesia scrapes sites built on the Themesia/MangaStream WordPress
// theme (asura and its many mirrors). All selectors live here; the rest
// of the pipeline is site-agnostic.
type Themesia struct {
	client *resty.Client

	mu     sync.RWMutex
	domain string
}

var (
	chapterNumRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?`)
	followersRe  = regexp.MustCompile(`Followed by\s+(.+?)\s+people`)
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)
)

func NewThemesia(domain string) *Themesia {
	client := resty.New().
		SetTimeout(20 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0").
		SetRetryCount(1).
		SetRetryWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests
		})

	return &Themesia{client: client, domain: strings.TrimRight(domain, "/")}
}

func (t *Themesia) Name() string { return "themesia" }

func (t *Themesia) Domain() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.domain
}

func (t *Themesia) SetDomain(domain string) {
	t.mu.Lock()
	t.domain = strings.TrimRight(domain, "/")
	t.mu.Unlock()
}

// runState is scoped to one listing walk so successive runs never share
// pagination offsets or date-disambiguation counts.
type runState struct {
	seen  map[string]bool // source URLs already yielded this run
	dates map[string]int  // occurrences per pinned update instant
}

func (t *Themesia) ListTitles(ctx context.Context, fn func(*models.Title) error) error {
	run := &runState{
		seen:  make(map[string]bool),
		dates: make(map[string]int),
	}

	for page := 1; ; page++ {
		listURL := fmt.Sprintf("%s/manga/?page=%d&order=update", t.Domain(), page)
		doc, err := t.fetchDoc(ctx, listURL)
		if err != nil {
			return fmt.Errorf("listing page %d: %w", page, err)
		}

		newThisPage := 0
		var walkErr error
		doc.Find("div.listupd a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			name := strings.TrimSpace(a.AttrOr("title", ""))
			href := a.AttrOr("href", "")
			if name == "" || href == "" || run.seen[href] {
				return true
			}
			run.seen[href] = true
			newThisPage++

			title, err := t.titleDetails(ctx, run, name, href)
			if err != nil {
				// one broken title should not kill the whole walk
				log.Printf("[scraper] skip %s: %v", href, err)
				return ctx.Err() == nil
			}

			if err := fn(title); err != nil {
				walkErr = err
				return false
			}
			return true
		})
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// a page with nothing unseen means pagination has looped
		if newThisPage == 0 {
			return nil
		}
	}
}

// titleDetails fetches a title's detail page and extracts the full record
// including its chapter list.
func (t *Themesia) titleDetails(ctx context.Context, run *runState, listName, href string) (*models.Title, error) {
	doc, err := t.fetchDoc(ctx, href)
	if err != nil {
		return nil, err
	}

	name := extractName(doc, listName)
	if name == "" {
		// a record with no resolvable name would just pollute the catalog
		return nil, fmt.Errorf("no title text found")
	}

	s := slug.FromTitle(name)
	if u := slug.FromURL(href); u != "" && u != s {
		s = u
	}

	title := &models.Title{
		Slug:         s,
		OriginalSlug: slug.LastSegment(href),
		Name:         name,
		SourceURL:    href,
	}

	info := doc.Find("div.bigcontent")
	title.CoverURL = info.Find("img").First().AttrOr("src", "")
	title.Synopsis = strings.TrimSpace(info.Find(".entry-content").First().Text())
	title.Status = strings.TrimSpace(info.Find(".tsinfo .imptdt i").First().Text())

	info.Find(".mgen a").Each(func(_ int, g *goquery.Selection) {
		if v := strings.TrimSpace(g.Text()); v != "" {
			title.Genres = append(title.Genres, v)
		}
	})

	if v := strings.TrimSpace(info.Find(".rating .num").First().Text()); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r >= 0 {
			title.Rating = r
		}
	}
	if m := followersRe.FindStringSubmatch(info.Find(".rt .bmc").Text()); m != nil {
		if n, err := strconv.Atoi(nonDigitRe.ReplaceAllString(m[1], "")); err == nil {
			title.Followers = n
		}
	}

	fields := fieldTable(info)
	title.Author = fields["Author"]
	title.Artist = fields["Artist"]
	title.PostedAt = parseSiteDate(fields["Posted On"])
	title.UpdatedAt = disambiguate(run, parseSiteDate(fields["Updated On"]))

	title.Chapters = extractChapters(doc)
	return title, nil
}

// extractName tries the structural selector first, then the page <title>,
// then the social-preview metadata, then whatever the listing anchor
// carried. First match wins.
func extractName(doc *goquery.Document, listName string) string {
	if v := strings.TrimSpace(doc.Find("div.bigcontent .infox h1").First().Text()); v != "" {
		return v
	}
	if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		// strip the " - SiteName" / " – SiteName" suffix
		for _, sep := range []string{" – ", " - ", " | "} {
			if i := strings.Index(v, sep); i > 0 {
				v = v[:i]
				break
			}
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return strings.TrimSpace(listName)
}

// fieldTable reads the theme's label/value rows ("Author", "Posted On", ...).
func fieldTable(info *goquery.Selection) map[string]string {
	fields := make(map[string]string)
	info.Find(".fmed").Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find("b").First().Text())
		value := strings.TrimSpace(row.Find("span").First().Text())
		if name == "" || value == "" {
			return
		}
		fields[name] = cleanFieldValue(value)
	})
	return fields
}

// cleanFieldValue drops commas and collapses non-space whitespace.
func cleanFieldValue(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	f := strings.Fields(s)
	return strings.Join(f, " ")
}

func extractChapters(doc *goquery.Document) []models.ChapterRef {
	var refs []models.ChapterRef
	doc.Find("#chapterlist ul li").Each(func(_ int, li *goquery.Selection) {
		num := chapterNumRe.FindString(strings.TrimSpace(li.AttrOr("data-num", "")))
		a := li.Find("a").First()
		href := a.AttrOr("href", "")
		if num == "" || href == "" {
			return
		}
		refs = append(refs, models.ChapterRef{
			Number:      num,
			Title:       strings.TrimSpace(a.Find(".chapternum").First().Text()),
			SourceURL:   href,
			PublishedAt: parseSiteDate(a.Find(".chapterdate").First().Text()),
		})
	})

	sortChapterRefsAsc(refs)
	return refs
}

func sortChapterRefsAsc(refs []models.ChapterRef) {
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && models.ChapterNumberValue(refs[j].Number) < models.ChapterNumberValue(refs[j-1].Number); j-- {
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}
}

// ChapterPages resolves the reader-area image URLs for one chapter.
func (t *Themesia) ChapterPages(ctx context.Context, chapterURL string) ([]string, error) {
	doc, err := t.fetchDoc(ctx, chapterURL)
	if err != nil {
		return nil, err
	}

	var pages []string
	doc.Find("#readerarea img").Each(func(_ int, img *goquery.Selection) {
		// watermark/credit images sit in a marked wrapper
		if parent := img.Parent(); strings.Contains(parent.AttrOr("class", ""), "rights") {
			return
		}
		if src := img.AttrOr("src", ""); src != "" {
			pages = append(pages, src)
		}
	})
	return pages, nil
}

func (t *Themesia) fetchDoc(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := t.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// siteDateLayouts cover the formats the theme has been seen printing.
var siteDateLayouts = []string{
	"January 2 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2006-01-02",
}

func parseSiteDate(s string) time.Time {
	s = cleanFieldValue(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}
	}
	for _, layout := range siteDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// disambiguate pins an update date to hour 16 and pushes repeated
// instants back one hour per prior occurrence, so titles updated in the
// same scrape window keep a distinct sort order.
func disambiguate(run *runState, t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = time.Date(t.Year(), t.Month(), t.Day(), 16, 0, 0, 0, time.UTC)
	key := t.Format(time.RFC3339)
	n := run.dates[key]
	run.dates[key] = n + 1
	if n > 0 {
		t = t.Add(-time.Duration(n) * time.Hour)
	}
	return t
}
