package failover

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mangamirror/internal/events"
	"mangamirror/internal/store"
)

// Detector probes the configured source domain and follows site
// migrations. Scanlation hosts move domains often; when the old origin
// answers with a redirect we adopt the new origin and rewrite every
// stored absolute URL that pointed at the old one.
//
// The probe is deliberately fail-safe: anything other than an explicit
// redirect (timeouts, 403 walls, 5xx) is treated as "domain still
// reachable, do nothing".
type Detector struct {
	Store  *store.Store
	Events *events.Hub
	Client *http.Client
}

func NewDetector(st *store.Store, hub *events.Hub) *Detector {
	return &Detector{
		Store:  st,
		Events: hub,
		Client: &http.Client{
			Timeout: 15 * time.Second,
			// redirects are the signal, never follow them
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Check probes the current domain once. It returns the new domain when a
// migration was detected and applied, or "" when nothing changed.
func (d *Detector) Check(ctx context.Context) (string, error) {
	domain, err := d.Store.SourceDomain(ctx)
	if err != nil {
		return "", fmt.Errorf("read source domain: %w", err)
	}
	if domain == "" {
		return "", fmt.Errorf("no source domain configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, domain, nil)
	if err != nil {
		return "", fmt.Errorf("build probe request: %w", err)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		log.Printf("[failover] probe %s: %v", domain, err)
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return "", nil
	}

	location := resp.Header.Get("Location")
	if location == "" {
		log.Printf("[failover] probe %s: status %d, no redirect", domain, resp.StatusCode)
		return "", nil
	}

	target, err := resp.Request.URL.Parse(location)
	if err != nil {
		log.Printf("[failover] probe %s: bad redirect %q: %v", domain, location, err)
		return "", nil
	}
	newDomain := target.Scheme + "://" + target.Host
	oldOrigin := originOf(domain)
	if newDomain == oldOrigin {
		return "", nil
	}

	log.Printf("[failover] domain moved: %s -> %s", domain, newDomain)
	if err := d.Store.SetSourceDomain(ctx, newDomain); err != nil {
		return "", fmt.Errorf("store new domain: %w", err)
	}
	if err := d.RewriteOrigin(ctx, oldOrigin, newDomain); err != nil {
		return newDomain, fmt.Errorf("rewrite urls: %w", err)
	}

	d.Events.Publish(events.Event{Type: events.DomainMoved, Domain: newDomain})
	return newDomain, nil
}

// RewriteOrigin rewrites every stored absolute URL whose origin equals
// oldOrigin to point at newOrigin, reporting progress as a percentage.
// URLs on unrelated origins are untouched.
func (d *Detector) RewriteOrigin(ctx context.Context, oldOrigin, newOrigin string) error {
	titles, err := d.Store.All(ctx)
	if err != nil {
		return fmt.Errorf("load titles: %w", err)
	}
	content, err := d.Store.AllContent(ctx)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	total := len(titles) + len(content)
	done := 0
	lastPercent := -1
	progress := func() {
		done++
		if total == 0 {
			return
		}
		percent := done * 100 / total
		if percent/10 != lastPercent/10 {
			log.Printf("[failover] rewrite progress: %d%% (%d/%d)", percent, done, total)
		}
		lastPercent = percent
	}

	for i := range titles {
		t := &titles[i]
		changed := false
		changed = rewriteURL(&t.SourceURL, oldOrigin, newOrigin) || changed
		changed = rewriteURL(&t.CoverURL, oldOrigin, newOrigin) || changed
		for j := range t.Chapters {
			changed = rewriteURL(&t.Chapters[j].SourceURL, oldOrigin, newOrigin) || changed
		}
		if changed {
			if err := d.Store.Put(ctx, t); err != nil {
				return fmt.Errorf("rewrite title %s: %w", t.Slug, err)
			}
		}
		progress()
	}

	for i := range content {
		c := &content[i]
		changed := rewriteURL(&c.SourceURL, oldOrigin, newOrigin)
		for j := range c.Pages {
			changed = rewriteURL(&c.Pages[j], oldOrigin, newOrigin) || changed
		}
		if changed {
			if err := d.Store.PutContent(ctx, c); err != nil {
				return fmt.Errorf("rewrite content %s/%s: %w", c.Slug, c.Number, err)
			}
		}
		progress()
	}

	return nil
}

// rewriteURL swaps the origin in place when it matches oldOrigin exactly.
func rewriteURL(raw *string, oldOrigin, newOrigin string) bool {
	if *raw == "" {
		return false
	}
	u, err := url.Parse(*raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if u.Scheme+"://"+u.Host != oldOrigin {
		return false
	}
	*raw = newOrigin + strings.TrimPrefix(*raw, oldOrigin)
	return true
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(rawURL, "/")
	}
	return u.Scheme + "://" + u.Host
}
