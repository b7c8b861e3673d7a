package sitemap

import (
	"context"
	"net/url"
	"strings"

	"github.com/AI2HU/compscout/internal/fetcher"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/shared"
)

// WellKnownPaths are probed when robots.txt names no usable sitemap
var WellKnownPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
	"/sitemap/sitemap.xml",
}

// ResourceFetcher retrieves robots.txt and sitemap documents
type ResourceFetcher interface {
	FetchResource(ctx context.Context, url string) (*fetcher.Page, error)
}

// Config bounds discovery
type Config struct {
	UserAgent   string `mapstructure:"user_agent" yaml:"user_agent"`
	MaxSitemaps int    `mapstructure:"max_sitemaps" yaml:"max_sitemaps"`
	MaxURLs     int    `mapstructure:"max_urls" yaml:"max_urls"`
}

// DefaultConfig returns the default discovery bounds
func DefaultConfig() Config {
	return Config{
		UserAgent:   "compscout",
		MaxSitemaps: 25,
		MaxURLs:     2000,
	}
}

// Structure is what was learned about a site's layout
type Structure struct {
	BaseURL  string   `json:"baseUrl"`
	Rules    *Rules   `json:"-"`
	Sitemaps []string `json:"sitemaps"`
	URLs     []string `json:"urls"`
}

// Discoverer expands robots.txt and sitemaps into a list of crawlable URLs
type Discoverer struct {
	fetcher ResourceFetcher
	cfg     Config
}

// NewDiscoverer creates a discoverer
func NewDiscoverer(f ResourceFetcher, cfg Config) *Discoverer {
	d := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = d.UserAgent
	}
	if cfg.MaxSitemaps <= 0 {
		cfg.MaxSitemaps = d.MaxSitemaps
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = d.MaxURLs
	}
	return &Discoverer{fetcher: f, cfg: cfg}
}

// Discover reads robots.txt, expands the sitemaps it names (or the well-known
// locations) and returns the de-duplicated same-site URLs robots.txt allows.
// Missing robots.txt or sitemaps are not errors; only cancellation is.
func (d *Discoverer) Discover(ctx context.Context, rawURL string) (*Structure, error) {
	base := baseOf(rawURL)
	s := &Structure{BaseURL: base, Rules: ParseRobots("", d.cfg.UserAgent)}

	page, err := d.fetcher.FetchResource(ctx, base+"/robots.txt")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	switch {
	case err != nil:
		logger.Debug("No robots.txt for %s: %v", base, err)
	case page != nil:
		s.Rules = ParseRobots(page.HTML(), d.cfg.UserAgent)
	}

	seen := make(map[string]struct{})
	if len(s.Rules.Sitemaps) > 0 {
		d.expand(ctx, s, s.Rules.Sitemaps, seen)
	}
	if len(s.Sitemaps) == 0 {
		candidates := make([]string, len(WellKnownPaths))
		for i, p := range WellKnownPaths {
			candidates[i] = base + p
		}
		d.expand(ctx, s, candidates, seen)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	logger.Debug("Discovered %d URLs from %d sitemaps on %s", len(s.URLs), len(s.Sitemaps), base)
	return s, nil
}

// expand walks sitemaps breadth first, recording the ones that parsed and the
// allowed page URLs they list
func (d *Discoverer) expand(ctx context.Context, s *Structure, queue []string, seenURLs map[string]struct{}) {
	visited := make(map[string]struct{})
	fetches := 0

	for len(queue) > 0 && fetches < d.cfg.MaxSitemaps && len(s.URLs) < d.cfg.MaxURLs {
		if ctx.Err() != nil {
			return
		}
		current := queue[0]
		queue = queue[1:]
		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}
		fetches++

		page, err := d.fetcher.FetchResource(ctx, current)
		if err != nil || page == nil {
			logger.Debug("Sitemap %s unavailable: %v", current, err)
			continue
		}

		children, entries, err := ParseSitemap(page.Body)
		if err != nil {
			logger.Debug("Sitemap %s unparseable: %v", current, err)
			continue
		}
		s.Sitemaps = append(s.Sitemaps, current)
		queue = append(queue, children...)

		for _, e := range entries {
			if len(s.URLs) >= d.cfg.MaxURLs {
				break
			}
			loc := normalizeURL(e.Loc)
			if loc == "" || !shared.SameSite(loc, s.BaseURL) || !s.Rules.Allowed(loc) {
				continue
			}
			if _, dup := seenURLs[loc]; dup {
				continue
			}
			seenURLs[loc] = struct{}{}
			s.URLs = append(s.URLs, loc)
		}
	}
}

func baseOf(rawURL string) string {
	u, err := url.Parse(shared.EnsureScheme(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(shared.EnsureScheme(rawURL), "/")
	}
	return u.Scheme + "://" + u.Host
}

func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
