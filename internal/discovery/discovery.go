// Package discovery crawls a website within a bounded budget and merges what
// its most relevant pages say about the business.
package discovery

import (
	"context"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AI2HU/compscout/internal/fetcher"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/shared"
	"github.com/AI2HU/compscout/internal/sitemap"
)

// PageFetcher fetches HTML pages
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// StructureDiscoverer lists the crawlable URLs of a site
type StructureDiscoverer interface {
	Discover(ctx context.Context, url string) (*sitemap.Structure, error)
}

// ContentExtractor turns a page into content
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string, body []byte) (*models.WebsiteContent, error)
}

// DefaultKeywords rank sitemap URLs by how likely they list offerings
var DefaultKeywords = []string{
	"product", "pricing", "price", "service", "menu", "rooms", "plans",
	"shop", "store", "collections", "catalog", "packages", "rates",
}

// Config bounds a single site crawl
type Config struct {
	MaxPages    int           `mapstructure:"max_pages" yaml:"max_pages"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	Budget      time.Duration `mapstructure:"budget" yaml:"budget"`
	Keywords    []string      `mapstructure:"keywords" yaml:"keywords,omitempty"`
}

// DefaultConfig returns the default crawl bounds
func DefaultConfig() Config {
	return Config{
		MaxPages:    6,
		Concurrency: 3,
		Budget:      90 * time.Second,
		Keywords:    DefaultKeywords,
	}
}

// Service discovers website content
type Service struct {
	pages     PageFetcher
	structure StructureDiscoverer
	extractor ContentExtractor
	cfg       Config
}

// New creates a discovery service. structure may be nil to crawl the home
// page only.
func New(pages PageFetcher, structure StructureDiscoverer, extractor ContentExtractor, cfg Config) *Service {
	d := DefaultConfig()
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = d.MaxPages
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.Budget <= 0 {
		cfg.Budget = d.Budget
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = d.Keywords
	}
	return &Service{pages: pages, structure: structure, extractor: extractor, cfg: cfg}
}

// DiscoverWebsiteContent never fails. A site that cannot be fetched yields an
// empty content shell carrying the normalized URL.
func (s *Service) DiscoverWebsiteContent(ctx context.Context, rawURL string) *models.WebsiteContent {
	target := shared.EnsureScheme(rawURL)
	empty := models.NewWebsiteContent(target)
	if target == "" {
		return empty
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	logger.Info("Discovering website content for %s", target)
	home := s.crawl(ctx, target)
	if home == nil {
		logger.Warning("No content discovered for %s", target)
		return empty
	}
	home.URL = target

	if s.cfg.MaxPages <= 1 || s.structure == nil {
		return home
	}

	structure, err := s.structure.Discover(ctx, target)
	if err != nil {
		logger.Warning("Site structure discovery failed for %s: %v", target, err)
		return home
	}

	extra := RankPages(structure.URLs, target, s.cfg.Keywords, s.cfg.MaxPages-1)
	if len(extra) == 0 {
		return home
	}
	logger.Debug("Crawling %d additional pages for %s", len(extra), target)

	results := make([]*models.WebsiteContent, len(extra))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range extra {
		g.Go(func() error {
			results[i] = s.crawl(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		home.Merge(r)
	}
	return home
}

func (s *Service) crawl(ctx context.Context, pageURL string) *models.WebsiteContent {
	page, err := s.pages.Fetch(ctx, pageURL)
	if err != nil {
		logger.Warning("Failed to fetch %s: %v", pageURL, err)
		return nil
	}
	if page == nil {
		logger.Debug("Page not found: %s", pageURL)
		return nil
	}

	source := page.FinalURL
	if source == "" {
		source = pageURL
	}
	content, err := s.extractor.Extract(ctx, source, page.Body)
	if err != nil {
		logger.Warning("Failed to extract %s: %v", pageURL, err)
		return nil
	}
	return content
}

var skippedExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".xml": true, ".zip": true, ".mp4": true,
}

// RankPages returns up to limit same-host URLs whose path mentions an offering
// keyword, best first. The home page itself is excluded.
func RankPages(urls []string, home string, keywords []string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	homeHost := shared.NormalizeDomain(home)
	homeKey := strings.TrimSuffix(shared.EnsureScheme(home), "/")

	type scored struct {
		url   string
		path  string
		score int
	}
	var candidates []scored
	seen := make(map[string]struct{})
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || shared.NormalizeDomain(u.Host) != homeHost {
			continue
		}
		p := strings.ToLower(u.Path)
		if skippedExtensions[path.Ext(p)] {
			continue
		}
		key := strings.TrimSuffix(raw, "/")
		if key == homeKey || p == "" || p == "/" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		score := 0
		for _, kw := range keywords {
			if strings.Contains(p, strings.ToLower(kw)) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{url: raw, path: p, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if len(a.path) != len(b.path) {
			return len(a.path) < len(b.path)
		}
		return a.url < b.url
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.url
	}
	return out
}
