package competitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
	"github.com/AI2HU/compscout/internal/search"
	"github.com/AI2HU/compscout/internal/shared"
)

type candidate struct {
	domain string
	known  bool
	serp   *models.SearchCandidate
}

// DiscoverCompetitors finds, analyzes and ranks the competitors of a
// business. It fails when the catalog yields nothing to analyze, when the
// request is invalid, when every model stays saturated or when ctx ends.
// Individual analysis failures are only counted.
func (s *Service) DiscoverCompetitors(ctx context.Context, req Request) (*models.DiscoveryResult, error) {
	domain := shared.NormalizeDomain(req.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidRequest)
	}
	catalogURL := strings.TrimSpace(req.ProductCatalogURL)
	if catalogURL == "" {
		return nil, fmt.Errorf("%w: no product catalog url for %s", ErrCatalogUnavailable, domain)
	}

	started := s.now()
	logger.Info("Starting competitor discovery for %s", domain)

	business, err := s.businessContext(ctx, domain, catalogURL, req)
	if err != nil {
		return nil, err
	}

	strategy := s.searchStrategy(ctx, business, req.Location)
	logger.Info("Search strategy for %s: %s %q", domain, strategy.Type, strategy.Query)

	exclude := OwnDomains(domain, catalogURL)

	var (
		found     *search.Candidates
		suggested []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found = s.searchCandidates(gctx, strategy, exclude)
		return nil
	})
	g.Go(func() error {
		suggested = s.suggestCompetitors(gctx, business, req.Location)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := mergeCandidates(req.KnownCompetitors, found.Competitors, suggested, exclude, s.cfg.MaxCandidates)
	logger.Info("Analyzing %d candidates for %s", len(candidates), domain)

	insights, failed, err := s.analyzeAll(ctx, candidates, business)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(insights, func(i, j int) bool {
		if insights[i].MatchScore != insights[j].MatchScore {
			return insights[i].MatchScore > insights[j].MatchScore
		}
		return insights[i].Domain < insights[j].Domain
	})

	sources := appendUnique(s.recommendSources(ctx, business, strategy), found.ListingPlatforms...)

	known := make(map[string]struct{}, len(req.KnownCompetitors))
	for _, k := range req.KnownCompetitors {
		known[shared.NormalizeDomain(k)] = struct{}{}
	}
	existing := 0
	for _, in := range insights {
		if _, ok := known[in.Domain]; ok {
			existing++
		}
	}

	result := &models.DiscoveryResult{
		ID:                 s.newID(),
		Domain:             domain,
		BusinessType:       business.BusinessType,
		Competitors:        insights,
		RecommendedSources: sources,
		SearchStrategy:     strategy,
		Stats: models.DiscoveryStats{
			TotalDiscovered:     len(insights) + failed,
			NewCompetitors:      len(insights) - existing,
			ExistingCompetitors: existing,
			FailedAnalyses:      failed,
		},
		StartedAt:   started,
		CompletedAt: s.now(),
	}
	logger.Info("Competitor discovery for %s finished: %d competitors, %d failed",
		domain, len(insights), failed)
	return result, nil
}

// BusinessContext discovers the business site and its catalog. A catalog
// without analysable content fails with ErrCatalogUnavailable.
func (s *Service) BusinessContext(ctx context.Context, req Request) (*models.BusinessContext, error) {
	domain := shared.NormalizeDomain(req.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidRequest)
	}
	catalogURL := strings.TrimSpace(req.ProductCatalogURL)
	if catalogURL == "" {
		return nil, fmt.Errorf("%w: no product catalog url for %s", ErrCatalogUnavailable, domain)
	}
	return s.businessContext(ctx, domain, catalogURL, req)
}

func (s *Service) businessContext(ctx context.Context, domain, catalogURL string, req Request) (*models.BusinessContext, error) {
	var own, catalog *models.WebsiteContent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		own = s.discovery.DiscoverWebsiteContent(gctx, domain)
		return nil
	})
	g.Go(func() error {
		catalog = s.discovery.DiscoverWebsiteContent(gctx, catalogURL)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !catalog.HasContent() {
		return nil, fmt.Errorf("%w: nothing to analyze at %s", ErrCatalogUnavailable, catalogURL)
	}

	content := models.NewWebsiteContent(shared.EnsureScheme(domain))
	content.Merge(own)
	content.Merge(catalog)

	return &models.BusinessContext{
		Domain:           domain,
		BusinessType:     strings.TrimSpace(req.BusinessType),
		CatalogURL:       catalogURL,
		Content:          content,
		KnownCompetitors: req.KnownCompetitors,
	}, nil
}

// OwnDomains lists the domains that belong to the requester
func OwnDomains(domain, catalogURL string) []string {
	out := []string{shared.NormalizeDomain(domain)}
	if host := shared.NormalizeDomain(catalogURL); host != "" && host != out[0] {
		out = append(out, host)
	}
	return out
}

// mergeCandidates unions known, searched and suggested domains in that
// order, dropping the requester's domains and duplicates, up to limit.
func mergeCandidates(known []string, found []models.SearchCandidate, suggested []string, exclude []string, limit int) []candidate {
	var out []candidate
	seen := make(map[string]int)
	add := func(c candidate) {
		if c.domain == "" || !strings.Contains(c.domain, ".") || shared.MatchesAny(c.domain, exclude) {
			return
		}
		if i, ok := seen[c.domain]; ok {
			if out[i].serp == nil {
				out[i].serp = c.serp
			}
			return
		}
		if len(out) >= limit {
			return
		}
		seen[c.domain] = len(out)
		out = append(out, c)
	}

	for _, k := range known {
		add(candidate{domain: shared.NormalizeDomain(k), known: true})
	}
	for i := range found {
		add(candidate{domain: shared.NormalizeDomain(found[i].Domain), serp: &found[i]})
	}
	for _, d := range suggested {
		d = shared.NormalizeDomain(d)
		if search.IsListingPlatform(d) {
			continue
		}
		add(candidate{domain: d})
	}
	return out
}

// analyzeAll runs AnalyzeCompetitor for every candidate with bounded
// parallelism. Failures are counted; saturation of every model aborts.
func (s *Service) analyzeAll(ctx context.Context, candidates []candidate, business *models.BusinessContext) ([]models.CompetitorInsight, int, error) {
	var (
		mu       sync.Mutex
		insights = []models.CompetitorInsight{}
		failed   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, c := range candidates {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.cfg.CandidateTimeout)
			defer cancel()

			insight, err := s.AnalyzeCompetitor(cctx, c.domain, business, c.serp)
			if err != nil {
				if errors.Is(err, router.ErrModelSaturation) {
					return err
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warning("Analysis of %s failed: %v", c.domain, err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			insights = append(insights, *insight)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("competitor analysis aborted: %w", err)
	}
	return insights, failed, nil
}
