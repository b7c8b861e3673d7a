package competitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
	"github.com/AI2HU/compscout/internal/search"
)

type fakeInvoker struct {
	mu      sync.Mutex
	calls   []string
	respond func(operation, prompt string) (string, error)
}

func (f *fakeInvoker) Invoke(ctx context.Context, operation, prompt, preferred string) (*router.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, operation)
	f.mu.Unlock()
	text, err := f.respond(operation, prompt)
	if err != nil {
		return nil, err
	}
	return &router.Result{Text: text, Model: "fake-model", Provider: "fake"}, nil
}

func (f *fakeInvoker) count(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == operation {
			n++
		}
	}
	return n
}

type fakeDiscoverer struct {
	mu         sync.Mutex
	sites      map[string]*models.WebsiteContent
	discovered []string
}

func (f *fakeDiscoverer) DiscoverWebsiteContent(ctx context.Context, url string) *models.WebsiteContent {
	f.mu.Lock()
	f.discovered = append(f.discovered, url)
	f.mu.Unlock()
	if c, ok := f.sites[url]; ok {
		return c
	}
	return models.NewWebsiteContent("https://" + url)
}

type fakeSearcher struct {
	candidates *search.Candidates
	signals    []search.PriceSignal
	queries    []string
	mu         sync.Mutex
}

func (f *fakeSearcher) FindCandidates(ctx context.Context, q search.Query, exclude []string) (*search.Candidates, error) {
	if f.candidates == nil {
		return nil, errors.New("search unavailable")
	}
	return f.candidates, nil
}

func (f *fakeSearcher) PriceSignals(ctx context.Context, query string) ([]search.PriceSignal, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if strings.HasSuffix(query, " pricing") {
		return f.signals, nil
	}
	return nil, nil
}

func catalogContent() *models.WebsiteContent {
	c := models.NewWebsiteContent("https://shop.mybiz.com/catalog")
	c.Title = "My Biz Coffee"
	c.Description = "Neighbourhood coffee shop"
	c.Categories = []string{"Coffee"}
	c.Products = []models.Offering{
		{Name: "Latte", Price: 4.5, Currency: "$"},
		{Name: "House Blend", Price: 14, Currency: "$"},
	}
	c.MainContent = "Latte 4.50 House Blend 14.00"
	return c
}

func competitorContent(domain, title string, price float64) *models.WebsiteContent {
	c := models.NewWebsiteContent("https://" + domain)
	c.Title = title
	c.Categories = []string{"coffee", "Tea"}
	c.Products = []models.Offering{{Name: "Latte", Price: price, Currency: "$", URL: "https://" + domain + "/menu"}}
	c.Metadata.Prices = []models.PriceData{{Price: price, Currency: "$"}}
	c.MainContent = title + " serves coffee"
	return c
}

func domainOf(prompt string) string {
	i := strings.Index(prompt, "COMPETITOR\nDomain: ")
	if i < 0 {
		return ""
	}
	rest := prompt[i+len("COMPETITOR\nDomain: "):]
	return rest[:strings.Index(rest, "\n")]
}

func newTestService(llm Invoker, d ContentDiscoverer, s Searcher) *Service {
	cfg := DefaultConfig()
	cfg.Concurrency = 2
	svc := New(llm, d, s, cfg)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	svc.newID = func() string { return "run-1" }
	return svc
}

func baseSites() map[string]*models.WebsiteContent {
	own := models.NewWebsiteContent("https://mybiz.com")
	own.Title = "My Biz"
	own.MainContent = "Welcome"
	return map[string]*models.WebsiteContent{
		"mybiz.com":                      own,
		"https://shop.mybiz.com/catalog": catalogContent(),
	}
}

func TestDiscoverCompetitorsCountsFailedAnalyses(t *testing.T) {
	sites := baseSites()
	a := models.NewWebsiteContent("https://a.com")
	a.MainContent = "A coffee"
	sites["a.com"] = a
	sites["b.com"] = competitorContent("b.com", "B Coffee", 5)
	disc := &fakeDiscoverer{sites: sites}

	searcher := &fakeSearcher{candidates: &search.Candidates{
		Competitors: []models.SearchCandidate{
			{Domain: "a.com", Link: "https://a.com", Source: "maps"},
			{Domain: "b.com", Link: "https://b.com", Source: "maps"},
			{Domain: "shop.mybiz.com", Link: "https://shop.mybiz.com", Source: "maps"},
		},
		ListingPlatforms: []string{"yelp.com", "tripadvisor.com"},
	}}

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		switch op {
		case OperationSearchStrategy:
			return `{"type": "maps", "query": "coffee shops springfield"}`, nil
		case OperationSuggestCompetitors:
			return "```json\n[\"b.com\", \"yelp.com\", \"www.mybiz.com\"]\n```", nil
		case OperationRecommendSources:
			return `["Google Maps", "yelp.com"]`, nil
		case OperationMatchOfferings:
			return `[]`, nil
		case OperationAnalyzeCompetitor:
			if domainOf(prompt) == "a.com" {
				return "", errors.New("provider exploded")
			}
			return `{"businessName": "B Coffee", "matchScore": 72,
				"matchReasons": ["Same menu"],
				"products": [{"name": "Latte", "url": "/menu", "price": 5,
					"matchedProducts": [{"name": "Latte", "matchScore": 140, "priceDiff": 99}]}],
				"monitoringUrls": ["/menu", "https://other.com/x"]}`, nil
		}
		return "", fmt.Errorf("unexpected operation %s", op)
	}}

	svc := newTestService(llm, disc, searcher)
	result, err := svc.DiscoverCompetitors(context.Background(), Request{
		Domain:            "https://www.mybiz.com",
		BusinessType:      "coffee shop",
		ProductCatalogURL: "https://shop.mybiz.com/catalog",
		Location:          "Springfield",
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.ID)
	assert.Equal(t, "mybiz.com", result.Domain)
	assert.Equal(t, models.SearchStrategy{Type: "maps", Query: "coffee shops springfield", Location: "Springfield"}, result.SearchStrategy)
	assert.Equal(t, models.DiscoveryStats{TotalDiscovered: 2, NewCompetitors: 1, FailedAnalyses: 1}, result.Stats)
	assert.Equal(t, []string{"Google Maps", "yelp.com", "tripadvisor.com"}, result.RecommendedSources)

	require.Len(t, result.Competitors, 1)
	b := result.Competitors[0]
	assert.Equal(t, "b.com", b.Domain)
	assert.Equal(t, "B Coffee", b.BusinessName)
	assert.Equal(t, 72.0, b.MatchScore)
	assert.Equal(t, []string{"https://b.com/menu"}, b.MonitoringURLs)

	require.Len(t, b.Products, 1)
	latte := b.Products[0]
	assert.Equal(t, "https://b.com/menu", latte.URL)
	require.Len(t, latte.MatchedProducts, 1)
	assert.Equal(t, 100.0, latte.MatchedProducts[0].MatchScore)
	require.NotNil(t, latte.MatchedProducts[0].PriceDiff)
	assert.Equal(t, 0.5, *latte.MatchedProducts[0].PriceDiff)

	require.Len(t, b.PriceMatches, 1)
	assert.Equal(t, MatchSourceHeuristic, b.PriceMatches[0].Source)
	assert.Contains(t, b.DataGaps, GapReviews)
	assert.Contains(t, b.DataGaps, GapContact)
	assert.NotContains(t, b.DataGaps, GapPricing)

	assert.NotContains(t, disc.discovered, "shop.mybiz.com")
	assert.NotContains(t, disc.discovered, "yelp.com")
}

func TestDiscoverCompetitorsRanksByScore(t *testing.T) {
	sites := baseSites()
	sites["b.com"] = competitorContent("b.com", "B", 5)
	sites["c.com"] = competitorContent("c.com", "C", 6)
	sites["d.com"] = competitorContent("d.com", "D", 4)
	scores := map[string]int{"b.com": 72, "c.com": 40, "d.com": 72}

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		switch op {
		case OperationAnalyzeCompetitor:
			return fmt.Sprintf(`{"matchScore": %d}`, scores[domainOf(prompt)]), nil
		case OperationSuggestCompetitors:
			return `["d.com", "b.com"]`, nil
		}
		return "not json", nil
	}}

	svc := newTestService(llm, &fakeDiscoverer{sites: sites}, nil)
	result, err := svc.DiscoverCompetitors(context.Background(), Request{
		Domain:            "mybiz.com",
		BusinessType:      "coffee shop",
		KnownCompetitors:  []string{"www.c.com"},
		ProductCatalogURL: "https://shop.mybiz.com/catalog",
	})
	require.NoError(t, err)

	var order []string
	for _, c := range result.Competitors {
		order = append(order, c.Domain)
	}
	assert.Equal(t, []string{"b.com", "d.com", "c.com"}, order)
	assert.Equal(t, models.DiscoveryStats{TotalDiscovered: 3, NewCompetitors: 2, ExistingCompetitors: 1}, result.Stats)
	assert.Equal(t, "maps", result.SearchStrategy.Type)
	assert.Equal(t, []string{}, result.RecommendedSources)
}

func TestDiscoverCompetitorsCatalogUnavailable(t *testing.T) {
	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) { return "", nil }}

	svc := newTestService(llm, &fakeDiscoverer{sites: baseSites()}, nil)
	_, err := svc.DiscoverCompetitors(context.Background(), Request{Domain: "mybiz.com"})
	assert.ErrorIs(t, err, ErrCatalogUnavailable)

	_, err = svc.DiscoverCompetitors(context.Background(), Request{
		Domain:            "mybiz.com",
		ProductCatalogURL: "https://mybiz.com/empty",
	})
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Zero(t, llm.count(OperationSearchStrategy))

	_, err = svc.DiscoverCompetitors(context.Background(), Request{ProductCatalogURL: "https://mybiz.com/catalog"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDiscoverCompetitorsAbortsOnSaturation(t *testing.T) {
	sites := baseSites()
	sites["b.com"] = competitorContent("b.com", "B", 5)
	sites["c.com"] = competitorContent("c.com", "C", 6)

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		if op == OperationAnalyzeCompetitor {
			return "", router.ErrModelSaturation
		}
		return `[]`, nil
	}}

	svc := newTestService(llm, &fakeDiscoverer{sites: sites}, nil)
	result, err := svc.DiscoverCompetitors(context.Background(), Request{
		Domain:            "mybiz.com",
		KnownCompetitors:  []string{"b.com", "c.com"},
		ProductCatalogURL: "https://shop.mybiz.com/catalog",
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, router.ErrModelSaturation)
}

func TestDiscoverCompetitorsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) { return "", ctx.Err() }}
	svc := newTestService(llm, &fakeDiscoverer{sites: baseSites()}, nil)
	_, err := svc.DiscoverCompetitors(ctx, Request{
		Domain:            "mybiz.com",
		ProductCatalogURL: "https://shop.mybiz.com/catalog",
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func business(t *testing.T, svc *Service) *models.BusinessContext {
	t.Helper()
	b, err := svc.BusinessContext(context.Background(), Request{
		Domain:            "mybiz.com",
		BusinessType:      "coffee shop",
		ProductCatalogURL: "https://shop.mybiz.com/catalog",
	})
	require.NoError(t, err)
	return b
}

func TestAnalyzeCompetitorUnparseableInsightUsesDefaults(t *testing.T) {
	sites := baseSites()
	sites["b.com"] = competitorContent("b.com", "B Coffee", 5)

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		if op == OperationMatchOfferings {
			return "no idea", nil
		}
		return "I could not produce JSON, sorry.", nil
	}}
	svc := newTestService(llm, &fakeDiscoverer{sites: sites}, nil)

	rating, reviews := 4.5, 120
	serp := &models.SearchCandidate{Domain: "b.com", Title: "B Coffee Roasters", Rating: &rating, ReviewCount: &reviews, PriceRange: "$$"}

	insight, err := svc.AnalyzeCompetitor(context.Background(), "www.b.com", business(t, svc), serp)
	require.NoError(t, err)

	assert.Equal(t, "b.com", insight.Domain)
	assert.Equal(t, "B Coffee", insight.BusinessName)
	// half the offerings matched, half the terms shared
	assert.Equal(t, 50.0, insight.MatchScore)
	assert.Contains(t, insight.DataGaps, GapStructured)
	assert.NotContains(t, insight.DataGaps, GapReviews)
	assert.Equal(t, []string{
		"1 of our offerings have a comparable competitor item",
		"Shared categories: Coffee",
	}, insight.MatchReasons)
	assert.NotEmpty(t, insight.SuggestedApproach)
	assert.Equal(t, &rating, insight.Rating)
	assert.Equal(t, "$$", insight.PriceRange)

	require.Len(t, insight.Products, 1)
	assert.Equal(t, "Latte", insight.Products[0].Name)
	assert.Equal(t, "https://b.com/menu", insight.Products[0].URL)
	require.Len(t, insight.Products[0].MatchedProducts, 1)
	assert.Equal(t, 100.0, insight.Products[0].MatchedProducts[0].MatchScore)
	assert.Equal(t, 0.5, *insight.Products[0].MatchedProducts[0].PriceDiff)
	assert.Equal(t, []string{"https://b.com/menu"}, insight.MonitoringURLs)
}

func TestAnalyzeCompetitorDropsOwnProductsAndClamps(t *testing.T) {
	sites := baseSites()
	c := models.NewWebsiteContent("https://c.com")
	c.MainContent = "C Coffee"
	c.Metadata.ContactInfo.Emails = []string{"hi@c.com"}
	sites["c.com"] = c

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		switch op {
		case OperationMatchOfferings:
			return `[{"offering": "House Blend", "competitorItem": "House Blend Beans 1kg", "confidence": 3}]`, nil
		case OperationAnalyzeCompetitor:
			return `{"matchScore": 180, "products": [
				{"name": "Stolen Latte", "url": "https://mybiz.com/latte", "price": 4},
				{"name": "Mocha", "url": "https://c.com/mocha", "price": -2,
					"matchedProducts": [{"name": "Latte", "matchScore": -5, "priceDiff": 3}]}]}`, nil
		}
		return "", errors.New("unexpected")
	}}
	searcher := &fakeSearcher{signals: []search.PriceSignal{
		{Price: 12, Currency: "$", Title: "House Blend Beans 1kg", Link: "https://c.com/beans"},
		{Price: 3, Currency: "$", Title: "Latte", Link: "https://mybiz.com/latte"},
	}}

	svc := newTestService(llm, &fakeDiscoverer{sites: sites}, searcher)
	insight, err := svc.AnalyzeCompetitor(context.Background(), "c.com", business(t, svc), nil)
	require.NoError(t, err)

	assert.Equal(t, 100.0, insight.MatchScore)
	assert.Equal(t, []string{"c.com pricing", "c.com Latte price", "c.com House Blend price"}, searcher.queries)

	require.Len(t, insight.PriceMatches, 1)
	m := insight.PriceMatches[0]
	assert.Equal(t, MatchSourceLLM, m.Source)
	assert.Equal(t, 1.0, m.Similarity)
	assert.Equal(t, 12.0, m.CompetitorPrice)

	var names []string
	for _, p := range insight.Products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Mocha", "House Blend Beans 1kg"}, names)

	mocha := insight.Products[0]
	assert.Nil(t, mocha.Price)
	require.Len(t, mocha.MatchedProducts, 1)
	assert.Equal(t, 0.0, mocha.MatchedProducts[0].MatchScore)
	assert.Nil(t, mocha.MatchedProducts[0].PriceDiff)

	beans := insight.Products[1]
	assert.Equal(t, "https://c.com/beans", beans.URL)
	require.Len(t, beans.MatchedProducts, 1)
	assert.Equal(t, "House Blend", beans.MatchedProducts[0].Name)
	assert.Equal(t, -2.0, *beans.MatchedProducts[0].PriceDiff)

	assert.Equal(t, "$12.00", insight.PriceRange)
	assert.NotContains(t, insight.DataGaps, GapPricing)
	assert.NotContains(t, insight.DataGaps, GapContact)
}

func TestAnalyzeCompetitorAcceptsStringNumbers(t *testing.T) {
	sites := baseSites()
	sites["b.com"] = competitorContent("b.com", "B Coffee", 5)

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		switch op {
		case OperationMatchOfferings:
			return `[{"offering": "Latte", "competitorItem": "Latte", "confidence": "0.9"}, "junk"]`, nil
		case OperationAnalyzeCompetitor:
			return "```json\n" + `{"businessName": "B Roasters", "matchScore": "88", "matchReasons": "same street",
				"dataGaps": [], "products": [
					{"name": "Cold Brew", "url": "/cold-brew", "price": "$6.50"},
					{"name": "Latte", "price": "5", "matchedProducts": [{"name": "Latte", "matchScore": "95%"}]},
					"not a product"]}` + "\n```", nil
		}
		return "", errors.New("unexpected")
	}}
	svc := newTestService(llm, &fakeDiscoverer{sites: sites}, nil)

	insight, err := svc.AnalyzeCompetitor(context.Background(), "b.com", business(t, svc), nil)
	require.NoError(t, err)

	assert.Equal(t, "B Roasters", insight.BusinessName)
	assert.Equal(t, 88.0, insight.MatchScore)
	assert.Equal(t, []string{"same street"}, insight.MatchReasons)
	assert.NotContains(t, insight.DataGaps, GapStructured)

	require.Len(t, insight.Products, 2)
	cold := insight.Products[0]
	assert.Equal(t, "Cold Brew", cold.Name)
	assert.Equal(t, "https://b.com/cold-brew", cold.URL)
	require.NotNil(t, cold.Price)
	assert.Equal(t, 6.5, *cold.Price)
	assert.Equal(t, "$", cold.Currency)

	latte := insight.Products[1]
	require.NotNil(t, latte.Price)
	assert.Equal(t, 5.0, *latte.Price)
	require.Len(t, latte.MatchedProducts, 1)
	assert.Equal(t, 95.0, latte.MatchedProducts[0].MatchScore)
	require.NotNil(t, latte.MatchedProducts[0].PriceDiff)
	assert.Equal(t, 0.5, *latte.MatchedProducts[0].PriceDiff)
}

func TestAnalyzeCompetitorSkipsPriceDiffAcrossCurrencies(t *testing.T) {
	sites := baseSites()
	eu := competitorContent("b.de", "B Kaffee", 4)
	eu.Products[0].Currency = "€"
	eu.Metadata.Prices[0].Currency = "€"
	sites["b.de"] = eu

	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		if op == OperationMatchOfferings {
			return "[]", nil
		}
		return `{"matchScore": 60, "products": [{"name": "Latte", "price": 4, "currency": "EUR",
			"matchedProducts": [{"name": "Latte", "matchScore": 90}]}]}`, nil
	}}
	svc := newTestService(llm, &fakeDiscoverer{sites: sites}, nil)

	insight, err := svc.AnalyzeCompetitor(context.Background(), "b.de", business(t, svc), nil)
	require.NoError(t, err)

	require.Len(t, insight.Products, 1)
	assert.Equal(t, "€", insight.Products[0].Currency)
	require.Len(t, insight.Products[0].MatchedProducts, 1)
	assert.Nil(t, insight.Products[0].MatchedProducts[0].PriceDiff)
	assert.Contains(t, insight.DataGaps, GapCurrency)
}

func TestPayloadFields(t *testing.T) {
	n, ok := numberField("88/100")
	assert.True(t, ok)
	assert.Equal(t, 88.0, n)
	_, ok = numberField([]interface{}{1.0})
	assert.False(t, ok)

	p, cur, ok := priceField("€1,250.00")
	assert.True(t, ok)
	assert.Equal(t, 1250.0, p)
	assert.Equal(t, "€", cur)
	_, _, ok = priceField(-3.0)
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "2"}, textList([]interface{}{"a", 2.0, nil, ""}))
	assert.Len(t, objectList(map[string]interface{}{"name": "x"}), 1)
}

func TestAnalyzeCompetitorInsufficientData(t *testing.T) {
	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) { return "{}", nil }}
	svc := newTestService(llm, &fakeDiscoverer{sites: baseSites()}, nil)

	_, err := svc.AnalyzeCompetitor(context.Background(), "ghost.com", business(t, svc), nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Zero(t, llm.count(OperationAnalyzeCompetitor))

	// a search listing alone is enough to analyze
	insight, err := svc.AnalyzeCompetitor(context.Background(), "ghost.com", business(t, svc),
		&models.SearchCandidate{Domain: "ghost.com", Title: "Ghost Cafe"})
	require.NoError(t, err)
	assert.Equal(t, "Ghost Cafe", insight.BusinessName)
	assert.Contains(t, insight.DataGaps, GapWebsite)
	assert.Contains(t, insight.DataGaps, GapPricing)
	assert.Contains(t, insight.DataGaps, GapProducts)
}

func TestFallbackStrategy(t *testing.T) {
	tests := []struct {
		name     string
		business *models.BusinessContext
		want     models.SearchStrategy
	}{
		{
			name:     "venue",
			business: &models.BusinessContext{Domain: "stay.com", BusinessType: "Boutique Hotel"},
			want:     models.SearchStrategy{Type: "maps", Query: "Boutique Hotel", Location: "Paris"},
		},
		{
			name:     "word boundaries",
			business: &models.BusinessContext{Domain: "cuts.com", BusinessType: "barbershop"},
			want:     models.SearchStrategy{Type: "organic", Query: "barbershop competitors", Location: "Paris"},
		},
		{
			name: "title fallback",
			business: &models.BusinessContext{Domain: "joes.com", Content: &models.WebsiteContent{
				Title: "Joe's Plumbing",
			}},
			want: models.SearchStrategy{Type: "local", Query: "Joe's Plumbing", Location: "Paris"},
		},
		{
			name:     "domain only",
			business: &models.BusinessContext{Domain: "acme.io"},
			want:     models.SearchStrategy{Type: "organic", Query: "acme.io competitors", Location: "Paris"},
		},
		{
			name:     "retail",
			business: &models.BusinessContext{Domain: "kicks.com", BusinessType: "Sneaker store"},
			want:     models.SearchStrategy{Type: "shopping", Query: "Sneaker store", Location: "Paris"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackStrategy(tt.business, "Paris"))
		})
	}
}

func TestSearchStrategyRejectsUnknownType(t *testing.T) {
	llm := &fakeInvoker{respond: func(op, prompt string) (string, error) {
		return `{"type": "telepathy", "query": "best bakeries"}`, nil
	}}
	svc := newTestService(llm, &fakeDiscoverer{}, nil)

	got := svc.searchStrategy(context.Background(), &models.BusinessContext{Domain: "bread.com", BusinessType: "bakery"}, "")
	assert.Equal(t, models.SearchStrategy{Type: "maps", Query: "best bakeries"}, got)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Latte", "latte!"))
	assert.Equal(t, 0.0, Similarity("", "latte"))
	assert.InDelta(t, 0.917, Similarity("House Blend", "House Blends"), 0.001)
	assert.Less(t, Similarity("Latte", "Croissant"), 0.6)
}

func TestCombineMatchesPrefersHeuristic(t *testing.T) {
	heuristic := []models.PriceMatch{{Offering: "Latte", CompetitorItem: "Latte", Source: MatchSourceHeuristic}}
	semantic := []models.PriceMatch{
		{Offering: "latte", CompetitorItem: "Flat White", Source: MatchSourceLLM},
		{Offering: "Mocha", CompetitorItem: "Choc Coffee", Source: MatchSourceLLM},
	}

	got := combineMatches("b.com", heuristic, semantic)
	require.Len(t, got, 2)
	assert.Equal(t, "Latte", got[0].CompetitorItem)
	assert.Equal(t, "Choc Coffee", got[1].CompetitorItem)
}

func TestMergeCandidates(t *testing.T) {
	found := []models.SearchCandidate{
		{Domain: "b.com", Title: "B"},
		{Domain: "shop.mybiz.com"},
		{Domain: "c.com"},
	}
	got := mergeCandidates([]string{"https://www.b.com/", "localhost"}, found,
		[]string{"yelp.com", "d.com", "e.com"}, OwnDomains("mybiz.com", "https://shop.mybiz.com/x"), 3)

	require.Len(t, got, 3)
	assert.Equal(t, "b.com", got[0].domain)
	assert.True(t, got[0].known)
	require.NotNil(t, got[0].serp)
	assert.Equal(t, "B", got[0].serp.Title)
	assert.Equal(t, "c.com", got[1].domain)
	assert.Equal(t, "d.com", got[2].domain)
}

func TestHeuristicScoreBounds(t *testing.T) {
	ours := catalogContent()
	assert.Equal(t, 0.0, HeuristicScore(ours, models.NewWebsiteContent("x"), nil))

	theirs := &models.WebsiteContent{Categories: []string{"Coffee"}}
	matches := []models.PriceMatch{{Offering: "Latte"}, {Offering: "House Blend"}}
	assert.Equal(t, 100.0, HeuristicScore(ours, theirs, matches))
}
