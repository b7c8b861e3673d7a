package competitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/AI2HU/compscout/internal/extractor"
	"github.com/AI2HU/compscout/internal/jsonextract"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
	"github.com/AI2HU/compscout/internal/search"
	"github.com/AI2HU/compscout/internal/shared"
)

// OperationAnalyzeCompetitor names the insight call in router logs
const OperationAnalyzeCompetitor = "analyze_competitor"

// Data gaps recorded on insights
const (
	GapWebsite    = "website content unavailable"
	GapPricing    = "no pricing data found"
	GapProducts   = "no comparable products found"
	GapReviews    = "no rating or review data"
	GapContact    = "no contact information"
	GapStructured = "structured analysis unavailable"
	GapCurrency   = "prices quoted in a different currency"
)

const insightPrompt = `Analyze how strongly this competitor competes with our business.

OUR BUSINESS
Domain: %s
Type: %s
Description: %s
Offerings (name, price):
%s
COMPETITOR
Domain: %s
Title: %s
Description: %s
Offerings (name, price):
%s
Observed prices: %s
Search listing: %s
Price matches found: %s
Page text:
%s

Return ONLY a JSON object with the fields:
"businessName" (string), "matchScore" (0-100), "matchReasons" (array of strings),
"suggestedApproach" (string), "dataGaps" (array of strings),
"listingPlatforms" (array of strings),
"products" (array of {"name", "url", "price", "currency",
  "matchedProducts": array of {"name" (one of our offerings), "matchScore" (0-100), "priceDiff"}}),
"monitoringUrls" (array of competitor URLs worth monitoring for price changes).`

// AnalyzeCompetitor scores one competitor against the business. serp carries
// the search listing the candidate came from and may be nil. It fails when
// neither the site nor search yield anything, or when the model call fails.
func (s *Service) AnalyzeCompetitor(ctx context.Context, domain string, business *models.BusinessContext, serp *models.SearchCandidate) (*models.CompetitorInsight, error) {
	domain = shared.NormalizeDomain(domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: competitor domain is required", ErrInvalidRequest)
	}
	if business == nil || business.Content == nil {
		return nil, fmt.Errorf("%w: business context is required", ErrInvalidRequest)
	}
	if s.llm == nil {
		return nil, fmt.Errorf("%w: no model router configured", ErrInvalidRequest)
	}

	content := s.discovery.DiscoverWebsiteContent(ctx, domain)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var signals []search.PriceSignal
	if len(content.Metadata.Prices) == 0 {
		signals = s.pricingSignals(ctx, domain, business.Content.Offerings(),
			OwnDomains(business.Domain, business.CatalogURL))
	}
	if !content.HasContent() && len(signals) == 0 && serp == nil {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientData, domain)
	}

	items := priceItems(content, signals)
	ours := namedOfferings(business.Content.Offerings())

	var heuristic []models.PriceMatch
	done := make(chan struct{})
	go func() {
		defer close(done)
		heuristic = heuristicMatches(ours, items, s.cfg.MatchThreshold)
	}()
	semantic, err := s.semanticMatches(ctx, ours, items)
	<-done
	if err != nil {
		if errors.Is(err, router.ErrModelSaturation) {
			return nil, err
		}
		logger.Warning("Semantic offering match failed for %s: %v", domain, err)
	}
	matches := combineMatches(domain, heuristic, semantic)

	prompt := s.insightPrompt(domain, business, content, signals, serp, matches)
	res, err := s.llm.Invoke(ctx, OperationAnalyzeCompetitor, prompt, s.cfg.PreferredModel)
	if err != nil {
		return nil, fmt.Errorf("insight generation for %s: %w", domain, err)
	}

	insight := &models.CompetitorInsight{
		Domain:           domain,
		MatchReasons:     []string{},
		DataGaps:         []string{},
		ListingPlatforms: []string{},
		Products:         []models.CompetitorProduct{},
		MonitoringURLs:   []string{},
		PriceMatches:     matches,
		AnalyzedAt:       s.now(),
	}

	var payload map[string]interface{}
	if jsonextract.Decode(res.Text, jsonextract.Object, &payload) && payload != nil {
		applyPayload(insight, payload, content)
	} else {
		logger.Warning("Unparseable insight for %s, using heuristic defaults", domain)
		applyDefaults(insight, business, content, matches)
	}

	s.finalize(insight, business, content, signals, serp, matches)
	return insight, nil
}

func (s *Service) pricingSignals(ctx context.Context, domain string, offerings []models.Offering, own []string) []search.PriceSignal {
	if s.search == nil {
		return nil
	}
	queries := []string{domain + " pricing"}
	for _, o := range offerings {
		if len(queries) >= s.cfg.MaxPriceQueries {
			break
		}
		if o.Name != "" {
			queries = append(queries, fmt.Sprintf("%s %s price", domain, o.Name))
		}
	}
	if s.cfg.MaxPriceQueries == 0 {
		queries = nil
	}

	var signals []search.PriceSignal
	for _, q := range queries {
		found, err := s.search.PriceSignals(ctx, q)
		if err != nil {
			logger.Warning("Price search %q failed: %v", q, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		for _, sig := range found {
			if !shared.MatchesAny(sig.Link, own) {
				signals = append(signals, sig)
			}
		}
	}
	return signals
}

func priceItems(content *models.WebsiteContent, signals []search.PriceSignal) []priceItem {
	var items []priceItem
	for _, o := range content.Offerings() {
		if o.Name != "" && o.Price > 0 {
			items = append(items, priceItem{Name: o.Name, Price: o.Price, Currency: o.Currency, URL: o.URL})
		}
	}
	for _, sig := range signals {
		if sig.Title != "" && sig.Price > 0 {
			items = append(items, priceItem{Name: sig.Title, Price: sig.Price, Currency: sig.Currency, URL: sig.Link})
		}
	}
	return items
}

func namedOfferings(offerings []models.Offering) []models.Offering {
	out := make([]models.Offering, 0, len(offerings))
	for _, o := range offerings {
		if strings.TrimSpace(o.Name) != "" {
			out = append(out, o)
		}
	}
	return out
}

func (s *Service) insightPrompt(domain string, business *models.BusinessContext, content *models.WebsiteContent,
	signals []search.PriceSignal, serp *models.SearchCandidate, matches []models.PriceMatch) string {

	var observed []string
	for _, p := range content.Metadata.Prices {
		observed = append(observed, fmt.Sprintf("%.2f %s", p.Price, p.Currency))
	}
	for _, sig := range signals {
		observed = append(observed, fmt.Sprintf("%.2f %s (%s)", sig.Price, sig.Currency, sig.Title))
	}

	listing := "none"
	if serp != nil {
		listing = fmt.Sprintf("%s - %s", serp.Title, serp.Snippet)
		if serp.Rating != nil {
			listing += fmt.Sprintf(", rating %.1f", *serp.Rating)
		}
		if serp.ReviewCount != nil {
			listing += fmt.Sprintf(", %d reviews", *serp.ReviewCount)
		}
		if serp.PriceRange != "" {
			listing += ", price range " + serp.PriceRange
		}
	}

	var matched []string
	for _, m := range matches {
		matched = append(matched, fmt.Sprintf("%s (%.2f) ~ %s (%.2f %s)",
			m.Offering, m.OfferingPrice, m.CompetitorItem, m.CompetitorPrice, m.Currency))
	}

	return fmt.Sprintf(insightPrompt,
		business.Domain, business.BusinessType, business.Content.Description,
		offeringLines(business.Content.Offerings(), 25),
		domain, content.Title, content.Description,
		offeringLines(content.Offerings(), 25),
		joinOr(observed, "none"), listing, joinOr(matched, "none"),
		truncateRunes(content.MainContent, s.cfg.PromptChars),
	)
}

func offeringLines(offerings []models.Offering, limit int) string {
	if len(offerings) == 0 {
		return "none\n"
	}
	var b strings.Builder
	for i, o := range offerings {
		if i == limit {
			break
		}
		if o.Price > 0 {
			fmt.Fprintf(&b, "- %s, %.2f %s\n", o.Name, o.Price, o.Currency)
		} else {
			fmt.Fprintf(&b, "- %s\n", o.Name)
		}
	}
	return b.String()
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, "; ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// applyPayload copies the model answer onto the insight one field at a time.
// A field of the wrong type is skipped without rejecting the others.
func applyPayload(insight *models.CompetitorInsight, p map[string]interface{}, content *models.WebsiteContent) {
	insight.BusinessName = textField(p["businessName"])
	if score, ok := numberField(p["matchScore"]); ok {
		insight.MatchScore = score
	}
	insight.SuggestedApproach = textField(p["suggestedApproach"])
	insight.MatchReasons = appendUnique(insight.MatchReasons, textList(p["matchReasons"])...)
	insight.DataGaps = appendUnique(insight.DataGaps, textList(p["dataGaps"])...)
	insight.ListingPlatforms = appendUnique(insight.ListingPlatforms, textList(p["listingPlatforms"])...)
	insight.MonitoringURLs = appendUnique(insight.MonitoringURLs, textList(p["monitoringUrls"])...)

	base := shared.EnsureScheme(insight.Domain)
	for _, pp := range objectList(p["products"]) {
		name := textField(pp["name"])
		if name == "" {
			continue
		}
		product := models.CompetitorProduct{
			Name:            name,
			URL:             base,
			Currency:        defaultCurrency(content),
			MatchedProducts: []models.MatchedProduct{},
		}
		if u := textField(pp["url"]); u != "" {
			product.URL = shared.ResolveURL(base, u)
		}
		if price, currency, ok := priceField(pp["price"]); ok {
			product.Price = &price
			if currency != "" {
				product.Currency = currency
			}
		}
		if c := textField(pp["currency"]); c != "" {
			product.Currency = extractor.NormalizeCurrency(c)
		}
		for _, mp := range objectList(pp["matchedProducts"]) {
			m := models.MatchedProduct{Name: textField(mp["name"])}
			if m.Name == "" {
				continue
			}
			if score, ok := numberField(mp["matchScore"]); ok {
				m.MatchScore = score
			}
			product.MatchedProducts = append(product.MatchedProducts, m)
		}
		insight.Products = append(insight.Products, product)
	}
}

// applyDefaults fills an insight when the model answer could not be parsed
func applyDefaults(insight *models.CompetitorInsight, business *models.BusinessContext, content *models.WebsiteContent, matches []models.PriceMatch) {
	insight.BusinessName = content.Title
	insight.MatchScore = HeuristicScore(business.Content, content, matches)
	insight.DataGaps = appendUnique(insight.DataGaps, GapStructured)
	if len(matches) > 0 {
		insight.MatchReasons = append(insight.MatchReasons,
			fmt.Sprintf("%d of our offerings have a comparable competitor item", countOfferings(matches)))
	}
	if overlap := sharedTerms(business.Content, content); len(overlap) > 0 {
		insight.MatchReasons = append(insight.MatchReasons, "Shared categories: "+strings.Join(overlap, ", "))
	}
	insight.SuggestedApproach = "Monitor the competitor's pricing pages and compare matched offerings regularly"
}

// HeuristicScore estimates a match score from offering coverage and shared
// categories and keywords.
func HeuristicScore(ours, theirs *models.WebsiteContent, matches []models.PriceMatch) float64 {
	coverage := 0.0
	if n := len(namedOfferings(ours.Offerings())); n > 0 {
		coverage = float64(countOfferings(matches)) / float64(n)
	}

	a := termSet(ours)
	b := termSet(theirs)
	union := len(a)
	inter := 0
	for t := range b {
		if _, ok := a[t]; ok {
			inter++
		} else {
			union++
		}
	}
	overlap := 0.0
	if union > 0 {
		overlap = float64(inter) / float64(union)
	}
	return clamp(math.Round(70*coverage+30*overlap), 0, 100)
}

func countOfferings(matches []models.PriceMatch) int {
	seen := make(map[string]struct{})
	for _, m := range matches {
		seen[strings.ToLower(m.Offering)] = struct{}{}
	}
	return len(seen)
}

func termSet(c *models.WebsiteContent) map[string]struct{} {
	set := make(map[string]struct{})
	if c == nil {
		return set
	}
	for _, t := range append(append([]string{}, c.Categories...), c.Keywords...) {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

func sharedTerms(a, b *models.WebsiteContent) []string {
	theirs := termSet(b)
	var out []string
	for _, t := range append(append([]string{}, a.Categories...), a.Keywords...) {
		if _, ok := theirs[strings.ToLower(strings.TrimSpace(t))]; ok {
			out = appendUnique(out, t)
		}
	}
	return out
}

func defaultCurrency(content *models.WebsiteContent) string {
	if len(content.Metadata.Prices) > 0 {
		return content.Metadata.Prices[0].Currency
	}
	for _, o := range content.Offerings() {
		if o.Currency != "" {
			return o.Currency
		}
	}
	return ""
}

// finalize clamps the insight: scores within 0..100, price
// differences recomputed from known prices, no products hosted on the
// requester's domains, observed listing data and explicit data gaps.
func (s *Service) finalize(insight *models.CompetitorInsight, business *models.BusinessContext, content *models.WebsiteContent,
	signals []search.PriceSignal, serp *models.SearchCandidate, matches []models.PriceMatch) {

	own := OwnDomains(business.Domain, business.CatalogURL)
	prices := make(map[string]models.Offering)
	for _, o := range business.Content.Offerings() {
		if o.Price > 0 {
			prices[strings.ToLower(o.Name)] = o
		}
	}

	products := insight.Products[:0]
	for _, p := range insight.Products {
		if shared.MatchesAny(p.URL, own) {
			continue
		}
		products = append(products, p)
	}
	insight.Products = addMatchedItems(products, matches, insight.Domain, own)

	for i := range insight.Products {
		p := &insight.Products[i]
		for j := range p.MatchedProducts {
			m := &p.MatchedProducts[j]
			m.MatchScore = clamp(m.MatchScore, 0, 100)
			m.PriceDiff = nil
			ours, ok := s.userPrice(prices, m.Name)
			if !ok || p.Price == nil {
				continue
			}
			if !sameCurrency(ours.Currency, p.Currency) {
				insight.DataGaps = appendUnique(insight.DataGaps, GapCurrency)
				continue
			}
			diff := round2(*p.Price - ours.Price)
			m.PriceDiff = &diff
		}
	}
	insight.MatchScore = clamp(insight.MatchScore, 0, 100)

	var monitoring []string
	for _, u := range insight.MonitoringURLs {
		resolved := shared.ResolveURL(shared.EnsureScheme(insight.Domain), u)
		if resolved != "" && shared.SameSite(resolved, insight.Domain) {
			monitoring = appendUnique(monitoring, resolved)
		}
	}
	if len(monitoring) == 0 {
		for _, p := range insight.Products {
			if shared.SameSite(p.URL, insight.Domain) {
				monitoring = appendUnique(monitoring, p.URL)
			}
		}
	}
	if monitoring == nil {
		monitoring = []string{}
	}
	insight.MonitoringURLs = monitoring

	if serp != nil {
		if insight.Rating == nil && serp.Rating != nil {
			insight.Rating = serp.Rating
		}
		if insight.ReviewCount == nil && serp.ReviewCount != nil {
			insight.ReviewCount = serp.ReviewCount
		}
		if insight.PriceRange == "" {
			insight.PriceRange = serp.PriceRange
		}
		if insight.BusinessName == "" {
			insight.BusinessName = serp.Title
		}
	}
	if insight.PriceRange == "" {
		insight.PriceRange = observedRange(content, signals)
	}
	if insight.BusinessName == "" {
		insight.BusinessName = content.Title
	}

	if !content.HasContent() {
		insight.DataGaps = appendUnique(insight.DataGaps, GapWebsite)
	}
	if len(content.Metadata.Prices) == 0 && len(signals) == 0 && !anyPrice(insight.Products) {
		insight.DataGaps = appendUnique(insight.DataGaps, GapPricing)
	}
	if len(insight.Products) == 0 {
		insight.DataGaps = appendUnique(insight.DataGaps, GapProducts)
	}
	if insight.Rating == nil && insight.ReviewCount == nil {
		insight.DataGaps = appendUnique(insight.DataGaps, GapReviews)
	}
	if content.Metadata.ContactInfo.IsEmpty() {
		insight.DataGaps = appendUnique(insight.DataGaps, GapContact)
	}
}

// addMatchedItems makes sure every price match shows up as a product
func addMatchedItems(products []models.CompetitorProduct, matches []models.PriceMatch, domain string, own []string) []models.CompetitorProduct {
	index := make(map[string]int, len(products))
	for i, p := range products {
		index[strings.ToLower(p.Name)] = i
	}
	for _, m := range matches {
		url := m.CompetitorURL
		if url == "" {
			url = shared.EnsureScheme(domain)
		}
		if shared.MatchesAny(url, own) {
			continue
		}
		key := strings.ToLower(m.CompetitorItem)
		i, ok := index[key]
		if !ok {
			price := m.CompetitorPrice
			products = append(products, models.CompetitorProduct{
				Name:            m.CompetitorItem,
				URL:             url,
				Price:           &price,
				Currency:        m.Currency,
				MatchedProducts: []models.MatchedProduct{},
			})
			i = len(products) - 1
			index[key] = i
		}
		p := &products[i]
		if p.Price == nil && m.CompetitorPrice > 0 {
			price := m.CompetitorPrice
			p.Price = &price
		}
		found := false
		for _, mp := range p.MatchedProducts {
			if strings.EqualFold(mp.Name, m.Offering) {
				found = true
				break
			}
		}
		if !found {
			p.MatchedProducts = append(p.MatchedProducts, models.MatchedProduct{
				Name:       m.Offering,
				MatchScore: round2(m.Similarity * 100),
			})
		}
	}
	return products
}

func (s *Service) userPrice(prices map[string]models.Offering, name string) (models.Offering, bool) {
	if o, ok := prices[strings.ToLower(name)]; ok {
		return o, true
	}
	var best models.Offering
	bestScore := 0.0
	for offering, o := range prices {
		if sim := Similarity(offering, name); sim >= s.cfg.MatchThreshold && (sim > bestScore || sim == bestScore && o.Price < best.Price) {
			best, bestScore = o, sim
		}
	}
	return best, bestScore > 0
}

// sameCurrency treats an unknown currency on either side as a match
func sameCurrency(a, b string) bool {
	a, b = extractor.NormalizeCurrency(a), extractor.NormalizeCurrency(b)
	return a == "" || b == "" || a == b
}

func anyPrice(products []models.CompetitorProduct) bool {
	for _, p := range products {
		if p.Price != nil {
			return true
		}
	}
	return false
}

func observedRange(content *models.WebsiteContent, signals []search.PriceSignal) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	currency := ""
	observe := func(v float64, cur string) {
		if v <= 0 {
			return
		}
		if currency == "" {
			currency = cur
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	for _, p := range content.Metadata.Prices {
		observe(p.Price, p.Currency)
	}
	for _, sig := range signals {
		observe(sig.Price, sig.Currency)
	}
	if math.IsInf(lo, 1) {
		return ""
	}
	if lo == hi {
		return fmt.Sprintf("%s%.2f", currency, lo)
	}
	return fmt.Sprintf("%s%.2f-%s%.2f", currency, lo, currency, hi)
}
