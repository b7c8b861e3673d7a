package competitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/AI2HU/compscout/internal/jsonextract"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/search"
	"github.com/AI2HU/compscout/internal/shared"
)

const (
	OperationSearchStrategy     = "search_strategy"
	OperationSuggestCompetitors = "suggest_competitors"
	OperationRecommendSources   = "recommend_sources"
)

var strategyKeywords = []struct {
	kind     search.Type
	keywords []string
}{
	{search.TypeMaps, []string{"hotel", "motel", "resort", "hostel", "restaurant", "cafe", "café", "coffee shop", "bar", "bakery", "bistro", "pub"}},
	{search.TypeShopping, []string{"store", "shop", "ecommerce", "e-commerce", "retail", "boutique", "apparel", "merchandise"}},
	{search.TypeLocal, []string{"plumber", "plumbing", "lawyer", "attorney", "dentist", "salon", "gym", "clinic", "contractor", "electrician", "mechanic", "cleaning"}},
}

// FallbackStrategy classifies the business by keyword when no model answers
func FallbackStrategy(business *models.BusinessContext, location string) models.SearchStrategy {
	base := strings.TrimSpace(business.BusinessType)
	if base == "" && business.Content != nil {
		base = business.Content.Title
	}
	if base == "" {
		base = business.Domain
	}

	haystack := strings.ToLower(base)
	if business.Content != nil {
		haystack += " " + strings.ToLower(business.Content.Description)
	}

	kind := search.TypeOrganic
outer:
	for _, group := range strategyKeywords {
		for _, kw := range group.keywords {
			if containsWord(haystack, kw) {
				kind = group.kind
				break outer
			}
		}
	}

	query := base
	if kind == search.TypeOrganic {
		query = base + " competitors"
	}
	return models.SearchStrategy{Type: string(kind), Query: query, Location: location}
}

func containsWord(haystack, word string) bool {
	for i := strings.Index(haystack, word); i >= 0; {
		end := i + len(word)
		before := i == 0 || !isWordByte(haystack[i-1])
		after := end == len(haystack) || !isWordByte(haystack[end])
		if before && after {
			return true
		}
		next := strings.Index(haystack[i+1:], word)
		if next < 0 {
			return false
		}
		i += next + 1
	}
	return false
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

const strategyPrompt = `Decide how to search the web for competitors of this business.

Business domain: %s
Business type: %s
Title: %s
Description: %s
Offerings: %s
Location: %s

Choose "maps" for venues customers visit (hotels, restaurants), "shopping" for
sellers of physical products, "local" for local service providers and
"organic" otherwise.
Return ONLY a JSON object: {"type": "maps|shopping|local|organic", "query": "search query", "location": "location or empty"}`

type strategyPayload struct {
	Type     *string `json:"type"`
	Query    *string `json:"query"`
	Location *string `json:"location"`
}

func (s *Service) searchStrategy(ctx context.Context, business *models.BusinessContext, location string) models.SearchStrategy {
	fallback := FallbackStrategy(business, location)
	if s.llm == nil {
		return fallback
	}

	prompt := fmt.Sprintf(strategyPrompt, business.Domain, business.BusinessType,
		contentTitle(business.Content), contentDescription(business.Content),
		offeringNames(business.Content, 15), location)
	res, err := s.llm.Invoke(ctx, OperationSearchStrategy, prompt, s.cfg.PreferredModel)
	if err != nil {
		logger.Warning("Search strategy classification failed for %s: %v", business.Domain, err)
		return fallback
	}

	var p strategyPayload
	if !jsonextract.Decode(res.Text, jsonextract.Object, &p) {
		logger.Warning("Unparseable search strategy for %s, using keyword fallback", business.Domain)
		return fallback
	}

	strategy := fallback
	if p.Type != nil {
		switch t := search.Type(strings.ToLower(strings.TrimSpace(*p.Type))); t {
		case search.TypeMaps, search.TypeShopping, search.TypeLocal, search.TypeOrganic:
			strategy.Type = string(t)
		}
	}
	if p.Query != nil && strings.TrimSpace(*p.Query) != "" {
		strategy.Query = strings.TrimSpace(*p.Query)
	}
	if location == "" && p.Location != nil {
		strategy.Location = strings.TrimSpace(*p.Location)
	}
	return strategy
}

func (s *Service) searchCandidates(ctx context.Context, strategy models.SearchStrategy, exclude []string) *search.Candidates {
	empty := &search.Candidates{Competitors: []models.SearchCandidate{}, ListingPlatforms: []string{}}
	if s.search == nil {
		return empty
	}
	found, err := s.search.FindCandidates(ctx, search.Query{
		Type:     search.ParseType(strategy.Type),
		Text:     strategy.Query,
		Location: strategy.Location,
	}, exclude)
	if err != nil {
		logger.Warning("Candidate search failed for %q: %v", strategy.Query, err)
		return empty
	}
	return found
}

const suggestPrompt = `List up to %d websites of direct competitors of this business.

Business domain: %s
Business type: %s
Description: %s
Offerings: %s
Location: %s

Return ONLY a JSON array of bare domain names, for example ["example.com"].
Do not include marketplaces, review sites or the business itself.`

func (s *Service) suggestCompetitors(ctx context.Context, business *models.BusinessContext, location string) []string {
	if s.llm == nil {
		return nil
	}
	prompt := fmt.Sprintf(suggestPrompt, s.cfg.SuggestCount, business.Domain, business.BusinessType,
		contentDescription(business.Content), offeringNames(business.Content, 20), location)

	res, err := s.llm.Invoke(ctx, OperationSuggestCompetitors, prompt, s.cfg.PreferredModel)
	if err != nil {
		logger.Warning("Competitor suggestion failed for %s: %v", business.Domain, err)
		return nil
	}

	var raw []string
	if !jsonextract.Decode(res.Text, jsonextract.Array, &raw) {
		logger.Warning("Unparseable competitor suggestions for %s", business.Domain)
		return nil
	}

	var out []string
	for _, d := range raw {
		d = shared.NormalizeDomain(d)
		if d == "" || !strings.Contains(d, ".") {
			continue
		}
		out = append(out, d)
		if len(out) == s.cfg.SuggestCount {
			break
		}
	}
	return out
}

const sourcesPrompt = `Suggest additional data sources (sites, directories, marketplaces or
review platforms) for monitoring competitors of this business.

Business domain: %s
Business type: %s
Search strategy: %s "%s"

Return ONLY a JSON array of short source names or domains.`

func (s *Service) recommendSources(ctx context.Context, business *models.BusinessContext, strategy models.SearchStrategy) []string {
	if s.llm == nil || !s.cfg.SuggestSources {
		return []string{}
	}
	prompt := fmt.Sprintf(sourcesPrompt, business.Domain, business.BusinessType, strategy.Type, strategy.Query)
	res, err := s.llm.Invoke(ctx, OperationRecommendSources, prompt, s.cfg.PreferredModel)
	if err != nil {
		logger.Warning("Source recommendation failed for %s: %v", business.Domain, err)
		return []string{}
	}

	var raw []string
	if !jsonextract.Decode(res.Text, jsonextract.Array, &raw) {
		return []string{}
	}
	return appendUnique([]string{}, raw...)
}

func offeringNames(content *models.WebsiteContent, limit int) string {
	if content == nil {
		return ""
	}
	var names []string
	for _, o := range content.Offerings() {
		names = append(names, o.Name)
		if len(names) == limit {
			break
		}
	}
	return strings.Join(names, ", ")
}

func contentTitle(c *models.WebsiteContent) string {
	if c == nil {
		return ""
	}
	return c.Title
}

func contentDescription(c *models.WebsiteContent) string {
	if c == nil {
		return ""
	}
	return c.Description
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if strings.EqualFold(existing, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
