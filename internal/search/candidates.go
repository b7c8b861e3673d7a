package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/AI2HU/compscout/internal/extractor"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/shared"
)

// listingPlatforms are aggregators and marketplaces. They are reported as
// listing platforms instead of competitors. Entries are matched against the
// labels of a domain so regional TLDs are covered.
var listingPlatforms = []string{
	"yelp", "tripadvisor", "amazon", "facebook", "instagram", "booking",
	"expedia", "hotels", "airbnb", "wikipedia", "linkedin", "youtube",
	"twitter", "pinterest", "reddit", "etsy", "ebay", "walmart",
	"opentable", "doordash", "ubereats", "grubhub", "google", "yellowpages",
	"bbb", "trustpilot", "kayak", "agoda", "angi", "thumbtack", "houzz",
	"glassdoor", "indeed", "tiktok", "foursquare", "zomato", "trivago",
}

// IsListingPlatform reports whether domain belongs to an aggregator or marketplace
func IsListingPlatform(domain string) bool {
	d := shared.NormalizeDomain(domain)
	if d == "x.com" || strings.HasSuffix(d, ".x.com") {
		return true
	}
	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels[:len(labels)-1] {
		for _, p := range listingPlatforms {
			if label == p {
				return true
			}
		}
	}
	return false
}

// Candidates is the outcome of a candidate search
type Candidates struct {
	Competitors      []models.SearchCandidate `json:"competitors"`
	ListingPlatforms []string                 `json:"listingPlatforms"`
}

// FindCandidates searches q and reduces the hits to one candidate per domain.
// Domains matching exclude (or their subdomains) are dropped and listing
// platforms are reported separately.
func (c *Client) FindCandidates(ctx context.Context, q Query, exclude []string) (*Candidates, error) {
	resp, err := c.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return Reduce(resp.Results, exclude), nil
}

// Reduce turns raw results into de-duplicated candidates
func Reduce(results []Result, exclude []string) *Candidates {
	out := &Candidates{Competitors: []models.SearchCandidate{}, ListingPlatforms: []string{}}
	seen := make(map[string]struct{})
	seenPlatforms := make(map[string]struct{})

	for _, r := range results {
		domain := shared.NormalizeDomain(r.Link)
		if domain == "" || !strings.Contains(domain, ".") {
			continue
		}
		if shared.MatchesAny(domain, exclude) {
			continue
		}
		if IsListingPlatform(domain) {
			if _, ok := seenPlatforms[domain]; !ok {
				seenPlatforms[domain] = struct{}{}
				out.ListingPlatforms = append(out.ListingPlatforms, domain)
			}
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}

		candidate := models.SearchCandidate{
			Domain:      domain,
			Title:       r.Title,
			Snippet:     r.Snippet,
			Rating:      r.Rating,
			ReviewCount: r.Reviews,
			PriceRange:  r.PriceRange,
			Link:        r.Link,
			Source:      string(r.Source),
		}
		if candidate.PriceRange == "" && r.PriceText != "" {
			candidate.PriceRange = r.PriceText
		}
		out.Competitors = append(out.Competitors, candidate)
	}
	return out
}

// PriceSignal is a price observed in a search result
type PriceSignal struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Title    string  `json:"title"`
	Link     string  `json:"link"`
	Context  string  `json:"context"`
}

var priceTextPattern = regexp.MustCompile(`(?i)(?:[$€£¥₹]\s?\d[\d.,]*|\d[\d.,]*\s?(?:USD|EUR|GBP|€))`)

// PriceSignals runs an organic query and collects the prices its results mention
func (c *Client) PriceSignals(ctx context.Context, query string) ([]PriceSignal, error) {
	resp, err := c.Search(ctx, Query{Type: TypeOrganic, Text: query})
	if err != nil {
		return nil, err
	}
	return ExtractPriceSignals(resp.Results), nil
}

// ExtractPriceSignals reads structured prices first and falls back to price
// patterns in titles and snippets.
func ExtractPriceSignals(results []Result) []PriceSignal {
	signals := []PriceSignal{}
	for _, r := range results {
		if r.Price != nil && *r.Price > 0 {
			signals = append(signals, PriceSignal{
				Price:    *r.Price,
				Currency: r.Currency,
				Title:    r.Title,
				Link:     r.Link,
				Context:  r.PriceText,
			})
			continue
		}
		for _, m := range priceTextPattern.FindAllString(r.Title+" "+r.Snippet, 3) {
			v, cur, ok := extractor.ParsePrice(m)
			if !ok {
				continue
			}
			signals = append(signals, PriceSignal{
				Price:    v,
				Currency: cur,
				Title:    r.Title,
				Link:     r.Link,
				Context:  strings.TrimSpace(m),
			})
		}
	}
	return signals
}
