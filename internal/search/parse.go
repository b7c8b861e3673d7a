package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AI2HU/compscout/internal/extractor"
)

type serpResponse struct {
	Error           string           `json:"error"`
	OrganicResults  []organicResult  `json:"organic_results"`
	ShoppingResults []shoppingResult `json:"shopping_results"`
	LocalResults    json.RawMessage  `json:"local_results"`
}

type organicResult struct {
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	RichSnippet struct {
		Top    richPart `json:"top"`
		Bottom richPart `json:"bottom"`
	} `json:"rich_snippet"`
}

type richPart struct {
	DetectedExtensions map[string]interface{} `json:"detected_extensions"`
	Extensions         []string               `json:"extensions"`
}

type shoppingResult struct {
	Position       int      `json:"position"`
	Title          string   `json:"title"`
	Link           string   `json:"link"`
	ProductLink    string   `json:"product_link"`
	Source         string   `json:"source"`
	Price          string   `json:"price"`
	ExtractedPrice *float64 `json:"extracted_price"`
	Rating         *float64 `json:"rating"`
	Reviews        *int     `json:"reviews"`
	Snippet        string   `json:"snippet"`
}

type localResult struct {
	Position    int      `json:"position"`
	Title       string   `json:"title"`
	Rating      *float64 `json:"rating"`
	Reviews     *int     `json:"reviews"`
	Price       string   `json:"price"`
	Type        string   `json:"type"`
	Address     string   `json:"address"`
	Website     string   `json:"website"`
	Description string   `json:"description"`
	Links       struct {
		Website string `json:"website"`
	} `json:"links"`
}

func parseResponse(body []byte, q Query) (*Response, error) {
	var raw serpResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrSearchFailed, err)
	}

	resp := &Response{Query: q, Results: []Result{}}

	for _, r := range raw.OrganicResults {
		res := Result{
			Position: r.Position,
			Title:    r.Title,
			Link:     r.Link,
			Snippet:  r.Snippet,
			Source:   TypeOrganic,
		}
		applyExtensions(&res, r.RichSnippet.Top)
		applyExtensions(&res, r.RichSnippet.Bottom)
		resp.Results = append(resp.Results, res)
	}

	for _, r := range raw.ShoppingResults {
		link := r.Link
		if link == "" {
			link = r.ProductLink
		}
		res := Result{
			Position:  r.Position,
			Title:     r.Title,
			Link:      link,
			Snippet:   strings.TrimSpace(strings.Join([]string{r.Source, r.Snippet}, " ")),
			PriceText: r.Price,
			Rating:    r.Rating,
			Reviews:   r.Reviews,
			Source:    TypeShopping,
		}
		if v, cur, ok := extractor.ParsePrice(r.Price); ok {
			res.Price, res.Currency = &v, cur
		}
		if r.ExtractedPrice != nil && *r.ExtractedPrice > 0 {
			res.Price = r.ExtractedPrice
		}
		resp.Results = append(resp.Results, res)
	}

	source := TypeLocal
	if q.Type == TypeMaps {
		source = TypeMaps
	}
	for _, r := range parseLocal(raw.LocalResults) {
		link := r.Website
		if link == "" {
			link = r.Links.Website
		}
		resp.Results = append(resp.Results, Result{
			Position:   r.Position,
			Title:      r.Title,
			Link:       link,
			Snippet:    strings.TrimSpace(strings.Join([]string{r.Type, r.Description}, " ")),
			Rating:     r.Rating,
			Reviews:    r.Reviews,
			PriceRange: r.Price,
			Address:    r.Address,
			Source:     source,
		})
	}

	if raw.Error != "" && len(resp.Results) == 0 {
		lower := strings.ToLower(raw.Error)
		if strings.Contains(lower, "any results") || strings.Contains(lower, "no results") {
			return resp, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, raw.Error)
	}
	return resp, nil
}

// parseLocal accepts both a bare array and the {"places": [...]} object
// organic searches embed.
func parseLocal(raw json.RawMessage) []localResult {
	if len(raw) == 0 {
		return nil
	}
	var list []localResult
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var wrapped struct {
		Places []localResult `json:"places"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Places
	}
	return nil
}

func applyExtensions(res *Result, part richPart) {
	ext := part.DetectedExtensions
	if len(ext) == 0 {
		for _, e := range part.Extensions {
			if res.Price != nil {
				break
			}
			if v, cur, ok := extractor.ParsePrice(e); ok && cur != "" {
				res.Price, res.Currency, res.PriceText = &v, cur, e
			}
		}
		return
	}

	if v, ok := number(ext["price"]); ok && res.Price == nil {
		res.Price = &v
		if cur, ok := ext["currency"].(string); ok {
			res.Currency = extractor.NormalizeCurrency(cur)
		}
	} else if v, ok := number(ext["price_from"]); ok && res.Price == nil {
		res.Price = &v
		if cur, ok := ext["currency"].(string); ok {
			res.Currency = extractor.NormalizeCurrency(cur)
		}
	}
	if v, ok := number(ext["rating"]); ok && res.Rating == nil {
		res.Rating = &v
	}
	if v, ok := number(ext["reviews"]); ok && res.Reviews == nil {
		n := int(v)
		res.Reviews = &n
	}
}

func number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if p, _, ok := extractor.ParsePrice(t); ok {
			return p, true
		}
	}
	return 0, false
}
