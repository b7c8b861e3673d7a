package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/AI2HU/compscout/internal/jsonextract"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/shared"
)

// OperationExtractOfferings names offering extraction in router logs
const OperationExtractOfferings = "extract_offerings"

const offeringsPrompt = `You are reading a business web page. List the products and services it sells.

Page URL: %s
Page title: %s

Page text:
%s

Return ONLY a JSON array. Each element is an object with the fields:
"name" (string), "description" (string), "price" (number, 0 when unknown),
"currency" (string), "url" (string), "category" (string),
"type" ("product" or "service").
Return [] when the page sells nothing.`

type llmOffering struct {
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	Price       interface{} `json:"price"`
	Currency    *string     `json:"currency"`
	URL         *string     `json:"url"`
	Category    *string     `json:"category"`
	Type        *string     `json:"type"`
}

func (e *Extractor) extractOfferings(ctx context.Context, content *models.WebsiteContent) ([]models.Offering, []models.Offering, error) {
	prompt := fmt.Sprintf(offeringsPrompt, content.URL, content.Title,
		truncate(content.MainContent, e.cfg.PromptContentChars))

	res, err := e.llm.Invoke(ctx, OperationExtractOfferings, prompt, e.cfg.PreferredModel)
	if err != nil {
		return nil, nil, err
	}

	var raw []llmOffering
	if !jsonextract.Decode(res.Text, jsonextract.Array, &raw) {
		return nil, nil, fmt.Errorf("no offering array in %s response", res.Model)
	}

	products, services := normalizeOfferings(raw, content.URL, e.pageCurrency(content))
	return products, services, nil
}

// normalizeOfferings validates LLM offerings. Entries without a name are
// dropped. Missing prices become 0, missing currencies pageCurrency, missing
// urls pageURL and missing categories "General".
func normalizeOfferings(raw []llmOffering, pageURL, pageCurrency string) (products, services []models.Offering) {
	products, services = []models.Offering{}, []models.Offering{}
	for _, r := range raw {
		name := deref(r.Name)
		if name == "" {
			continue
		}

		o := models.Offering{
			Name:        name,
			Description: deref(r.Description),
			Price:       rawPrice(r.Price),
			Currency:    pageCurrency,
			URL:         pageURL,
			Category:    "General",
		}
		if c := deref(r.Currency); c != "" {
			o.Currency = NormalizeCurrency(c)
		}
		if u := deref(r.URL); u != "" {
			o.URL = shared.ResolveURL(pageURL, u)
		}
		if c := deref(r.Category); c != "" {
			o.Category = c
		}

		if strings.EqualFold(deref(r.Type), "service") {
			services = append(services, o)
		} else {
			products = append(products, o)
		}
	}
	return products, services
}

func (e *Extractor) pageCurrency(content *models.WebsiteContent) string {
	if len(content.Metadata.Prices) > 0 {
		return content.Metadata.Prices[0].Currency
	}
	return e.cfg.DefaultCurrency
}

func rawPrice(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		if t > 0 && t < MaxPrice {
			return t
		}
	case string:
		if p, _, ok := ParsePrice(t); ok {
			return p
		}
	}
	return 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// mergeOfferings appends extra to base, skipping names already present. A
// duplicate with a price fills a missing price in base.
func mergeOfferings(base, extra []models.Offering) []models.Offering {
	index := make(map[string]int, len(base))
	for i, o := range base {
		index[strings.ToLower(o.Name)] = i
	}
	for _, o := range extra {
		key := strings.ToLower(o.Name)
		if i, ok := index[key]; ok {
			if base[i].Price == 0 && o.Price > 0 {
				base[i].Price = o.Price
				base[i].Currency = o.Currency
			}
			continue
		}
		index[key] = len(base)
		base = append(base, o)
	}
	return base
}
