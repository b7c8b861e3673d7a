// Package extractor turns HTML pages into structured website content.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
)

// Invoker sends a prompt through the model router
type Invoker interface {
	Invoke(ctx context.Context, operation, prompt, preferred string) (*router.Result, error)
}

// Config tunes extraction
type Config struct {
	MaxContentChars    int    `mapstructure:"max_content_chars" yaml:"max_content_chars"`
	PromptContentChars int    `mapstructure:"prompt_content_chars" yaml:"prompt_content_chars"`
	PreferredModel     string `mapstructure:"preferred_model" yaml:"preferred_model,omitempty"`
	DefaultCurrency    string `mapstructure:"default_currency" yaml:"default_currency"`
}

// DefaultConfig returns the default extraction settings
func DefaultConfig() Config {
	return Config{
		MaxContentChars:    20000,
		PromptContentChars: 8000,
		DefaultCurrency:    "USD",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = d.MaxContentChars
	}
	if c.PromptContentChars <= 0 {
		c.PromptContentChars = d.PromptContentChars
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = d.DefaultCurrency
	}
	return c
}

// Extractor parses pages. A nil Invoker disables LLM offering extraction.
type Extractor struct {
	llm Invoker
	cfg Config
	now func() time.Time
}

// New creates an extractor
func New(llm Invoker, cfg Config) *Extractor {
	return &Extractor{llm: llm, cfg: cfg.withDefaults(), now: time.Now}
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	spacePattern = regexp.MustCompile(`\s+`)
)

const priceSelector = `[itemprop="price"], .price, .prices, [class*="price"], [class*="Price"], [data-price], .amount, .cost, .rate, .fee`

// Extract parses body as HTML served from pageURL
func (e *Extractor) Extract(ctx context.Context, pageURL string, body []byte) (*models.WebsiteContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	content := models.NewWebsiteContent(pageURL)
	nodes := harvestJSONLD(doc)
	content.Metadata.StructuredData = nodes

	content.Title = firstNonEmpty(
		doc.Find("title").First().Text(),
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
	)
	content.Description = firstNonEmpty(
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="twitter:description"]`),
	)
	for _, kw := range strings.Split(metaContent(doc, `meta[name="keywords"]`), ",") {
		content.Keywords = appendTrimmed(content.Keywords, kw)
	}

	doc.Find("script, style, iframe, noscript, template, svg").Remove()

	content.Metadata.ContactInfo = contactInfo(doc, nodes)
	content.Categories = categories(doc, nodes)
	content.Metadata.Prices = e.heuristicPrices(doc, pageURL)
	content.MainContent = e.mainText(doc)

	products, services := structuredOfferings(nodes, pageURL)
	for _, list := range [][]models.Offering{products, services} {
		for i := range list {
			if list[i].Currency == "" {
				list[i].Currency = e.pageCurrency(content)
			}
		}
	}
	content.Products = append(content.Products, products...)
	content.Services = append(content.Services, services...)

	if e.llm != nil && strings.TrimSpace(content.MainContent) != "" {
		llmProducts, llmServices, err := e.extractOfferings(ctx, content)
		if err != nil {
			logger.Warning("LLM offering extraction failed for %s: %v", pageURL, err)
		} else {
			content.Products = mergeOfferings(content.Products, llmProducts)
			content.Services = mergeOfferings(content.Services, llmServices)
		}
	}

	logger.Debug("Extracted %s: %d products, %d services, %d prices",
		pageURL, len(content.Products), len(content.Services), len(content.Metadata.Prices))
	return content, nil
}

func (e *Extractor) heuristicPrices(doc *goquery.Document, pageURL string) []models.PriceData {
	type key struct {
		value    float64
		currency string
	}
	seen := make(map[key]struct{})
	itemCurrency := metaContent(doc, `[itemprop="priceCurrency"]`)
	var prices []models.PriceData

	doc.Find(priceSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(priceSelector).Length() > 0 || hiddenRegion(s) {
			return
		}

		text := collapse(s.Text())
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			text = strings.TrimSpace(v) + " " + text
		} else if v, ok := s.Attr("data-price"); ok && strings.TrimSpace(v) != "" {
			text = strings.TrimSpace(v) + " " + text
		}
		if text == "" || len(text) > 120 || strings.Contains(text, "@") {
			return
		}

		value, currency, ok := ParsePrice(text)
		if !ok {
			return
		}
		if currency == "" {
			if _, isItemProp := s.Attr("itemprop"); !isItemProp || itemCurrency == "" {
				return
			}
			currency = NormalizeCurrency(itemCurrency)
		}

		k := key{value, currency}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		prices = append(prices, models.PriceData{
			Price:     value,
			Currency:  currency,
			Timestamp: e.now(),
			Source:    pageURL,
		})
	})
	return prices
}

func hiddenRegion(s *goquery.Selection) bool {
	if s.Closest(`nav, footer, header, [hidden], [aria-hidden="true"]`).Length() > 0 {
		return true
	}
	hidden := false
	s.Parents().AddSelection(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		style := strings.ToLower(strings.ReplaceAll(el.AttrOr("style", ""), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			hidden = true
			return false
		}
		for _, cls := range strings.Fields(el.AttrOr("class", "")) {
			switch strings.ToLower(cls) {
			case "hidden", "sr-only", "visually-hidden", "d-none":
				hidden = true
				return false
			}
		}
		return true
	})
	return hidden
}

func (e *Extractor) mainText(doc *goquery.Document) string {
	root := doc.Find(`main, article, [role="main"]`).First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}
	return truncate(collapse(root.Text()), e.cfg.MaxContentChars)
}

func contactInfo(doc *goquery.Document, nodes []map[string]interface{}) models.ContactInfo {
	var info models.ContactInfo

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		addr := strings.TrimPrefix(s.AttrOr("href", ""), "mailto:")
		if i := strings.Index(addr, "?"); i >= 0 {
			addr = addr[:i]
		}
		info.Emails = appendTrimmed(info.Emails, addr)
	})
	for _, m := range emailPattern.FindAllString(doc.Find("body").Text(), 20) {
		info.Emails = appendTrimmed(info.Emails, m)
	}

	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		info.Phones = appendTrimmed(info.Phones, strings.TrimPrefix(s.AttrOr("href", ""), "tel:"))
	})
	for _, node := range nodes {
		info.Phones = appendTrimmed(info.Phones, stringField(node, "telephone"))
	}

	info.Address = structuredAddress(nodes)
	if info.Address == "" {
		info.Address = collapse(doc.Find("address").First().Text())
	}
	return info
}

func categories(doc *goquery.Document, nodes []map[string]interface{}) []string {
	out := []string{}
	doc.Find(`[aria-label*="readcrumb"] a, .breadcrumb a, .breadcrumbs a`).Each(func(_ int, s *goquery.Selection) {
		text := collapse(s.Text())
		if strings.EqualFold(text, "home") {
			return
		}
		out = appendTrimmed(out, text)
	})
	for _, node := range nodes {
		if hasType(node, "Product", "Service") {
			out = appendTrimmed(out, stringField(node, "category"))
		}
	}
	return out
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = collapse(v); v != "" {
			return v
		}
	}
	return ""
}

func appendTrimmed(dst []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return dst
	}
	for _, existing := range dst {
		if strings.EqualFold(existing, v) {
			return dst
		}
	}
	return append(dst, v)
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
