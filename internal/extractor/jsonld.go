package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/shared"
)

// harvestJSONLD returns every JSON-LD node on the page. Arrays and @graph
// containers are flattened. Blocks that do not parse are skipped.
func harvestJSONLD(doc *goquery.Document) []map[string]interface{} {
	var nodes []map[string]interface{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			logger.Debug("Skipping invalid JSON-LD block: %v", err)
			return
		}
		nodes = flattenNodes(nodes, v)
	})
	return nodes
}

func flattenNodes(dst []map[string]interface{}, v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			dst = flattenNodes(dst, item)
		}
	case map[string]interface{}:
		if graph, ok := t["@graph"]; ok {
			return flattenNodes(dst, graph)
		}
		dst = append(dst, t)
		if list, ok := t["itemListElement"].([]interface{}); ok {
			for _, el := range list {
				if m, ok := el.(map[string]interface{}); ok {
					if item, ok := m["item"]; ok {
						dst = flattenNodes(dst, item)
						continue
					}
					if hasType(m, "Product", "Service", "Offer") {
						dst = flattenNodes(dst, m)
					}
				}
			}
		}
	}
	return dst
}

func hasType(node map[string]interface{}, types ...string) bool {
	var names []string
	switch t := node["@type"].(type) {
	case string:
		names = []string{t}
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	for _, n := range names {
		for _, want := range types {
			if strings.EqualFold(n, want) {
				return true
			}
		}
	}
	return false
}

// structuredOfferings turns Product, Service and Offer nodes into offerings
func structuredOfferings(nodes []map[string]interface{}, pageURL string) (products, services []models.Offering) {
	for _, node := range nodes {
		switch {
		case hasType(node, "Product", "Offer"):
			if o, ok := nodeOffering(node, pageURL); ok {
				products = append(products, o)
			}
		case hasType(node, "Service"):
			if o, ok := nodeOffering(node, pageURL); ok {
				services = append(services, o)
			}
		}
	}
	return products, services
}

func nodeOffering(node map[string]interface{}, pageURL string) (models.Offering, bool) {
	name := stringField(node, "name")
	if name == "" {
		if item, ok := node["itemOffered"].(map[string]interface{}); ok {
			name = stringField(item, "name")
		}
	}
	if name == "" {
		return models.Offering{}, false
	}

	o := models.Offering{
		Name:        name,
		Description: stringField(node, "description"),
		URL:         pageURL,
		Category:    stringField(node, "category"),
	}
	if u := stringField(node, "url"); u != "" {
		o.URL = shared.ResolveURL(pageURL, u)
	}

	price, currency := offerPrice(node)
	if offers, ok := node["offers"]; ok && price == 0 {
		price, currency = offerPrice(firstNode(offers))
	}
	o.Price = price
	o.Currency = NormalizeCurrency(currency)
	return o, true
}

func offerPrice(node map[string]interface{}) (float64, string) {
	if node == nil {
		return 0, ""
	}
	currency := stringField(node, "priceCurrency")
	for _, key := range []string{"price", "lowPrice"} {
		if v, ok := node[key].(float64); ok && v > 0 && v < MaxPrice {
			return v, currency
		}
		raw := stringField(node, key)
		if raw == "" {
			continue
		}
		if v, cur, ok := ParsePrice(raw); ok {
			if currency == "" {
				currency = cur
			}
			return v, currency
		}
	}
	if spec, ok := node["priceSpecification"].(map[string]interface{}); ok {
		return offerPrice(spec)
	}
	return 0, currency
}

func firstNode(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return t
	case []interface{}:
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				return m
			}
		}
	}
	return nil
}

func stringField(node map[string]interface{}, key string) string {
	switch v := node[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]interface{}:
		return stringField(v, "name")
	}
	return ""
}

// structuredAddress returns the first postal address among the nodes
func structuredAddress(nodes []map[string]interface{}) string {
	for _, node := range nodes {
		switch addr := node["address"].(type) {
		case string:
			if addr != "" {
				return strings.TrimSpace(addr)
			}
		case map[string]interface{}:
			var parts []string
			for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode", "addressCountry"} {
				if v := stringField(addr, key); v != "" {
					parts = append(parts, v)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
	}
	return ""
}
