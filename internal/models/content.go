package models

import "strings"

// WebsiteContent is everything learned about one website
type WebsiteContent struct {
	URL         string     `json:"url" bson:"url"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Products    []Offering `json:"products" bson:"products"`
	Services    []Offering `json:"services" bson:"services"`
	Categories  []string   `json:"categories" bson:"categories"`
	Keywords    []string   `json:"keywords" bson:"keywords"`
	MainContent string     `json:"mainContent" bson:"mainContent"`
	Metadata    Metadata   `json:"metadata" bson:"metadata"`
}

// NewWebsiteContent returns an empty content shell for url
func NewWebsiteContent(url string) *WebsiteContent {
	return &WebsiteContent{
		URL:        url,
		Products:   []Offering{},
		Services:   []Offering{},
		Categories: []string{},
		Keywords:   []string{},
	}
}

// Merge folds other into c. Offerings and prices are appended, categories and
// keywords are de-duplicated case-insensitively, and the first non-empty title
// and description win.
func (c *WebsiteContent) Merge(other *WebsiteContent) {
	if other == nil {
		return
	}

	if c.Title == "" {
		c.Title = other.Title
	}
	if c.Description == "" {
		c.Description = other.Description
	}

	c.Products = append(c.Products, other.Products...)
	c.Services = append(c.Services, other.Services...)
	c.Categories = appendUnique(c.Categories, other.Categories...)
	c.Keywords = appendUnique(c.Keywords, other.Keywords...)

	if other.MainContent != "" {
		if c.MainContent == "" {
			c.MainContent = other.MainContent
		} else {
			c.MainContent += "\n\n" + other.MainContent
		}
	}

	c.Metadata.StructuredData = append(c.Metadata.StructuredData, other.Metadata.StructuredData...)
	c.Metadata.Prices = append(c.Metadata.Prices, other.Metadata.Prices...)
	c.Metadata.ContactInfo.Emails = appendUnique(c.Metadata.ContactInfo.Emails, other.Metadata.ContactInfo.Emails...)
	c.Metadata.ContactInfo.Phones = appendUnique(c.Metadata.ContactInfo.Phones, other.Metadata.ContactInfo.Phones...)
	if c.Metadata.ContactInfo.Address == "" {
		c.Metadata.ContactInfo.Address = other.Metadata.ContactInfo.Address
	}
}

// Offerings returns products followed by services
func (c *WebsiteContent) Offerings() []Offering {
	out := make([]Offering, 0, len(c.Products)+len(c.Services))
	out = append(out, c.Products...)
	return append(out, c.Services...)
}

// HasContent reports whether anything analysable was found
func (c *WebsiteContent) HasContent() bool {
	if c == nil {
		return false
	}
	return len(c.Products) > 0 || len(c.Services) > 0 || len(c.Metadata.Prices) > 0 ||
		strings.TrimSpace(c.MainContent) != ""
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
