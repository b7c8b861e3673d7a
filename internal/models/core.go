package models

import (
	"time"
)

// Core domain models

// ModelDescriptor describes one LLM model the router may dispatch to
type ModelDescriptor struct {
	Provider          string  `json:"provider" yaml:"provider" mapstructure:"provider"` // openai, anthropic, google, ollama, perplexity
	ModelID           string  `json:"modelId" yaml:"model_id" mapstructure:"model_id"`
	TokensPerMinute   int     `json:"tokensPerMinute" yaml:"tokens_per_minute" mapstructure:"tokens_per_minute"`
	RequestsPerMinute int     `json:"requestsPerMinute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	QualityScore      float64 `json:"qualityScore" yaml:"quality_score" mapstructure:"quality_score"`
	Throughput        float64 `json:"throughput" yaml:"throughput" mapstructure:"throughput"` // tokens per second
	Latency           float64 `json:"latency" yaml:"latency" mapstructure:"latency"`          // average milliseconds
	ContextWindow     int     `json:"contextWindow" yaml:"context_window" mapstructure:"context_window"`
	ComplexityRating  float64 `json:"complexityRating" yaml:"complexity_rating" mapstructure:"complexity_rating"`
	APIKey            string  `json:"-" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string  `json:"baseUrl,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// ModelUsage is the per-window usage of one model
type ModelUsage struct {
	ModelID      string    `json:"modelId"`
	WindowStart  time.Time `json:"windowStart"`
	TokensUsed   int       `json:"tokensUsed"`
	RequestsUsed int       `json:"requestsUsed"`
}

// ModelInfo represents information about an available model from a provider
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Offering is a product or a service sold by a business
type Offering struct {
	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
	Price       float64 `json:"price" bson:"price"`
	Currency    string  `json:"currency" bson:"currency"`
	URL         string  `json:"url" bson:"url"`
	Category    string  `json:"category" bson:"category"`
}

// PriceData is a single observed price
type PriceData struct {
	Price     float64   `json:"price" bson:"price"`
	Currency  string    `json:"currency" bson:"currency"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Source    string    `json:"source" bson:"source"`
}

// ContactInfo holds the contact details found on a site
type ContactInfo struct {
	Emails  []string `json:"emails,omitempty" bson:"emails,omitempty"`
	Phones  []string `json:"phones,omitempty" bson:"phones,omitempty"`
	Address string   `json:"address,omitempty" bson:"address,omitempty"`
}

// IsEmpty reports whether no contact detail was found
func (c ContactInfo) IsEmpty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && c.Address == ""
}

// Metadata carries structured data harvested from a site
type Metadata struct {
	StructuredData []map[string]interface{} `json:"structuredData,omitempty" bson:"structuredData,omitempty"`
	ContactInfo    ContactInfo              `json:"contactInfo" bson:"contactInfo"`
	Prices         []PriceData              `json:"prices,omitempty" bson:"prices,omitempty"`
}

// SearchCandidate is a potential competitor found through search
type SearchCandidate struct {
	Domain      string   `json:"domain" bson:"domain"`
	Title       string   `json:"title,omitempty" bson:"title,omitempty"`
	Snippet     string   `json:"snippet,omitempty" bson:"snippet,omitempty"`
	Rating      *float64 `json:"rating,omitempty" bson:"rating,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty" bson:"reviewCount,omitempty"`
	PriceRange  string   `json:"priceRange,omitempty" bson:"priceRange,omitempty"`
	Link        string   `json:"link" bson:"link"`
	Source      string   `json:"source" bson:"source"` // organic, shopping, local, maps, llm, known
}
