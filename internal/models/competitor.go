package models

import "time"

// MatchedProduct links a competitor product to one of the requester's offerings
type MatchedProduct struct {
	Name       string   `json:"name" bson:"name"`
	MatchScore float64  `json:"matchScore" bson:"matchScore"`
	PriceDiff  *float64 `json:"priceDiff,omitempty" bson:"priceDiff,omitempty"`
}

// CompetitorProduct is a product observed on a competitor site
type CompetitorProduct struct {
	Name            string           `json:"name" bson:"name"`
	URL             string           `json:"url" bson:"url"`
	Price           *float64         `json:"price,omitempty" bson:"price,omitempty"`
	Currency        string           `json:"currency" bson:"currency"`
	MatchedProducts []MatchedProduct `json:"matchedProducts" bson:"matchedProducts"`
}

// PriceMatch is a price-level match between an offering and a competitor price
type PriceMatch struct {
	Offering        string  `json:"offering" bson:"offering"`
	OfferingPrice   float64 `json:"offeringPrice" bson:"offeringPrice"`
	CompetitorItem  string  `json:"competitorItem" bson:"competitorItem"`
	CompetitorPrice float64 `json:"competitorPrice" bson:"competitorPrice"`
	CompetitorURL   string  `json:"competitorUrl,omitempty" bson:"competitorUrl,omitempty"`
	Currency        string  `json:"currency" bson:"currency"`
	Similarity      float64 `json:"similarity" bson:"similarity"`
	Source          string  `json:"source" bson:"source"` // heuristic or llm
}

// CompetitorInsight is the analysis of one competitor
type CompetitorInsight struct {
	Domain            string              `json:"domain" bson:"domain"`
	BusinessName      string              `json:"businessName,omitempty" bson:"businessName,omitempty"`
	MatchScore        float64             `json:"matchScore" bson:"matchScore"`
	MatchReasons      []string            `json:"matchReasons" bson:"matchReasons"`
	SuggestedApproach string              `json:"suggestedApproach" bson:"suggestedApproach"`
	DataGaps          []string            `json:"dataGaps" bson:"dataGaps"`
	ListingPlatforms  []string            `json:"listingPlatforms" bson:"listingPlatforms"`
	Products          []CompetitorProduct `json:"products" bson:"products"`
	MonitoringURLs    []string            `json:"monitoringUrls" bson:"monitoringUrls"`
	Rating            *float64            `json:"rating,omitempty" bson:"rating,omitempty"`
	ReviewCount       *int                `json:"reviewCount,omitempty" bson:"reviewCount,omitempty"`
	PriceRange        string              `json:"priceRange,omitempty" bson:"priceRange,omitempty"`
	PriceMatches      []PriceMatch        `json:"priceMatches" bson:"priceMatches"`
	AnalyzedAt        time.Time           `json:"analyzedAt" bson:"analyzedAt"`
}

// SearchStrategy describes how competitors were searched for
type SearchStrategy struct {
	Type     string `json:"type" bson:"type"` // maps, shopping, local, organic
	Query    string `json:"query" bson:"query"`
	Location string `json:"location,omitempty" bson:"location,omitempty"`
}

// DiscoveryStats summarises a discovery run
type DiscoveryStats struct {
	TotalDiscovered     int `json:"totalDiscovered" bson:"totalDiscovered"`
	NewCompetitors      int `json:"newCompetitors" bson:"newCompetitors"`
	ExistingCompetitors int `json:"existingCompetitors" bson:"existingCompetitors"`
	FailedAnalyses      int `json:"failedAnalyses" bson:"failedAnalyses"`
}

// DiscoveryResult is the outcome of one competitor discovery run
type DiscoveryResult struct {
	ID                 string              `json:"id" bson:"_id"`
	Domain             string              `json:"domain" bson:"domain"`
	BusinessType       string              `json:"businessType" bson:"businessType"`
	Competitors        []CompetitorInsight `json:"competitors" bson:"competitors"`
	RecommendedSources []string            `json:"recommendedSources" bson:"recommendedSources"`
	SearchStrategy     SearchStrategy      `json:"searchStrategy" bson:"searchStrategy"`
	Stats              DiscoveryStats      `json:"stats" bson:"stats"`
	StartedAt          time.Time           `json:"startedAt" bson:"startedAt"`
	CompletedAt        time.Time           `json:"completedAt" bson:"completedAt"`
}

// BusinessContext is what the pipeline knows about the requesting business
type BusinessContext struct {
	Domain           string          `json:"domain"`
	BusinessType     string          `json:"businessType"`
	CatalogURL       string          `json:"catalogUrl"`
	Content          *WebsiteContent `json:"content"`
	KnownCompetitors []string        `json:"knownCompetitors"`
}
