// Package competitor discovers the competitors of a business and analyzes
// each of them against the business's own offerings.
package competitor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
	"github.com/AI2HU/compscout/internal/search"
)

var (
	ErrCatalogUnavailable = errors.New("product catalog unavailable")
	ErrInsufficientData   = errors.New("insufficient data to analyze competitor")
	ErrInvalidRequest     = errors.New("invalid discovery request")
)

// Invoker sends a prompt through the model router
type Invoker interface {
	Invoke(ctx context.Context, operation, prompt, preferred string) (*router.Result, error)
}

// ContentDiscoverer crawls a website. It never fails.
type ContentDiscoverer interface {
	DiscoverWebsiteContent(ctx context.Context, url string) *models.WebsiteContent
}

// Searcher finds candidates and price signals through a search API
type Searcher interface {
	FindCandidates(ctx context.Context, q search.Query, exclude []string) (*search.Candidates, error)
	PriceSignals(ctx context.Context, query string) ([]search.PriceSignal, error)
}

// Config tunes discovery and analysis
type Config struct {
	MaxCandidates    int           `mapstructure:"max_candidates" yaml:"max_candidates"`
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`
	CandidateTimeout time.Duration `mapstructure:"candidate_timeout" yaml:"candidate_timeout"`
	MaxPriceQueries  int           `mapstructure:"max_price_queries" yaml:"max_price_queries"`
	MatchThreshold   float64       `mapstructure:"match_threshold" yaml:"match_threshold"`
	SuggestCount     int           `mapstructure:"suggest_count" yaml:"suggest_count"`
	SuggestSources   bool          `mapstructure:"suggest_sources" yaml:"suggest_sources"`
	PreferredModel   string        `mapstructure:"preferred_model" yaml:"preferred_model,omitempty"`
	PromptChars      int           `mapstructure:"prompt_chars" yaml:"prompt_chars"`
}

// DefaultConfig returns the default settings
func DefaultConfig() Config {
	return Config{
		MaxCandidates:    10,
		Concurrency:      3,
		CandidateTimeout: 3 * time.Minute,
		MaxPriceQueries:  3,
		MatchThreshold:   0.6,
		SuggestCount:     5,
		SuggestSources:   true,
		PromptChars:      6000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.CandidateTimeout <= 0 {
		c.CandidateTimeout = d.CandidateTimeout
	}
	if c.MaxPriceQueries < 0 {
		c.MaxPriceQueries = 0
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		c.MatchThreshold = d.MatchThreshold
	}
	if c.SuggestCount <= 0 {
		c.SuggestCount = d.SuggestCount
	}
	if c.PromptChars <= 0 {
		c.PromptChars = d.PromptChars
	}
	return c
}

// Request describes a discovery run
type Request struct {
	Domain            string   `json:"domain" binding:"required"`
	BusinessType      string   `json:"businessType"`
	KnownCompetitors  []string `json:"knownCompetitors"`
	ProductCatalogURL string   `json:"productCatalogUrl"`
	Location          string   `json:"location,omitempty"`
}

// Service runs discovery and analysis
type Service struct {
	llm       Invoker
	discovery ContentDiscoverer
	search    Searcher
	cfg       Config
	now       func() time.Time
	newID     func() string
}

// New creates a competitor service. searcher may be nil when no search API
// is configured; search-backed steps then yield nothing.
func New(llm Invoker, discovery ContentDiscoverer, searcher Searcher, cfg Config) *Service {
	return &Service{
		llm:       llm,
		discovery: discovery,
		search:    searcher,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
