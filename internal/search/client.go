// Package search queries a SerpAPI-compatible search API for competitor
// candidates and price signals.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AI2HU/compscout/internal/cache"
	"github.com/AI2HU/compscout/internal/logger"
)

var (
	ErrNoAPIKey     = errors.New("search API key is not configured")
	ErrRateLimited  = errors.New("search API rate limited")
	ErrSearchFailed = errors.New("search request failed")
)

// Type selects the search vertical
type Type string

const (
	TypeOrganic  Type = "organic"
	TypeMaps     Type = "maps"
	TypeShopping Type = "shopping"
	TypeLocal    Type = "local"
)

// ParseType maps a free-form strategy name onto a Type, defaulting to organic
func ParseType(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeMaps:
		return TypeMaps
	case TypeShopping:
		return TypeShopping
	case TypeLocal:
		return TypeLocal
	default:
		return TypeOrganic
	}
}

// Query is one search request
type Query struct {
	Type     Type   `json:"type"`
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
	Num      int    `json:"num,omitempty"`
}

// Result is one normalized search hit
type Result struct {
	Position   int      `json:"position"`
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	Snippet    string   `json:"snippet,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	PriceText  string   `json:"priceText,omitempty"`
	Rating     *float64 `json:"rating,omitempty"`
	Reviews    *int     `json:"reviews,omitempty"`
	PriceRange string   `json:"priceRange,omitempty"`
	Address    string   `json:"address,omitempty"`
	Source     Type     `json:"source"`
}

// Response holds every result of a query
type Response struct {
	Query   Query    `json:"query"`
	Results []Result `json:"results"`
}

// Config configures the search client
type Config struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Num               int           `mapstructure:"num" yaml:"num"`
	Country           string        `mapstructure:"country" yaml:"country"`
	Language          string        `mapstructure:"language" yaml:"language"`
}

// DefaultConfig returns the default client settings
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://serpapi.com/search.json",
		Timeout:           20 * time.Second,
		RequestsPerSecond: 1,
		Burst:             2,
		MaxRetries:        2,
		BaseDelay:         time.Second,
		CacheTTL:          6 * time.Hour,
		Num:               10,
		Country:           "us",
		Language:          "en",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = d.RequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.Num <= 0 {
		c.Num = d.Num
	}
	return c
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.http = client }
}

// WithCache caches responses for CacheTTL
func WithCache(store cache.Cache) Option {
	return func(c *Client) { c.cache = store }
}

// WithSleep replaces the context-aware sleep used between retries
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// Client talks to the search API
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   cache.Cache
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a search client
func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs q and returns its normalized results
func (c *Client) Search(ctx context.Context, q Query) (*Response, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if q.Num <= 0 {
		q.Num = c.cfg.Num
	}
	if q.Type == "" {
		q.Type = TypeOrganic
	}

	key := cacheKey(q)
	if c.cache != nil && c.cfg.CacheTTL > 0 {
		var cached Response
		if err := cache.GetJSON(ctx, c.cache, key, &cached); err == nil {
			logger.Debug("Search cache hit: %s %q", q.Type, q.Text)
			return &cached, nil
		}
	}

	body, err := c.fetch(ctx, c.buildURL(q))
	if err != nil {
		return nil, err
	}

	resp, err := parseResponse(body, q)
	if err != nil {
		return nil, err
	}
	logger.Debug("Search %s %q returned %d results", q.Type, q.Text, len(resp.Results))

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		if err := cache.SetJSON(ctx, c.cache, key, resp, c.cfg.CacheTTL); err != nil {
			logger.Warning("Failed to cache search response: %v", err)
		}
	}
	return resp, nil
}

func (c *Client) buildURL(q Query) string {
	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("q", q.Text)
	if c.cfg.Language != "" {
		params.Set("hl", c.cfg.Language)
	}
	if c.cfg.Country != "" {
		params.Set("gl", c.cfg.Country)
	}
	if q.Location != "" {
		params.Set("location", q.Location)
	}

	switch q.Type {
	case TypeMaps:
		params.Set("engine", "google_maps")
		params.Set("type", "search")
	case TypeShopping:
		params.Set("engine", "google")
		params.Set("tbm", "shop")
		params.Set("num", strconv.Itoa(q.Num))
	case TypeLocal:
		params.Set("engine", "google")
		params.Set("tbm", "lcl")
		params.Set("num", strconv.Itoa(q.Num))
	default:
		params.Set("engine", "google")
		params.Set("num", strconv.Itoa(q.Num))
	}
	return c.cfg.BaseURL + "?" + params.Encode()
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.BaseDelay * time.Duration(1<<(attempt-1))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.do(ctx, reqURL)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrSearchFailed, err)
		case status == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
		case status >= 500:
			lastErr = fmt.Errorf("%w: status %d", ErrSearchFailed, status)
		case status != http.StatusOK:
			return nil, fmt.Errorf("%w: status %d: %s", ErrSearchFailed, status, apiError(body))
		default:
			return body, nil
		}
		logger.Warning("Search attempt %d failed: %v", attempt+1, lastErr)
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func cacheKey(q Query) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", q.Type, strings.ToLower(q.Text), strings.ToLower(q.Location), q.Num)))
	return "search:" + hex.EncodeToString(sum[:12])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
