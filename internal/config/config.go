package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/AI2HU/compscout/internal/competitor"
	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/discovery"
	"github.com/AI2HU/compscout/internal/extractor"
	"github.com/AI2HU/compscout/internal/fetcher"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
	"github.com/AI2HU/compscout/internal/scheduler"
	"github.com/AI2HU/compscout/internal/search"
	"github.com/AI2HU/compscout/internal/sitemap"
)

// EnvPrefix prefixes every environment override, e.g. COMPSCOUT_SEARCH_API_KEY
const EnvPrefix = "COMPSCOUT"

// Providers lists the supported LLM provider names
var Providers = []string{"openai", "anthropic", "google", "ollama", "perplexity"}

// Config represents the application configuration
type Config struct {
	LogLevel   string                   `mapstructure:"log_level" yaml:"log_level"`
	Models     []models.ModelDescriptor `mapstructure:"models" yaml:"models"`
	Router     router.Options           `mapstructure:"router" yaml:"router"`
	Fetcher    fetcher.Config           `mapstructure:"fetcher" yaml:"fetcher"`
	Renderer   RendererConfig           `mapstructure:"renderer" yaml:"renderer"`
	Sitemap    sitemap.Config           `mapstructure:"sitemap" yaml:"sitemap"`
	Search     search.Config            `mapstructure:"search" yaml:"search"`
	Discovery  discovery.Config         `mapstructure:"discovery" yaml:"discovery"`
	Extractor  extractor.Config         `mapstructure:"extractor" yaml:"extractor"`
	Competitor competitor.Config        `mapstructure:"competitor" yaml:"competitor"`
	Cache      CacheConfig              `mapstructure:"cache" yaml:"cache"`
	Database   db.Config                `mapstructure:"database" yaml:"database"`
	API        APIConfig                `mapstructure:"api" yaml:"api"`
	Watches    []scheduler.Watch        `mapstructure:"watches" yaml:"watches,omitempty"`
}

// RendererConfig selects how JavaScript-heavy pages are rendered
type RendererConfig struct {
	Type          string                `mapstructure:"type" yaml:"type"` // none, browser, managed
	Browser       fetcher.BrowserConfig `mapstructure:"browser" yaml:"browser"`
	ManagedURL    string                `mapstructure:"managed_url" yaml:"managed_url,omitempty"`
	ManagedAPIKey string                `mapstructure:"managed_api_key" yaml:"managed_api_key,omitempty"`
	Timeout       time.Duration         `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type" yaml:"type"` // memory or redis
	RedisAddr       string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPassword   string        `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB         int           `mapstructure:"redis_db" yaml:"redis_db"`
	Prefix          string        `mapstructure:"prefix" yaml:"prefix"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// APIConfig holds server-related configuration
type APIConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           string        `mapstructure:"port" yaml:"port"`
	Environment    string        `mapstructure:"environment" yaml:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		Models:     []models.ModelDescriptor{},
		Router:     router.DefaultOptions(),
		Fetcher:    fetcher.DefaultConfig(),
		Renderer:   RendererConfig{Type: "none", Timeout: 60 * time.Second},
		Sitemap:    sitemap.DefaultConfig(),
		Search:     search.DefaultConfig(),
		Discovery:  discovery.DefaultConfig(),
		Extractor:  extractor.DefaultConfig(),
		Competitor: competitor.DefaultConfig(),
		Cache: CacheConfig{
			Type:            "memory",
			Prefix:          "compscout:",
			CleanupInterval: 5 * time.Minute,
		},
		Database: db.Config{
			Provider: "sqlite",
			URI:      filepath.Join(GetConfigDir(), "compscout.db"),
			Database: "compscout",
		},
		API: APIConfig{
			Host:           "0.0.0.0",
			Port:           "8989",
			Environment:    "development",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 10 * time.Minute,
		},
	}
}

// Load reads the YAML file at path, applies COMPSCOUT_* environment
// overrides on top of the defaults and validates the result. A missing file
// is an error unless path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for i := range cfg.Models {
		cfg.Models[i].APIKey = os.ExpandEnv(cfg.Models[i].APIKey)
	}
	cfg.Search.APIKey = os.ExpandEnv(cfg.Search.APIKey)
	cfg.Renderer.ManagedAPIKey = os.ExpandEnv(cfg.Renderer.ManagedAPIKey)
	cfg.Cache.RedisPassword = os.ExpandEnv(cfg.Cache.RedisPassword)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("router.batch_size", d.Router.BatchSize)
	v.SetDefault("router.batch_window", d.Router.BatchWindow)
	v.SetDefault("router.inter_request_delay", d.Router.InterRequestDelay)
	v.SetDefault("router.queue_capacity", d.Router.QueueCapacity)
	v.SetDefault("router.usage_window", d.Router.UsageWindow)
	v.SetDefault("router.temperature", d.Router.Temperature)
	v.SetDefault("router.max_tokens", d.Router.MaxTokens)

	v.SetDefault("fetcher.timeout", d.Fetcher.Timeout)
	v.SetDefault("fetcher.max_retries", d.Fetcher.MaxRetries)
	v.SetDefault("fetcher.base_delay", d.Fetcher.BaseDelay)
	v.SetDefault("fetcher.max_retry_after", d.Fetcher.MaxRetryAfter)
	v.SetDefault("fetcher.max_body_bytes", d.Fetcher.MaxBodyBytes)
	v.SetDefault("fetcher.requests_per_second", d.Fetcher.RequestsPerSecond)
	v.SetDefault("fetcher.burst", d.Fetcher.Burst)
	v.SetDefault("fetcher.cache_ttl", d.Fetcher.CacheTTL)
	v.SetDefault("fetcher.desktop_user_agent", d.Fetcher.DesktopUserAgent)
	v.SetDefault("fetcher.mobile_user_agent", d.Fetcher.MobileUserAgent)

	v.SetDefault("renderer.type", d.Renderer.Type)
	v.SetDefault("renderer.browser.debugger_url", d.Renderer.Browser.DebuggerURL)
	v.SetDefault("renderer.browser.bin", d.Renderer.Browser.Bin)
	v.SetDefault("renderer.browser.timeout", d.Renderer.Browser.Timeout)
	v.SetDefault("renderer.browser.user_agent", d.Renderer.Browser.UserAgent)
	v.SetDefault("renderer.managed_url", d.Renderer.ManagedURL)
	v.SetDefault("renderer.managed_api_key", d.Renderer.ManagedAPIKey)
	v.SetDefault("renderer.timeout", d.Renderer.Timeout)

	v.SetDefault("sitemap.user_agent", d.Sitemap.UserAgent)
	v.SetDefault("sitemap.max_sitemaps", d.Sitemap.MaxSitemaps)
	v.SetDefault("sitemap.max_urls", d.Sitemap.MaxURLs)

	v.SetDefault("search.base_url", d.Search.BaseURL)
	v.SetDefault("search.api_key", d.Search.APIKey)
	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.requests_per_second", d.Search.RequestsPerSecond)
	v.SetDefault("search.burst", d.Search.Burst)
	v.SetDefault("search.max_retries", d.Search.MaxRetries)
	v.SetDefault("search.base_delay", d.Search.BaseDelay)
	v.SetDefault("search.cache_ttl", d.Search.CacheTTL)
	v.SetDefault("search.num", d.Search.Num)
	v.SetDefault("search.country", d.Search.Country)
	v.SetDefault("search.language", d.Search.Language)

	v.SetDefault("discovery.max_pages", d.Discovery.MaxPages)
	v.SetDefault("discovery.concurrency", d.Discovery.Concurrency)
	v.SetDefault("discovery.budget", d.Discovery.Budget)
	v.SetDefault("discovery.keywords", d.Discovery.Keywords)

	v.SetDefault("extractor.max_content_chars", d.Extractor.MaxContentChars)
	v.SetDefault("extractor.prompt_content_chars", d.Extractor.PromptContentChars)
	v.SetDefault("extractor.preferred_model", d.Extractor.PreferredModel)
	v.SetDefault("extractor.default_currency", d.Extractor.DefaultCurrency)

	v.SetDefault("competitor.max_candidates", d.Competitor.MaxCandidates)
	v.SetDefault("competitor.concurrency", d.Competitor.Concurrency)
	v.SetDefault("competitor.candidate_timeout", d.Competitor.CandidateTimeout)
	v.SetDefault("competitor.max_price_queries", d.Competitor.MaxPriceQueries)
	v.SetDefault("competitor.match_threshold", d.Competitor.MatchThreshold)
	v.SetDefault("competitor.suggest_count", d.Competitor.SuggestCount)
	v.SetDefault("competitor.suggest_sources", d.Competitor.SuggestSources)
	v.SetDefault("competitor.preferred_model", d.Competitor.PreferredModel)
	v.SetDefault("competitor.prompt_chars", d.Competitor.PromptChars)

	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.prefix", d.Cache.Prefix)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)

	v.SetDefault("database.provider", d.Database.Provider)
	v.SetDefault("database.uri", d.Database.URI)
	v.SetDefault("database.database", d.Database.Database)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.environment", d.API.Environment)
	v.SetDefault("api.allowed_origins", d.API.AllowedOrigins)
	v.SetDefault("api.request_timeout", d.API.RequestTimeout)
}

// Validate checks the enumerated settings and every model and watch
func (c *Config) Validate() error {
	var errs []error

	if !isLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warning, error, got: %s", c.LogLevel))
	}

	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		if !isProvider(m.Provider) {
			errs = append(errs, fmt.Errorf("models[%d]: unsupported provider %q", i, m.Provider))
		}
		if m.ModelID == "" {
			errs = append(errs, fmt.Errorf("models[%d]: model_id is required", i))
		}
		if _, dup := seen[m.ModelID]; dup {
			errs = append(errs, fmt.Errorf("models[%d]: duplicate model_id %q", i, m.ModelID))
		}
		seen[m.ModelID] = struct{}{}
	}

	switch c.Renderer.Type {
	case "", "none", "browser", "managed":
	default:
		errs = append(errs, fmt.Errorf("renderer type must be 'none', 'browser' or 'managed', got: %s", c.Renderer.Type))
	}

	switch c.Cache.Type {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("redis_addr is required when cache type is 'redis'"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", c.Cache.Type))
	}

	switch c.Database.Provider {
	case "sqlite", "mongodb":
		if c.Database.URI == "" {
			errs = append(errs, fmt.Errorf("database uri is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("database provider must be 'sqlite' or 'mongodb', got: %s", c.Database.Provider))
	}

	for _, w := range c.Watches {
		if err := w.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func isLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warning", "warn", "error":
		return true
	}
	return false
}

func isProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// API keys may be stored inline
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigDir returns the directory holding the config file and the SQLite store
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".compscout"
	}
	return filepath.Join(home, ".compscout")
}

// GetConfigPath returns the config file path, honouring COMPSCOUT_CONFIG_PATH
func GetConfigPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_PATH"); p != "" {
		return p
	}
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Exists checks if config file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
