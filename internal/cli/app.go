package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/AI2HU/compscout/internal/cache"
	"github.com/AI2HU/compscout/internal/competitor"
	"github.com/AI2HU/compscout/internal/config"
	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/db/mongodb"
	"github.com/AI2HU/compscout/internal/db/sqlite"
	"github.com/AI2HU/compscout/internal/discovery"
	"github.com/AI2HU/compscout/internal/extractor"
	"github.com/AI2HU/compscout/internal/fetcher"
	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/llm/anthropic"
	"github.com/AI2HU/compscout/internal/llm/google"
	"github.com/AI2HU/compscout/internal/llm/ollama"
	"github.com/AI2HU/compscout/internal/llm/openai"
	"github.com/AI2HU/compscout/internal/llm/perplexity"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
	"github.com/AI2HU/compscout/internal/search"
	"github.com/AI2HU/compscout/internal/sitemap"
)

// pipeline holds the services one command needs, built from the config
type pipeline struct {
	router      *router.Router
	cache       cache.Cache
	browser     *fetcher.BrowserRenderer
	websites    *discovery.Service
	competitors *competitor.Service
}

// buildPipeline wires cache, fetcher, model router, extractor, discovery,
// search and competitor services together
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	p := &pipeline{}

	c, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	p.cache = c

	fetchOpts := []fetcher.Option{fetcher.WithCache(c)}
	switch cfg.Renderer.Type {
	case "browser":
		p.browser = fetcher.NewBrowserRenderer(cfg.Renderer.Browser)
		fetchOpts = append(fetchOpts, fetcher.WithRenderer(p.browser))
	case "managed":
		fetchOpts = append(fetchOpts, fetcher.WithRenderer(
			fetcher.NewManagedCrawler(cfg.Renderer.ManagedURL, cfg.Renderer.ManagedAPIKey, cfg.Renderer.Timeout)))
	}
	pages := fetcher.New(cfg.Fetcher, fetchOpts...)

	registry := newRegistry(cfg.Models)
	r, err := router.New(cfg.Models, registry, router.WithOptions(cfg.Router))
	if err != nil {
		p.Close()
		if errors.Is(err, router.ErrNoModels) {
			return nil, fmt.Errorf("%w: add at least one entry under 'models' in %s", err, cfgFile)
		}
		return nil, fmt.Errorf("failed to create model router: %w", err)
	}
	p.router = r

	structure := sitemap.NewDiscoverer(pages, cfg.Sitemap)
	extract := extractor.New(r, cfg.Extractor)
	p.websites = discovery.New(pages, structure, extract, cfg.Discovery)

	searcher := search.New(cfg.Search, search.WithCache(c))
	p.competitors = competitor.New(r, p.websites, searcher, cfg.Competitor)

	logger.Debug("Pipeline ready: %d model(s), renderer=%s, cache=%s", len(cfg.Models), cfg.Renderer.Type, cfg.Cache.Type)
	return p, nil
}

// Close releases the router workers, the cache and the browser
func (p *pipeline) Close() {
	if p.router != nil {
		p.router.Close()
	}
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			logger.Warning("Failed to close browser: %v", err)
		}
	}
	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			logger.Warning("Failed to close cache: %v", err)
		}
	}
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return c, nil
	default:
		return cache.NewMemoryCache(cfg.CleanupInterval), nil
	}
}

// newProvider creates the backend for a provider name
func newProvider(name, apiKey, baseURL string) (llm.Provider, error) {
	switch name {
	case "openai":
		return openai.New(apiKey, baseURL), nil
	case "anthropic":
		return anthropic.New(apiKey, baseURL), nil
	case "google":
		return google.New(apiKey, baseURL), nil
	case "ollama":
		return ollama.New(baseURL), nil
	case "perplexity":
		return perplexity.New(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// newRegistry registers one provider per distinct provider name, using the
// credentials of the first model that sets them
func newRegistry(descs []models.ModelDescriptor) *llm.Registry {
	type creds struct{ key, base string }
	seen := make(map[string]*creds)
	var order []string

	for _, d := range descs {
		c, ok := seen[d.Provider]
		if !ok {
			c = &creds{}
			seen[d.Provider] = c
			order = append(order, d.Provider)
		}
		if c.key == "" {
			c.key = d.APIKey
		}
		if c.base == "" {
			c.base = d.BaseURL
		}
	}

	registry := llm.NewRegistry()
	for _, name := range order {
		p, err := newProvider(name, seen[name].key, seen[name].base)
		if err != nil {
			logger.Warning("Skipping models of %s: %v", name, err)
			continue
		}
		registry.Register(p)
	}
	return registry
}

// openStore creates and connects the configured result store
func openStore(ctx context.Context, cfg db.Config) (db.ResultStore, error) {
	var (
		store db.ResultStore
		err   error
	)

	switch cfg.Provider {
	case "sqlite", "":
		store, err = sqlite.New(&cfg)
	case "mongodb":
		store, err = mongodb.New(&cfg)
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	if err := store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store, nil
}

func closeStore(store db.ResultStore) {
	if store == nil {
		return
	}
	if err := store.Disconnect(context.Background()); err != nil {
		logger.Warning("Failed to disconnect database: %v", err)
	}
}
