package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AI2HU/compscout/internal/models"
)

// Provider is implemented by every LLM backend
type Provider interface {
	// Name returns the provider identifier used in model descriptors
	Name() string
	// Generate sends a single prompt and returns the completion
	Generate(ctx context.Context, prompt string, config Config) (*Response, error)
	// ListModels lists the text models the backend offers
	ListModels(ctx context.Context) ([]models.ModelInfo, error)
}

// Config holds per-call generation parameters
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        float64
	// JSONMode asks backends that support it to emit a JSON document
	JSONMode bool
}

// Response is a completion returned by a provider
type Response struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokensUsed"`
	LatencyMs  int64  `json:"latencyMs"`
	Model      string `json:"model"`
	Provider   string `json:"provider"`
}

// Registry maps provider names to providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
