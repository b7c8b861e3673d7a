package perplexity

import (
	"context"
	"fmt"
	"time"

	"github.com/sgaunet/perplexity-go/v2"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/models"
)

const defaultModel = "sonar"

// Provider implements the LLM Provider interface for Perplexity's search-grounded models
type Provider struct {
	client *perplexity.Client
}

// New creates a new Perplexity provider
func New(apiKey string) *Provider {
	return &Provider{client: perplexity.NewClient(apiKey)}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "perplexity"
}

type result struct {
	res *perplexity.CompletionResponse
	err error
}

// Generate sends a prompt to Perplexity. The client has no context support so
// the call runs in its own goroutine and ctx only bounds the wait.
func (p *Provider) Generate(ctx context.Context, prompt string, config llm.Config) (*llm.Response, error) {
	startTime := time.Now()

	model := defaultModel
	if config.Model != "" {
		model = config.Model
	}

	msgs := []perplexity.Message{{Role: "user", Content: prompt}}
	req := perplexity.NewCompletionRequest(
		perplexity.WithMessages(msgs),
		perplexity.WithModel(model),
	)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid perplexity request: %w", err)
	}

	done := make(chan result, 1)
	go func() {
		res, err := p.client.SendCompletionRequest(req)
		done <- result{res: res, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}

	if r.err != nil {
		return nil, fmt.Errorf("perplexity request failed: %w", r.err)
	}

	text := r.res.GetLastContent()
	if text == "" {
		return nil, llm.ErrEmptyResponse
	}

	return &llm.Response{
		Text:       text,
		TokensUsed: r.res.Usage.TotalTokens,
		LatencyMs:  time.Since(startTime).Milliseconds(),
		Model:      model,
		Provider:   p.Name(),
	}, nil
}

// ListModels returns the Sonar models; Perplexity has no listing endpoint
func (p *Provider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	return []models.ModelInfo{
		{ID: "sonar", Name: "Sonar", Description: "Lightweight search-grounded model"},
		{ID: "sonar-pro", Name: "Sonar Pro", Description: "Search-grounded model for multi-step queries"},
		{ID: "sonar-reasoning", Name: "Sonar Reasoning", Description: "Search-grounded reasoning model"},
	}, nil
}
