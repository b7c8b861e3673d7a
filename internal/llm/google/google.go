package google

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/models"
)

const defaultModel = "gemini-2.0-flash"

// Provider implements the LLM Provider interface for the Gemini API
type Provider struct {
	apiKey  string
	baseURL string

	mu     sync.Mutex
	client *genai.Client
}

// New creates a new Google provider. The client is created lazily on first use.
func New(apiKey, baseURL string) *Provider {
	return &Provider{apiKey: apiKey, baseURL: baseURL}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "google"
}

func (p *Provider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	p.client = client
	return client, nil
}

// Generate sends a prompt to Gemini and returns the response
func (p *Provider) Generate(ctx context.Context, prompt string, config llm.Config) (*llm.Response, error) {
	startTime := time.Now()

	model := defaultModel
	if config.Model != "" {
		model = config.Model
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	generationConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(config.Temperature)),
	}
	if config.TopP > 0 {
		generationConfig.TopP = genai.Ptr(float32(config.TopP))
	}
	if config.TopK > 0 {
		generationConfig.TopK = genai.Ptr(float32(config.TopK))
	}
	if config.MaxTokens > 0 {
		generationConfig.MaxOutputTokens = int32(config.MaxTokens)
	}
	if config.JSONMode {
		generationConfig.ResponseMIMEType = "application/json"
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), generationConfig)
	if err != nil {
		return nil, fmt.Errorf("google request failed: %w", err)
	}

	text := collectText(result)
	if text == "" {
		return nil, llm.ErrEmptyResponse
	}

	tokensUsed := 0
	if result.UsageMetadata != nil {
		tokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}

	return &llm.Response{
		Text:       text,
		TokensUsed: tokensUsed,
		LatencyMs:  time.Since(startTime).Milliseconds(),
		Model:      model,
		Provider:   p.Name(),
	}, nil
}

func collectText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// ListModels lists the Gemini text models
func (p *Provider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	modelPage, err := client.Models.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var modelList []models.ModelInfo
	for _, m := range modelPage.Items {
		lower := strings.ToLower(m.Name)
		if !strings.Contains(lower, "gemini") || strings.Contains(lower, "embed") || strings.Contains(lower, "image") {
			continue
		}
		modelList = append(modelList, models.ModelInfo{
			ID:          m.Name,
			Name:        strings.TrimPrefix(m.Name, "models/"),
			Description: m.Description,
		})
	}
	return modelList, nil
}
