package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/models"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	defaultModel     = "claude-3-5-haiku-20241022"
	defaultMaxTokens = 2048
	apiVersion       = "2023-06-01"
)

// Provider implements the LLM Provider interface for the Anthropic Messages API
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a new Anthropic provider
func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "anthropic"
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends a prompt to the Messages API
func (p *Provider) Generate(ctx context.Context, prompt string, config llm.Config) (*llm.Response, error) {
	startTime := time.Now()

	req := messagesRequest{
		Model:       defaultModel,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: config.Temperature,
		MaxTokens:   defaultMaxTokens,
	}
	if config.Model != "" {
		req.Model = config.Model
	}
	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}
	if config.JSONMode {
		req.System = "Respond with a single valid JSON document and nothing else."
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	if err := llm.PostJSON(ctx, p.client, p.Name(), p.baseURL+"/messages", headers, req, &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" || block.Type == "" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, llm.ErrEmptyResponse
	}

	return &llm.Response{
		Text:       text.String(),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		LatencyMs:  time.Since(startTime).Milliseconds(),
		Model:      resp.Model,
		Provider:   p.Name(),
	}, nil
}

// ListModels lists the Claude models from the models endpoint
func (p *Provider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": apiVersion,
	}

	var resp struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := llm.GetJSON(ctx, p.client, p.Name(), p.baseURL+"/models", headers, &resp); err != nil {
		return nil, err
	}

	list := make([]models.ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		list = append(list, models.ModelInfo{ID: m.ID, Name: m.DisplayName})
	}
	return list, nil
}
