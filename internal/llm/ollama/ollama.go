package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/models"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1"
)

// Provider implements the LLM Provider interface for a local Ollama server
type Provider struct {
	baseURL string
	client  *http.Client
}

// New creates a new Ollama provider
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "ollama"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Generate sends a prompt to the chat endpoint
func (p *Provider) Generate(ctx context.Context, prompt string, config llm.Config) (*llm.Response, error) {
	startTime := time.Now()

	req := chatRequest{
		Model:    defaultModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Options:  map[string]interface{}{"temperature": config.Temperature},
	}
	if config.Model != "" {
		req.Model = config.Model
	}
	if config.MaxTokens > 0 {
		req.Options["num_predict"] = config.MaxTokens
	}
	if config.JSONMode {
		req.Format = "json"
	}

	var resp chatResponse
	if err := llm.PostJSON(ctx, p.client, p.Name(), p.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Message.Content == "" {
		return nil, llm.ErrEmptyResponse
	}

	return &llm.Response{
		Text:       resp.Message.Content,
		TokensUsed: resp.PromptEvalCount + resp.EvalCount,
		LatencyMs:  time.Since(startTime).Milliseconds(),
		Model:      resp.Model,
		Provider:   p.Name(),
	}, nil
}

// ListModels lists the models pulled on the Ollama server
func (p *Provider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	var resp struct {
		Models []struct {
			Name    string `json:"name"`
			Details struct {
				ParameterSize string `json:"parameter_size"`
				Family        string `json:"family"`
			} `json:"details"`
		} `json:"models"`
	}
	if err := llm.GetJSON(ctx, p.client, p.Name(), p.baseURL+"/api/tags", nil, &resp); err != nil {
		return nil, err
	}

	var list []models.ModelInfo
	for _, m := range resp.Models {
		if strings.Contains(strings.ToLower(m.Name), "embed") {
			continue
		}
		desc := strings.TrimSpace(m.Details.Family + " " + m.Details.ParameterSize)
		list = append(list, models.ModelInfo{ID: m.Name, Name: m.Name, Description: desc})
	}
	return list, nil
}
