package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/models"
)

const defaultModel = "gpt-4o-mini"

// Provider implements the LLM Provider interface for OpenAI and compatible APIs
type Provider struct {
	client openai.Client
}

// New creates a new OpenAI provider. An empty baseURL targets api.openai.com.
func New(apiKey, baseURL string) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}),
		// retries are owned by the router
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Provider{client: openai.NewClient(opts...)}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// Generate sends a prompt to the chat completions endpoint
func (p *Provider) Generate(ctx context.Context, prompt string, config llm.Config) (*llm.Response, error) {
	startTime := time.Now()

	model := defaultModel
	if config.Model != "" {
		model = config.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(config.Temperature),
	}
	if config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(config.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &llm.APIError{Provider: p.Name(), StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	return &llm.Response{
		Text:       completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
		LatencyMs:  time.Since(startTime).Milliseconds(),
		Model:      completion.Model,
		Provider:   p.Name(),
	}, nil
}

// ListModels lists the chat-capable GPT models
func (p *Provider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var textModels []models.ModelInfo
	for _, m := range page.Data {
		if !isChatModel(m.ID) {
			continue
		}
		textModels = append(textModels, models.ModelInfo{
			ID:          m.ID,
			Name:        m.ID,
			Description: fmt.Sprintf("OpenAI %s", m.ID),
		})
	}
	return textModels, nil
}

func isChatModel(id string) bool {
	lower := strings.ToLower(id)
	if !strings.HasPrefix(lower, "gpt-") && !strings.HasPrefix(lower, "o") {
		return false
	}
	// fine-tuned models carry colons
	if strings.Contains(id, ":") {
		return false
	}
	for _, skip := range []string{"embed", "vision", "image", "whisper", "audio", "tts", "realtime", "transcribe", "moderation"} {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	return true
}
