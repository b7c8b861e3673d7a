package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ManagedCrawler renders pages through a hosted scraping API that follows the
// Firecrawl /v1/scrape contract.
type ManagedCrawler struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewManagedCrawler creates a managed crawling renderer
func NewManagedCrawler(baseURL, apiKey string, timeout time.Duration) *ManagedCrawler {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ManagedCrawler{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the renderer name
func (m *ManagedCrawler) Name() string {
	return "managed"
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		HTML     string `json:"html"`
		RawHTML  string `json:"rawHtml"`
		Metadata struct {
			StatusCode int    `json:"statusCode"`
			SourceURL  string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
}

// Render asks the API to load url in a browser and returns the rendered HTML
func (m *ManagedCrawler) Render(ctx context.Context, url string) (*Page, error) {
	payload, err := json.Marshal(scrapeRequest{URL: url, Formats: []string{"rawHtml"}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Kind: ErrUnreachable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{URL: url, Status: resp.StatusCode, Kind: ErrRateLimited}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{URL: url, Status: resp.StatusCode, Kind: ErrAccessDenied}
	case resp.StatusCode >= 400:
		return nil, &Error{URL: url, Status: resp.StatusCode, Kind: ErrServerError, Err: fmt.Errorf("%s", string(body))}
	}

	var sr scrapeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scrape response: %w", err)
	}
	if !sr.Success {
		return nil, &Error{URL: url, Kind: ErrServerError, Err: fmt.Errorf("%s", sr.Error)}
	}

	html := sr.Data.RawHTML
	if html == "" {
		html = sr.Data.HTML
	}
	if sr.Data.Metadata.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	finalURL := sr.Data.Metadata.SourceURL
	if finalURL == "" {
		finalURL = url
	}
	return &Page{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		Source:     m.Name(),
		FetchedAt:  time.Now(),
	}, nil
}
