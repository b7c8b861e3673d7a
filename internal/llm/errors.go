package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProviderNotFound = errors.New("llm provider not found")
	ErrEmptyResponse    = errors.New("llm returned no content")
)

// APIError is a non-2xx answer from a provider API
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, body)
}

// Retryable reports whether the call may succeed if repeated later
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
