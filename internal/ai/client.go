// Package ai wraps hosted text-generation APIs behind a provider-agnostic
// client and exposes the bid-review orchestration built on top of it.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Typed failures let callers distinguish configuration problems from
// transient ones. None of them trigger automatic retries here.
var (
	ErrAuth      = errors.New("ai: authentication failed")
	ErrRateLimit = errors.New("ai: rate limited")
	ErrTimeout   = errors.New("ai: request timed out")
	ErrMalformed = errors.New("ai: malformed response")
)

// Request is a single text-generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client is the provider abstraction. Implementations exist for
// OpenAI-compatible endpoints and the Anthropic messages API.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const defaultRequestTimeout = 10 * time.Minute

// ProviderConfig selects and configures a concrete client.
type ProviderConfig struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	BaseURL  string // optional override (OpenRouter, regional mirrors)
	Model    string
}

// NewClient builds a client for the configured provider.
func NewClient(cfg ProviderConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai: API key not configured")
	}
	httpClient := &http.Client{Timeout: defaultRequestTimeout}

	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg, httpClient), nil
	case "anthropic", "":
		return newAnthropicClient(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Provider)
	}
}

// statusError maps API status codes onto the typed failure set.
func statusError(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w (status %d): %s", ErrAuth, status, body)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w (status %d): %s", ErrRateLimit, status, body)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w (status %d): %s", ErrTimeout, status, body)
	default:
		return fmt.Errorf("ai: provider error (status %d): %s", status, body)
	}
}
