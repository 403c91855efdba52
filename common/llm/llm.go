package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds LLM client configuration.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string // Required: API key for the provider
	BaseURL  string // Optional: custom API endpoint
	Model    string // Model name (e.g., "gpt-4o-mini", "claude-sonnet-4-5-20250514")
}

// Client performs single-turn chat calls whose response is constrained to a
// JSON schema and unmarshalled into the caller's result value.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

// Request describes one structured chat call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

// Response carries token accounting for the call.
type Response struct {
	PromptTokens     int
	CompletionTokens int
}

// New creates a Client for the configured provider. Defaults to OpenAI if no
// provider is specified.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// GenerateSchema generates a JSON schema for T, with additional properties
// disallowed and definitions inlined (required for strict structured output).
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			slog.WarnContext(ctx, "llm rate limited, will retry",
				"status_code", apiErr.StatusCode)
			return true
		case apiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry",
				"status_code", apiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code)
			return false
		}
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}
