// Package llms provides LLM provider implementations and their registry.
//
// Providers normalize every response to plain assistant text plus a token
// count; callers that need structure (plans, workflows) parse the text
// themselves. Responses that carry no usable text fail with InvalidFormat
// rather than being silently stringified.
package llms

import (
	"context"

	"github.com/danaruntime/dana/config"
)

// ============================================================================
// MESSAGE AND COMPLETION TYPES
// ============================================================================

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of LLM input.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is a normalized LLM response.
type Completion struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
}

// ============================================================================
// PROVIDER INTERFACE
// ============================================================================

// Provider is a language model backend.
type Provider interface {
	// Generate produces a completion for the given messages.
	Generate(ctx context.Context, messages []Message) (*Completion, error)

	// GenerateStreaming produces a completion, sending text chunks to
	// tokenCh as they arrive. The channel is not closed by the provider.
	GenerateStreaming(ctx context.Context, messages []Message, tokenCh chan<- string) (*Completion, error)

	// GetModelName returns the model name.
	GetModelName() string

	// Close releases provider resources.
	Close() error
}

// ============================================================================
// CONSTRUCTION
// ============================================================================

// New creates a provider from configuration.
func New(cfg *config.LLMProviderConfig) (Provider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		// Validate covers this; kept for exhaustiveness.
		return NewMockProvider(), nil
	}
}
