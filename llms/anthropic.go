package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/config"
)

// ============================================================================
// ANTHROPIC PROVIDER
// ============================================================================

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements Provider for the Anthropic Messages API.
type AnthropicProvider struct {
	config *config.LLMProviderConfig
	client *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropicProvider creates a provider from validated config.
func NewAnthropicProvider(cfg *config.LLMProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{
		config: cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// Generate implements Provider.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message) (*Completion, error) {
	request := p.buildRequest(messages)

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.config.Host, "/")+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxError(ctx, "AnthropicProvider", "Generate")
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, agenterr.Wrap(agenterr.KindInvalidFormat, "AnthropicProvider", "Generate",
			"failed to decode response", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("anthropic api error: %s", response.Error.Message)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, agenterr.New(agenterr.KindInvalidFormat, "AnthropicProvider", "Generate",
			"response carried no text content")
	}

	return &Completion{
		Content:    text.String(),
		TokensUsed: response.Usage.InputTokens + response.Usage.OutputTokens,
	}, nil
}

// GenerateStreaming implements Provider. Anthropic streaming is delivered
// as a single chunk; the full SSE protocol is not wired here.
func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, messages []Message, tokenCh chan<- string) (*Completion, error) {
	completion, err := p.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	select {
	case tokenCh <- completion.Content:
	case <-ctx.Done():
		return nil, ctxError(ctx, "AnthropicProvider", "GenerateStreaming")
	}
	return completion, nil
}

// GetModelName implements Provider.
func (p *AnthropicProvider) GetModelName() string {
	return p.config.Model
}

// Close implements Provider.
func (p *AnthropicProvider) Close() error {
	return nil
}

// buildRequest lifts system messages into the top-level system field, as
// the Messages API requires.
func (p *AnthropicProvider) buildRequest(messages []Message) anthropicRequest {
	request := anthropicRequest{
		Model:     p.config.Model,
		MaxTokens: p.config.MaxTokens,
	}

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if request.System != "" {
				request.System += "\n"
			}
			request.System += msg.Content
			continue
		}
		request.Messages = append(request.Messages, anthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return request
}
