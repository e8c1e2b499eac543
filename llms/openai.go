package llms

import (
	"bufio"
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
// OPENAI-COMPATIBLE PROVIDER
// ============================================================================

// OpenAIProvider implements Provider for the OpenAI chat-completions API
// and compatible servers.
type OpenAIProvider struct {
	config *config.LLMProviderConfig
	client *http.Client
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Error   *openAIError         `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type openAIStreamChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIDelta struct {
	Content string `json:"content"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider creates a provider from validated config.
func NewOpenAIProvider(cfg *config.LLMProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		config: cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message) (*Completion, error) {
	request := openAIRequest{
		Model:       p.config.Model,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, fmt.Errorf("openai api error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return nil, agenterr.New(agenterr.KindInvalidFormat, "OpenAIProvider", "Generate",
			"no response choices returned")
	}

	return &Completion{
		Content:    response.Choices[0].Message.Content,
		TokensUsed: response.Usage.TotalTokens,
	}, nil
}

// GenerateStreaming implements Provider.
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []Message, tokenCh chan<- string) (*Completion, error) {
	request := openAIRequest{
		Model:       p.config.Model,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Stream:      true,
	}

	resp, err := p.post(ctx, request)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var full strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk openAIStreamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, agenterr.Wrap(agenterr.KindInvalidFormat, "OpenAIProvider", "GenerateStreaming",
				"failed to decode streaming chunk", err)
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("openai api error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				full.WriteString(choice.Delta.Content)
				select {
				case tokenCh <- choice.Delta.Content:
				case <-ctx.Done():
					return nil, ctxError(ctx, "OpenAIProvider", "GenerateStreaming")
				}
			}
			if choice.FinishReason != "" {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read streaming response: %w", err)
	}

	content := full.String()
	return &Completion{Content: content, TokensUsed: EstimateTokens(content)}, nil
}

// GetModelName implements Provider.
func (p *OpenAIProvider) GetModelName() string {
	return p.config.Model
}

// Close implements Provider.
func (p *OpenAIProvider) Close() error {
	return nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	resp, err := p.post(ctx, request)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var response openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, agenterr.Wrap(agenterr.KindInvalidFormat, "OpenAIProvider", "Generate",
			"failed to decode response", err)
	}
	return &response, nil
}

func (p *OpenAIProvider) post(ctx context.Context, request openAIRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.config.Host, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxError(ctx, "OpenAIProvider", "post")
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("api request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// ctxError maps a context failure to the runtime error taxonomy.
func ctxError(ctx context.Context, component, action string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return agenterr.Wrap(agenterr.KindTimeout, component, action, "llm call exceeded deadline", ctx.Err())
	}
	return agenterr.Wrap(agenterr.KindCancellationRequested, component, action, "llm call cancelled", ctx.Err())
}

// EstimateTokens provides a rough token estimation.
func EstimateTokens(text string) int {
	// Rough estimation: 4 characters per token.
	return len(text) / 4
}
