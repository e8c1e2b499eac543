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
// OLLAMA PROVIDER
// ============================================================================

// OllamaProvider implements Provider for a local Ollama server.
type OllamaProvider struct {
	config *config.LLMProviderConfig
	client *http.Client
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error,omitempty"`
}

// NewOllamaProvider creates a provider from validated config.
func NewOllamaProvider(cfg *config.LLMProviderConfig) *OllamaProvider {
	return &OllamaProvider{
		config: cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// Generate implements Provider.
func (p *OllamaProvider) Generate(ctx context.Context, messages []Message) (*Completion, error) {
	resp, err := p.post(ctx, ollamaRequest{
		Model:    p.config.Model,
		Messages: messages,
		Options:  map[string]any{"temperature": p.config.Temperature},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var response ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, agenterr.Wrap(agenterr.KindInvalidFormat, "OllamaProvider", "Generate",
			"failed to decode response", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", response.Error)
	}

	return &Completion{
		Content:    response.Message.Content,
		TokensUsed: response.PromptEvalCount + response.EvalCount,
	}, nil
}

// GenerateStreaming implements Provider.
func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []Message, tokenCh chan<- string) (*Completion, error) {
	resp, err := p.post(ctx, ollamaRequest{
		Model:    p.config.Model,
		Messages: messages,
		Stream:   true,
		Options:  map[string]any{"temperature": p.config.Temperature},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var full strings.Builder
	var tokens int

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var chunk ollamaResponse
		if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
			return nil, agenterr.Wrap(agenterr.KindInvalidFormat, "OllamaProvider", "GenerateStreaming",
				"failed to decode streaming chunk", err)
		}
		if chunk.Error != "" {
			return nil, fmt.Errorf("ollama error: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			select {
			case tokenCh <- chunk.Message.Content:
			case <-ctx.Done():
				return nil, ctxError(ctx, "OllamaProvider", "GenerateStreaming")
			}
		}
		if chunk.Done {
			tokens = chunk.PromptEvalCount + chunk.EvalCount
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read streaming response: %w", err)
	}

	if tokens == 0 {
		tokens = EstimateTokens(full.String())
	}
	return &Completion{Content: full.String(), TokensUsed: tokens}, nil
}

// GetModelName implements Provider.
func (p *OllamaProvider) GetModelName() string {
	return p.config.Model
}

// Close implements Provider.
func (p *OllamaProvider) Close() error {
	return nil
}

func (p *OllamaProvider) post(ctx context.Context, request ollamaRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.config.Host, "/")+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxError(ctx, "OllamaProvider", "post")
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
