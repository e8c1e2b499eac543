package llms

import (
	"context"
	"fmt"
	"sync"
)

// ============================================================================
// MOCK PROVIDER
// ============================================================================

// MockProvider is a deterministic in-process provider used when
// DANA_MOCK_LLM is set and throughout the test suite.
//
// Scripted responses queued with Enqueue are returned first, in order.
// Once the queue drains, the provider answers every request with a direct
// plan echoing the last user message, so solve pipelines remain total.
type MockProvider struct {
	mu       sync.Mutex
	queued   []string
	requests [][]Message
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Enqueue schedules the next scripted response.
func (p *MockProvider) Enqueue(response string) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queued = append(p.queued, response)
	return p
}

// Requests returns every message list the provider has seen.
func (p *MockProvider) Requests() [][]Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]Message, len(p.requests))
	copy(out, p.requests)
	return out
}

// Generate implements Provider.
func (p *MockProvider) Generate(ctx context.Context, messages []Message) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError(ctx, "MockProvider", "Generate")
	}

	p.mu.Lock()
	record := make([]Message, len(messages))
	copy(record, messages)
	p.requests = append(p.requests, record)

	var content string
	if len(p.queued) > 0 {
		content = p.queued[0]
		p.queued = p.queued[1:]
	} else {
		content = defaultResponse(messages)
	}
	p.mu.Unlock()

	return &Completion{Content: content, TokensUsed: EstimateTokens(content)}, nil
}

// GenerateStreaming implements Provider.
func (p *MockProvider) GenerateStreaming(ctx context.Context, messages []Message, tokenCh chan<- string) (*Completion, error) {
	completion, err := p.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	select {
	case tokenCh <- completion.Content:
	case <-ctx.Done():
		return nil, ctxError(ctx, "MockProvider", "GenerateStreaming")
	}
	return completion, nil
}

// GetModelName implements Provider.
func (p *MockProvider) GetModelName() string {
	return "mock"
}

// Close implements Provider.
func (p *MockProvider) Close() error {
	return nil
}

func defaultResponse(messages []Message) string {
	last := ""
	for _, msg := range messages {
		if msg.Role == RoleUser {
			last = msg.Content
		}
	}
	return fmt.Sprintf("plan: DIRECT\nconfidence: 0.9\nreasoning: mock\nsolution: \"Mock response for: %s\"\n", last)
}

var _ Provider = (*MockProvider)(nil)
