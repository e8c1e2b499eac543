package resources

import (
	"context"
	"sync"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/llms"
)

// ============================================================================
// LLM RESOURCE
// ============================================================================

// LLMResource wraps an llms.Provider behind the uniform resource contract.
type LLMResource struct {
	name      string
	cfg       *config.LLMProviderConfig
	providers *llms.Registry
	mu        sync.Mutex
	provider  llms.Provider
}

// NewLLMResource creates an uninitialized LLM resource.
func NewLLMResource(name string, cfg *config.LLMProviderConfig) *LLMResource {
	return &LLMResource{name: name, cfg: cfg}
}

// NewLLMResourceWithRegistry creates a resource whose provider is built
// through, and registered in, the given provider registry. The resource
// name is the registry key, so callers sharing a registry must pick
// distinct names.
func NewLLMResourceWithRegistry(name string, cfg *config.LLMProviderConfig, providers *llms.Registry) *LLMResource {
	return &LLMResource{name: name, cfg: cfg, providers: providers}
}

// NewLLMResourceWithProvider wraps an already constructed provider.
// Used by tests that inject a scripted mock.
func NewLLMResourceWithProvider(name string, provider llms.Provider) *LLMResource {
	return &LLMResource{name: name, provider: provider}
}

// Name implements Resource.
func (r *LLMResource) Name() string { return r.name }

// Kind implements Resource.
func (r *LLMResource) Kind() Kind { return KindLLM }

// Initialize constructs the underlying provider. Idempotent.
// When DANA_MOCK_LLM is set, a deterministic mock provider is installed
// regardless of configuration.
func (r *LLMResource) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.provider != nil {
		return nil
	}
	if config.MockLLMEnabled() {
		r.provider = llms.NewMockProvider()
		return nil
	}
	if r.cfg == nil {
		return agenterr.New(agenterr.KindInvalidArgument, "LLMResource", "Initialize",
			"llm resource has no provider configuration")
	}

	var provider llms.Provider
	var err error
	if r.providers != nil {
		if existing, lookupErr := r.providers.GetProvider(r.name); lookupErr == nil {
			r.provider = existing
			return nil
		}
		provider, err = r.providers.CreateFromConfig(r.name, r.cfg)
	} else {
		provider, err = llms.New(r.cfg)
	}
	if err != nil {
		return agenterr.Wrap(agenterr.KindResourceUnavailable, "LLMResource", "Initialize",
			"failed to create llm provider", err)
	}
	r.provider = provider
	return nil
}

// Query sends either a prompt/system pair or an explicit message list to
// the provider and returns the assistant text.
func (r *LLMResource) Query(ctx context.Context, req Request) (*Response, error) {
	r.mu.Lock()
	provider := r.provider
	r.mu.Unlock()

	if provider == nil {
		return nil, agenterr.New(agenterr.KindResourceUnavailable, "LLMResource", "Query",
			"llm resource is not initialized")
	}

	messages := req.Messages
	if len(messages) == 0 {
		if req.Prompt == "" {
			return nil, agenterr.New(agenterr.KindInvalidArgument, "LLMResource", "Query",
				"request requires either prompt or messages")
		}
		if req.System != "" {
			messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: req.System})
		}
		messages = append(messages, llms.Message{Role: llms.RoleUser, Content: req.Prompt})
	}

	var completion *llms.Completion
	var err error
	if req.OnToken != nil {
		completion, err = streamCompletion(ctx, provider, messages, req.OnToken)
	} else {
		completion, err = provider.Generate(ctx, messages)
	}
	if err != nil {
		return &Response{Success: false, Error: err.Error()}, err
	}
	return &Response{Success: true, Content: completion.Content, TokensUsed: completion.TokensUsed}, nil
}

// streamCompletion bridges the provider's token channel onto the caller's
// callback. Providers only send on the channel; the resource owns its
// lifecycle and closes it once the call returns.
func streamCompletion(ctx context.Context, provider llms.Provider, messages []llms.Message, onToken func(string)) (*llms.Completion, error) {
	tokens := make(chan string, 64)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for token := range tokens {
			onToken(token)
		}
	}()

	completion, err := provider.GenerateStreaming(ctx, messages, tokens)
	close(tokens)
	<-drained
	return completion, err
}

// ListTools implements Resource. LLM resources expose a single generation tool.
func (r *LLMResource) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "generate_text",
			Description: "Generate a completion for a conversation",
			Parameters: []ToolParameter{
				{Name: "prompt", Type: "string", Description: "User prompt", Required: true},
				{Name: "system", Type: "string", Description: "System instruction", Required: false},
			},
		},
	}
}

// Stop closes the provider connection.
func (r *LLMResource) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.provider == nil {
		return nil
	}
	return r.provider.Close()
}

// Cleanup releases the provider handle. Safe to call repeatedly.
func (r *LLMResource) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.provider = nil
	return nil
}

// Provider exposes the underlying provider for streaming callers.
// Returns nil before Initialize.
func (r *LLMResource) Provider() llms.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.provider
}

var _ Resource = (*LLMResource)(nil)
