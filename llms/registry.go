package llms

import (
	"fmt"

	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/registry"
)

// ============================================================================
// LLM REGISTRY
// ============================================================================

// Registry manages named Provider instances.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// RegisterProvider registers a provider instance under name.
func (r *Registry) RegisterProvider(name string, provider Provider) error {
	if provider == nil {
		return fmt.Errorf("llm provider cannot be nil")
	}
	return r.Register(name, provider)
}

// CreateFromConfig creates and registers a provider from configuration.
func (r *Registry) CreateFromConfig(name string, cfg *config.LLMProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("llm name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}

	provider, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}
	if err := r.RegisterProvider(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register llm: %w", err)
	}
	return provider, nil
}

// GetProvider retrieves a provider by name.
func (r *Registry) GetProvider(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("llm provider '%s' not found", name)
	}
	return provider, nil
}

// CloseAll closes every registered provider.
func (r *Registry) CloseAll() error {
	var firstErr error
	for _, provider := range r.List() {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
