package agent

import (
	"fmt"

	"github.com/danaruntime/dana/registry"
)

// ============================================================================
// AGENT REGISTRY
// ============================================================================

// Registry holds named agents so Delegate plans can resolve their target.
type Registry struct {
	*registry.BaseRegistry[*Agent]
}

// NewAgentRegistry creates an empty agent registry.
func NewAgentRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[*Agent]()}
}

// RegisterAgent registers an agent under its own name.
func (r *Registry) RegisterAgent(a *Agent) error {
	if a == nil {
		return fmt.Errorf("agent cannot be nil")
	}
	return r.Register(a.Name(), a)
}

// GetAgent retrieves an agent by name.
func (r *Registry) GetAgent(name string) (*Agent, error) {
	a, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("agent '%s' not found", name)
	}
	return a, nil
}
