package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/danaruntime/dana/llms"
	"github.com/danaruntime/dana/registry"
)

// ============================================================================
// RESOURCE SYSTEM INTERFACES
// ============================================================================

// Kind is the capability tag of a resource handle.
type Kind string

const (
	KindLLM    Kind = "llm"
	KindCoding Kind = "coding"
	KindInput  Kind = "input"
	KindCustom Kind = "custom"
)

// Request is the uniform query payload. LLM resources accept either
// Prompt (with optional System) or Messages; coding resources take Source;
// input resources take Prompt as the text shown to the user.
type Request struct {
	Prompt         string         `json:"prompt,omitempty"`
	System         string         `json:"system,omitempty"`
	Messages       []llms.Message `json:"messages,omitempty"`
	Source         string         `json:"source,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`
	Params         map[string]any `json:"params,omitempty"`

	// OnToken, when set on an LLM request, switches the provider call to
	// streaming and receives each token as it arrives.
	OnToken func(token string) `json:"-"`
}

// Response is the uniform query result.
type Response struct {
	Success    bool   `json:"success"`
	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// ToolInfo describes a capability a resource exposes to tool-calling LLMs.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

// ToolParameter describes one parameter of a tool descriptor.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Resource is a named external capability with an explicit lifecycle.
// Initialize is idempotent; Stop then Cleanup are always called on teardown.
type Resource interface {
	Name() string
	Kind() Kind
	Initialize(ctx context.Context) error
	Query(ctx context.Context, req Request) (*Response, error)
	ListTools() []ToolInfo
	Stop() error
	Cleanup() error
}

// ============================================================================
// RESOURCE REGISTRY
// ============================================================================

// Registry maps resource names to handles.
type Registry struct {
	*registry.BaseRegistry[Resource]
}

// NewRegistry creates an empty resource registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Resource]()}
}

// AddResource registers a resource under its own name.
func (r *Registry) AddResource(res Resource) error {
	if res == nil {
		return fmt.Errorf("resource cannot be nil")
	}
	return r.Register(res.Name(), res)
}

// GetResource retrieves a resource by name.
func (r *Registry) GetResource(name string) (Resource, error) {
	res, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("resource '%s' not found", name)
	}
	return res, nil
}

// GetByKind returns the first registered resource of the given kind,
// scanning names in sorted order so the result is deterministic.
func (r *Registry) GetByKind(kind Kind) (Resource, bool) {
	for _, name := range r.Names() {
		res, exists := r.Get(name)
		if exists && res.Kind() == kind {
			return res, true
		}
	}
	return nil, false
}

// InitializeAll initializes every registered resource.
func (r *Registry) InitializeAll(ctx context.Context) error {
	for _, name := range r.Names() {
		res, exists := r.Get(name)
		if !exists {
			continue
		}
		if err := res.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize resource '%s': %w", name, err)
		}
	}
	return nil
}

// StopAll stops every registered resource, then cleans each up.
// All resources are attempted; the first error is returned.
func (r *Registry) StopAll() error {
	var errs []string
	for _, name := range r.Names() {
		res, exists := r.Get(name)
		if !exists {
			continue
		}
		if err := res.Stop(); err != nil {
			errs = append(errs, fmt.Sprintf("stop %s: %v", name, err))
		}
		if err := res.Cleanup(); err != nil {
			errs = append(errs, fmt.Sprintf("cleanup %s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("resource teardown failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
