package plan

import (
	"github.com/danaruntime/dana/workflow"
)

// ============================================================================
// PLAN - TAGGED UNION OF EXECUTION INSTRUCTIONS
// ============================================================================

// Kind discriminates how a plan is executed.
type Kind string

const (
	KindDirect   Kind = "DIRECT"
	KindCode     Kind = "CODE"
	KindWorkflow Kind = "WORKFLOW"
	KindDelegate Kind = "DELEGATE"
	KindEscalate Kind = "ESCALATE"
	KindInput    Kind = "INPUT"
	KindManual   Kind = "MANUAL"
)

// Complexity grades how involved the planner judged the problem to be.
type Complexity string

const (
	ComplexitySimple   Complexity = "SIMPLE"
	ComplexityModerate Complexity = "MODERATE"
	ComplexityComplex  Complexity = "COMPLEX"
	ComplexityCritical Complexity = "CRITICAL"
)

// Details is the structured `details` mapping of a plan response.
type Details struct {
	Complexity        Complexity `mapstructure:"complexity"`
	EstimatedDuration string     `mapstructure:"estimated_duration"`
	RequiredResources []string   `mapstructure:"required_resources"`
	Risks             string     `mapstructure:"risks"`
}

// Metadata annotates a plan with how and why it was produced.
type Metadata struct {
	Strategy          string
	Confidence        float64
	Reasoning         string
	Complexity        Complexity
	EstimatedDuration string
}

// Plan is the tagged union dispatched by the executor. Exactly the fields
// relevant to Kind are populated.
type Plan struct {
	Kind Kind

	// Content carries the direct answer, sandbox source, or manual text.
	Content string

	// Instance is the materialized workflow; WorkflowYAML keeps the raw
	// definition for instances built later.
	Instance     *workflow.Instance
	WorkflowYAML string

	// TargetAgent names the delegation target.
	TargetAgent string

	// Reason explains an escalation.
	Reason string

	// Prompt is the question put to the user for input plans.
	Prompt string

	Metadata Metadata
}

// NewDirect creates a plan that answers immediately.
func NewDirect(content string) *Plan {
	return &Plan{Kind: KindDirect, Content: content}
}

// NewCode creates a plan executed by the coding sandbox.
func NewCode(source string) *Plan {
	return &Plan{Kind: KindCode, Content: source}
}

// NewWorkflow creates a plan around a materialized workflow instance.
func NewWorkflow(instance *workflow.Instance, yamlText string) *Plan {
	return &Plan{Kind: KindWorkflow, Instance: instance, WorkflowYAML: yamlText}
}

// NewDelegate creates a plan handing the problem to another agent.
func NewDelegate(targetAgent, content string) *Plan {
	if targetAgent == "" {
		targetAgent = "specialist"
	}
	return &Plan{Kind: KindDelegate, TargetAgent: targetAgent, Content: content}
}

// NewEscalate creates a plan surfacing the problem to a human.
func NewEscalate(reason string) *Plan {
	if reason == "" {
		reason = "ESCALATE"
	}
	return &Plan{Kind: KindEscalate, Reason: reason}
}

// NewInput creates a plan that asks the user for a value.
func NewInput(prompt string) *Plan {
	return &Plan{Kind: KindInput, Prompt: prompt}
}

// NewManual creates the fallback plan when no automated path applies.
func NewManual(content string) *Plan {
	return &Plan{Kind: KindManual, Content: content}
}
