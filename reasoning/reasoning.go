package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/danaruntime/dana/plan"
)

// ============================================================================
// STRATEGY INTERFACE & PROBLEM CONTEXT
// ============================================================================

// LLMService is what strategies need from the owning agent: a single-shot
// text generation call.
type LLMService interface {
	QueryLLM(ctx context.Context, prompt string) (string, error)
}

// Strategy produces a typed plan for a problem. Confidence lets the
// selector pick the most suitable strategy for a given problem.
type Strategy interface {
	Name() string
	Description() string

	// Confidence scores suitability for the problem in [0,1].
	Confidence(problem string, pctx *ProblemContext) float64

	// CreatePlan produces a plan. Transport failures surface as errors;
	// unusable LLM output degrades to a Manual plan instead.
	CreatePlan(ctx context.Context, problem string, pctx *ProblemContext) (*plan.Plan, error)
}

// ProblemContext is one frame of the recursive solve stack.
type ProblemContext struct {
	ProblemStatement string
	Objective        string
	OriginalProblem  string
	Depth            int
	Constraints      map[string]any
	Assumptions      []string

	parent *ProblemContext
}

// NewProblemContext creates a root frame for a problem.
func NewProblemContext(problem, objective string) *ProblemContext {
	return &ProblemContext{
		ProblemStatement: problem,
		Objective:        objective,
		OriginalProblem:  problem,
		Constraints:      make(map[string]any),
	}
}

// Child derives a sub-frame: the original problem is inherited, constraints
// and assumptions are copied so children can extend without mutating the
// parent, and depth increments.
func (p *ProblemContext) Child(problem, objective string) *ProblemContext {
	constraints := make(map[string]any, len(p.Constraints))
	for k, v := range p.Constraints {
		constraints[k] = v
	}
	assumptions := make([]string, len(p.Assumptions))
	copy(assumptions, p.Assumptions)

	return &ProblemContext{
		ProblemStatement: problem,
		Objective:        objective,
		OriginalProblem:  p.OriginalProblem,
		Depth:            p.Depth + 1,
		Constraints:      constraints,
		Assumptions:      assumptions,
		parent:           p,
	}
}

// Parent returns the frame this context was derived from, or nil at the root.
func (p *ProblemContext) Parent() *ProblemContext { return p.parent }

// IsIdentityLoop reports whether the problem repeats its parent's problem,
// compared case-insensitively with whitespace normalized.
func (p *ProblemContext) IsIdentityLoop() bool {
	if p.parent == nil {
		return false
	}
	return normalizeProblem(p.ProblemStatement) == normalizeProblem(p.parent.ProblemStatement)
}

func normalizeProblem(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// BaseCaseResult is the canonical answer produced when recursion bottoms out.
func BaseCaseResult(problem string, maxDepth int) string {
	return fmt.Sprintf("Base case reached for: %s. Maximum recursion depth (%d) exceeded.", problem, maxDepth)
}

// ============================================================================
// STRATEGY SELECTOR
// ============================================================================

// Selector picks the strategy with the highest confidence for a problem.
// Ties resolve to the earlier registration. When every strategy scores 0
// the recursive strategy, if registered, is the default.
type Selector struct {
	strategies []Strategy
}

// NewSelector creates an empty selector.
func NewSelector() *Selector {
	return &Selector{}
}

// Register appends a strategy. Registration order is the tie-break order.
func (s *Selector) Register(strategy Strategy) error {
	if strategy == nil {
		return fmt.Errorf("strategy cannot be nil")
	}
	s.strategies = append(s.strategies, strategy)
	return nil
}

// Strategies returns the registered strategies in registration order.
func (s *Selector) Strategies() []Strategy {
	out := make([]Strategy, len(s.strategies))
	copy(out, s.strategies)
	return out
}

// Select returns the best strategy for the problem, or nil when none are
// registered.
func (s *Selector) Select(problem string, pctx *ProblemContext) Strategy {
	if len(s.strategies) == 0 {
		return nil
	}

	var best Strategy
	bestScore := 0.0
	for _, strategy := range s.strategies {
		score := strategy.Confidence(problem, pctx)
		if score > bestScore {
			best = strategy
			bestScore = score
		}
	}
	if best != nil {
		return best
	}

	for _, strategy := range s.strategies {
		if strategy.Name() == StrategyRecursive {
			return strategy
		}
	}
	return s.strategies[0]
}

// Registered strategy names.
const (
	StrategyPlanner   = "planner"
	StrategyRecursive = "recursive"
	StrategyIterative = "iterative"
)
