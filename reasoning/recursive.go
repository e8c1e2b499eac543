package reasoning

import (
	"context"
	"log/slog"
	"strings"

	"github.com/danaruntime/dana/logger"
	"github.com/danaruntime/dana/plan"
	"github.com/danaruntime/dana/workflow"
)

// ============================================================================
// RECURSIVE STRATEGY
// ============================================================================

// DefaultMaxRecursionDepth caps the solve recursion.
const DefaultMaxRecursionDepth = 10

// decompositionMarkers hint that a problem splits into sub-problems.
var decompositionMarkers = []string{
	" and ", " then ", "steps", "first", "after", "finally", "each", "multiple",
}

// Recursive decomposes a problem into a workflow whose state actions call
// solve again at depth+1. Depth and identity-loop checks substitute a
// base-case plan instead of recursing forever.
type Recursive struct {
	llm      LLMService
	factory  *workflow.Factory
	maxDepth int
	log      *slog.Logger
}

// NewRecursive creates a recursive strategy. A zero maxDepth selects
// DefaultMaxRecursionDepth.
func NewRecursive(llm LLMService, factory *workflow.Factory, maxDepth int) *Recursive {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRecursionDepth
	}
	if factory == nil {
		factory = workflow.NewFactory()
	}
	return &Recursive{
		llm:      llm,
		factory:  factory,
		maxDepth: maxDepth,
		log:      logger.ForComponent("recursive"),
	}
}

// Name implements Strategy.
func (r *Recursive) Name() string { return StrategyRecursive }

// Description implements Strategy.
func (r *Recursive) Description() string {
	return "Decomposes the problem into a workflow of recursive sub-solves"
}

// MaxDepth returns the configured recursion cap.
func (r *Recursive) MaxDepth() int { return r.maxDepth }

// Confidence implements Strategy. Scores well for decomposable problems.
func (r *Recursive) Confidence(problem string, pctx *ProblemContext) float64 {
	lower := strings.ToLower(problem)
	for _, marker := range decompositionMarkers {
		if strings.Contains(lower, marker) {
			return 0.6
		}
	}
	return 0
}

// CreatePlan implements Strategy.
func (r *Recursive) CreatePlan(ctx context.Context, problem string, pctx *ProblemContext) (*plan.Plan, error) {
	if base := r.baseCase(problem, pctx); base != nil {
		return base, nil
	}

	response, err := r.llm.QueryLLM(ctx, r.buildDecompositionPrompt(problem, pctx))
	if err != nil {
		return nil, err
	}

	result := plan.Parse(response)
	if result.Kind == plan.KindWorkflow && result.Solution != "" {
		instance, err := r.factory.FromYAML(result.Solution)
		if err == nil {
			built := plan.NewWorkflow(instance, result.Solution)
			annotate(built, StrategyRecursive, result)
			return built, nil
		}
		r.log.Warn("decomposition workflow did not materialize", "error", err)
	}
	if result.Kind == plan.KindDirect && result.Solution != "" {
		built := plan.NewDirect(result.Solution)
		annotate(built, StrategyRecursive, result)
		return built, nil
	}

	fallback := plan.NewManual(problem)
	fallback.Metadata.Strategy = StrategyRecursive
	return fallback, nil
}

// baseCase returns the plan substituted when recursion must stop: the depth
// cap is hit or the sub-problem repeats its parent verbatim.
func (r *Recursive) baseCase(problem string, pctx *ProblemContext) *plan.Plan {
	if pctx == nil {
		return nil
	}
	if pctx.Depth >= r.maxDepth || pctx.IsIdentityLoop() {
		base := plan.NewDirect(BaseCaseResult(problem, r.maxDepth))
		base.Metadata.Strategy = StrategyRecursive
		base.Metadata.Reasoning = "recursion base case"
		return base
	}
	return nil
}

func (r *Recursive) buildDecompositionPrompt(problem string, pctx *ProblemContext) string {
	var b strings.Builder
	b.WriteString("Decompose the following problem into 2-5 ordered steps.\n\n")
	b.WriteString("Problem: " + problem + "\n")
	if pctx != nil && pctx.Depth > 0 {
		b.WriteString("Parent problem: " + pctx.OriginalProblem + "\n")
	}
	b.WriteString(`
Respond with YAML only:

plan: WORKFLOW
confidence: <float 0..1>
reasoning: <one sentence>
solution: |
  workflow:
    name: <short name>
    steps:
      - id: step_1
        action: <sub-problem statement>
        objective: <what this step achieves>

Each step action is solved independently; phrase it as a standalone
problem. If the problem cannot be decomposed, answer with plan: DIRECT and
the solution text instead.
`)
	return b.String()
}
