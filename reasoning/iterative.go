package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danaruntime/dana/logger"
	"github.com/danaruntime/dana/plan"
)

// ============================================================================
// ITERATIVE STRATEGY
// ============================================================================

// DefaultMaxIterations bounds the refinement loop.
const DefaultMaxIterations = 10

// refinementMarkers hint that a problem benefits from stepwise refinement.
var refinementMarkers = []string{"refine", "improve", "iterate", "polish", "optimize", "draft"}

// Iterative refines an answer over bounded rounds, asking the LLM to
// improve the previous draft each time. An answer identical to the previous
// round truncates the loop.
type Iterative struct {
	llm           LLMService
	maxIterations int
	log           *slog.Logger
}

// NewIterative creates an iterative strategy. A zero maxIterations selects
// DefaultMaxIterations.
func NewIterative(llm LLMService, maxIterations int) *Iterative {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Iterative{
		llm:           llm,
		maxIterations: maxIterations,
		log:           logger.ForComponent("iterative"),
	}
}

// Name implements Strategy.
func (i *Iterative) Name() string { return StrategyIterative }

// Description implements Strategy.
func (i *Iterative) Description() string {
	return "Refines an answer across bounded iterations"
}

// Confidence implements Strategy.
func (i *Iterative) Confidence(problem string, pctx *ProblemContext) float64 {
	lower := strings.ToLower(problem)
	for _, marker := range refinementMarkers {
		if strings.Contains(lower, marker) {
			return 0.5
		}
	}
	return 0
}

// CreatePlan implements Strategy. The refinement happens eagerly; the
// resulting plan is Direct with the final answer.
func (i *Iterative) CreatePlan(ctx context.Context, problem string, pctx *ProblemContext) (*plan.Plan, error) {
	previous := ""
	for round := 1; round <= i.maxIterations; round++ {
		prompt := i.buildRefinementPrompt(problem, previous, round)
		answer, err := i.llm.QueryLLM(ctx, prompt)
		if err != nil {
			return nil, err
		}
		answer = strings.TrimSpace(answer)

		if answer == previous {
			i.log.Debug("iteration repeated previous answer, truncating", "round", round)
			break
		}
		previous = answer
	}

	if previous == "" {
		fallback := plan.NewManual(problem)
		fallback.Metadata.Strategy = StrategyIterative
		return fallback, nil
	}
	built := plan.NewDirect(previous)
	built.Metadata.Strategy = StrategyIterative
	return built, nil
}

func (i *Iterative) buildRefinementPrompt(problem, previous string, round int) string {
	if previous == "" {
		return fmt.Sprintf("Provide your best answer to the following problem.\n\nProblem: %s\n\nAnswer with the solution text only.", problem)
	}
	return fmt.Sprintf("Improve the answer below. If it cannot be improved, repeat it verbatim.\n\nProblem: %s\n\nRound %d answer:\n%s\n\nAnswer with the improved solution text only.", problem, round-1, previous)
}
