package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danaruntime/dana/logger"
	"github.com/danaruntime/dana/plan"
	"github.com/danaruntime/dana/workflow"
)

// ============================================================================
// PLANNER STRATEGY
// ============================================================================

// DefaultPlanAttempts bounds retries on parse-class plan failures.
const DefaultPlanAttempts = 3

const plannerConfidence = 0.8

// Planner asks the LLM to analyze the problem and produce a typed plan.
// Parse-class failures (a Workflow plan whose definition will not
// materialize) are retried; transport failures propagate.
type Planner struct {
	llm      LLMService
	factory  *workflow.Factory
	attempts int
	log      *slog.Logger
}

// NewPlanner creates a planner strategy. A zero attempts selects
// DefaultPlanAttempts.
func NewPlanner(llm LLMService, factory *workflow.Factory, attempts int) *Planner {
	if attempts <= 0 {
		attempts = DefaultPlanAttempts
	}
	if factory == nil {
		factory = workflow.NewFactory()
	}
	return &Planner{
		llm:      llm,
		factory:  factory,
		attempts: attempts,
		log:      logger.ForComponent("planner"),
	}
}

// Name implements Strategy.
func (p *Planner) Name() string { return StrategyPlanner }

// Description implements Strategy.
func (p *Planner) Description() string {
	return "Analyzes the problem with the LLM and produces a typed execution plan"
}

// Confidence implements Strategy. The planner is the general-purpose
// default and scores a constant high value.
func (p *Planner) Confidence(problem string, pctx *ProblemContext) float64 {
	return plannerConfidence
}

// CreatePlan implements Strategy.
func (p *Planner) CreatePlan(ctx context.Context, problem string, pctx *ProblemContext) (*plan.Plan, error) {
	prompt := p.buildAnalysisPrompt(problem, pctx)

	for attempt := 1; attempt <= p.attempts; attempt++ {
		response, err := p.llm.QueryLLM(ctx, prompt)
		if err != nil {
			return nil, err
		}

		result := plan.Parse(response)
		built := p.buildPlan(problem, result)
		if built != nil {
			annotate(built, StrategyPlanner, result)
			return built, nil
		}
		p.log.Warn("plan did not materialize, retrying", "attempt", attempt, "kind", result.Kind)
	}

	fallback := plan.NewManual(problem)
	fallback.Metadata.Strategy = StrategyPlanner
	return fallback, nil
}

// buildPlan converts a parse result to a typed plan. A nil return marks a
// parse-class failure that should be retried.
func (p *Planner) buildPlan(problem string, result *plan.ParseResult) *plan.Plan {
	switch result.Kind {
	case plan.KindDirect:
		if result.Solution != "" {
			return plan.NewDirect(result.Solution)
		}
		return plan.NewManual(problem)
	case plan.KindCode:
		return plan.NewCode(result.Solution)
	case plan.KindWorkflow:
		instance, err := p.factory.FromYAML(result.Solution)
		if err != nil {
			return nil
		}
		return plan.NewWorkflow(instance, result.Solution)
	case plan.KindDelegate:
		target := strings.TrimPrefix(result.Solution, "agent:")
		return plan.NewDelegate(strings.TrimSpace(target), "")
	case plan.KindEscalate:
		return plan.NewEscalate(result.Solution)
	case plan.KindInput:
		return plan.NewInput(result.Solution)
	case plan.KindManual:
		return plan.NewManual(result.Solution)
	default:
		return plan.NewManual(problem)
	}
}

func (p *Planner) buildAnalysisPrompt(problem string, pctx *ProblemContext) string {
	var b strings.Builder
	b.WriteString("Analyze the following problem and decide how to solve it.\n\n")
	fmt.Fprintf(&b, "Problem: %s\n", problem)
	if pctx != nil {
		if pctx.Objective != "" {
			fmt.Fprintf(&b, "Objective: %s\n", pctx.Objective)
		}
		if pctx.Depth > 0 {
			fmt.Fprintf(&b, "This is a sub-problem at depth %d of: %s\n", pctx.Depth, pctx.OriginalProblem)
		}
		for _, assumption := range pctx.Assumptions {
			fmt.Fprintf(&b, "Assumption: %s\n", assumption)
		}
	}
	b.WriteString(`
Respond with YAML only:

plan: DIRECT|CODE|WORKFLOW|DELEGATE|ESCALATE|INPUT
confidence: <float 0..1>
reasoning: <one sentence>
solution: <direct answer, python source, workflow yaml, agent id, or prompt>
details:
  complexity: SIMPLE|MODERATE|COMPLEX|CRITICAL
  estimated_duration: immediate|minutes|hours|days

Use DIRECT for questions you can answer immediately. Use CODE when a short
python program computes the answer. Use WORKFLOW for multi-step problems;
put a full workflow definition in solution. Use DELEGATE when another agent
should own the problem, ESCALATE when a human must decide, INPUT when a
value is needed from the user.
`)
	return b.String()
}

// annotate copies parse metadata onto a built plan.
func annotate(built *plan.Plan, strategy string, result *plan.ParseResult) {
	built.Metadata.Strategy = strategy
	built.Metadata.Confidence = result.Confidence
	built.Metadata.Reasoning = result.Reasoning
	built.Metadata.Complexity = result.Details.Complexity
	built.Metadata.EstimatedDuration = result.Details.EstimatedDuration
}
