package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/events"
	"github.com/danaruntime/dana/fsm"
	"github.com/danaruntime/dana/plan"
	"github.com/danaruntime/dana/reasoning"
	"github.com/danaruntime/dana/resources"
	"github.com/danaruntime/dana/workflow"
)

// ============================================================================
// PLAN EXECUTOR
// ============================================================================

// Synthetic single-step instances wrap non-workflow plans so every solve
// uniformly executes a workflow.
const (
	syntheticMetadataKey = "synthetic"
	syntheticPlanState   = "STEP_plan"
	executePlanAction    = "execute_plan"
	planParameterKey     = "plan"
)

// wrapPlan builds a single-step instance whose only state executes p.
func (a *Agent) wrapPlan(p *plan.Plan) (*workflow.Instance, error) {
	machine, err := fsm.NewLinear([]string{fsm.StateStart, syntheticPlanState, fsm.StateComplete})
	if err != nil {
		return nil, err
	}
	if err := machine.SetStateMetadata(syntheticPlanState, fsm.StateMetadata{
		Action:     executePlanAction,
		Objective:  string(p.Kind),
		Parameters: map[string]any{planParameterKey: p},
		Status:     fsm.StatusPending,
	}); err != nil {
		return nil, err
	}

	instance := workflow.NewInstance("direct_execution", machine)
	instance.SetStrict(a.cfg.Strict)
	machine.SetWorkflowMetadata(syntheticMetadataKey, true)
	return instance, nil
}

// unwrapResult collapses a synthetic instance's result to its single state
// payload, and likewise any one-step workflow, so recursive chains
// propagate plain values. Multi-step workflows keep their full mapping.
func unwrapResult(instance *workflow.Instance, result *workflow.Result) any {
	if result == nil {
		return nil
	}
	if result.Status == "failed" {
		return result
	}
	if machine := instance.Machine(); machine != nil {
		if synthetic, ok := machine.WorkflowMetadata()[syntheticMetadataKey].(bool); ok && synthetic {
			return result.StateResults[syntheticPlanState]
		}
	}
	if len(result.StateResults) == 1 {
		for _, payload := range result.StateResults {
			return payload
		}
	}
	return result
}

// stateActionExecutor adapts the agent to workflow.ActionExecutor: plan
// states dispatch their embedded plan, every other state action re-enters
// solve one level deeper.
type stateActionExecutor struct {
	agent *Agent
	pctx  *reasoning.ProblemContext
}

func (e *stateActionExecutor) ExecuteAction(ctx context.Context, req workflow.ActionRequest) (any, error) {
	a := e.agent

	if req.Action == executePlanAction {
		if p, ok := req.Parameters[planParameterKey].(*plan.Plan); ok {
			return a.executePlan(ctx, e.pctx, p)
		}
		return nil, agenterr.New(agenterr.KindInternal, "Agent", "ExecuteAction",
			"plan state carries no plan")
	}

	problem := req.Action
	if req.Objective != "" {
		problem = fmt.Sprintf("%s: %s", req.Action, req.Objective)
	}
	a.emit(events.NewStatus(req.State, problem))
	if a.collect != nil {
		a.collect.WorkflowStates.WithLabelValues(a.name, "executed").Inc()
	}
	result, err := a.solveWithContext(ctx, problem, e.pctx.Child(problem, req.Objective))
	if err == nil && req.StepCount > 0 {
		a.emit(events.NewProgress(float64(req.StepIndex+1) / float64(req.StepCount)))
	}
	return result, err
}

// executePlan is the dispatch table keyed on plan kind.
func (a *Agent) executePlan(ctx context.Context, pctx *reasoning.ProblemContext, p *plan.Plan) (any, error) {
	problem := pctx.ProblemStatement

	switch p.Kind {
	case plan.KindDirect:
		return p.Content, nil

	case plan.KindCode:
		return a.executeCode(ctx, p.Content)

	case plan.KindWorkflow:
		instance := p.Instance
		if instance == nil {
			var err error
			instance, err = a.factory.FromYAML(p.WorkflowYAML)
			if err != nil {
				return nil, err
			}
		}
		instance.SetStrict(a.cfg.Strict)
		executor := &stateActionExecutor{agent: a, pctx: pctx}
		return instance.Execute(ctx, executor, map[string]any{"problem": problem})

	case plan.KindDelegate:
		return a.executeDelegate(ctx, problem, p)

	case plan.KindEscalate:
		a.history.Append(Action{Type: ActionEscalate, Description: problem, Depth: pctx.Depth, Success: true})
		return fmt.Sprintf("Problem '%s' escalated to human for manual intervention", problem), nil

	case plan.KindInput:
		prompt := p.Prompt
		if prompt == "" {
			prompt = problem
		}
		response, err := a.Input(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("User response is '%s'", response), nil

	case plan.KindManual:
		return a.executeManual(ctx, problem, p, pctx)

	default:
		return nil, agenterr.New(agenterr.KindInternal, "Agent", "ExecutePlan",
			fmt.Sprintf("unknown plan kind '%s'", p.Kind))
	}
}

// executeCode runs the source through the coding resource. Resource-level
// failures come back as the error text, offending source included, rather
// than as an error.
func (a *Agent) executeCode(ctx context.Context, source string) (any, error) {
	started := time.Now()

	res, ok := a.resources.GetByKind(resources.KindCoding)
	if !ok {
		return nil, agenterr.New(agenterr.KindResourceUnavailable, "Agent", "ExecutePlan",
			"no coding resource registered")
	}
	a.emit(events.NewToolStart("execute_code"))
	resp, err := res.Query(ctx, resources.Request{
		Source:         source,
		TimeoutSeconds: a.cfg.CodingTimeoutSeconds,
	})

	if resp == nil {
		if err != nil {
			return nil, err
		}
		return nil, agenterr.New(agenterr.KindInternal, "Agent", "ExecutePlan",
			"coding resource returned no response")
	}

	output := resp.Content
	if !resp.Success {
		output = resp.Error
	}
	a.emit(events.NewToolEnd("execute_code", output))
	a.history.Append(Action{
		Type:          ActionCodeExec,
		Description:   source,
		Success:       resp.Success,
		Result:        output,
		ExecutionTime: time.Since(started),
		ErrorMessage:  resp.Error,
	})
	return output, nil
}

// executeDelegate sub-solves on a registered peer, or returns the contract
// string when the target is unknown.
func (a *Agent) executeDelegate(ctx context.Context, problem string, p *plan.Plan) (any, error) {
	a.history.Append(Action{Type: ActionDelegate, Description: problem, Success: true, Result: p.TargetAgent})

	if a.peers != nil {
		if target, err := a.peers.GetAgent(p.TargetAgent); err == nil && target != a {
			delegated := problem
			if p.Content != "" {
				delegated = p.Content
			}
			return target.Solve(ctx, delegated)
		}
	}
	return fmt.Sprintf("Delegated problem '%s' to agent: %s", problem, p.TargetAgent), nil
}

// executeManual asks the LLM to solve directly.
func (a *Agent) executeManual(ctx context.Context, problem string, p *plan.Plan, pctx *reasoning.ProblemContext) (any, error) {
	subject := p.Content
	if subject == "" {
		subject = problem
	}
	prompt := fmt.Sprintf("Solve the following problem directly and answer with the solution text only.\n\nProblem: %s", subject)

	text, err := a.QueryLLM(ctx, prompt)
	if err != nil {
		return nil, err
	}
	a.history.Append(Action{Type: ActionManual, Description: subject, Depth: pctx.Depth, Success: true, Result: text})
	return fmt.Sprintf("Manual solution: %s", strings.TrimSpace(text)), nil
}

// LegacyPlan routes an untyped string plan: an "agent:" prefix delegates,
// the TYPE_ESCALATE sentinel escalates, anything else is manual.
func LegacyPlan(s string) *plan.Plan {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "agent:") {
		return plan.NewDelegate(strings.TrimSpace(strings.TrimPrefix(trimmed, "agent:")), "")
	}
	if trimmed == "TYPE_ESCALATE" {
		return plan.NewEscalate("")
	}
	return plan.NewManual(trimmed)
}
