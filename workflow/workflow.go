package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/fsm"
)

// ============================================================================
// WORKFLOW INSTANCE & ENGINE
// ============================================================================

// ExecutionState tracks an instance through its lifecycle.
type ExecutionState string

const (
	StateCreated   ExecutionState = "created"
	StateExecuting ExecutionState = "executing"
	StateCompleted ExecutionState = "completed"
	StateError     ExecutionState = "error"
)

// HistoryEntry is one step of an instance's execution trail.
type HistoryEntry struct {
	Step      string         `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ActionRequest carries one state action to the owning agent. StepIndex
// counts completed action states before this one; StepCount is the total
// number of action states in the machine.
type ActionRequest struct {
	Action       string
	Objective    string
	Parameters   map[string]any
	Data         map[string]any
	WorkflowName string
	State        string
	StepIndex    int
	StepCount    int
}

// ActionExecutor is implemented by the agent; workflows hold the interface
// so workflow execution can call back into solve without an import cycle.
type ActionExecutor interface {
	ExecuteAction(ctx context.Context, req ActionRequest) (any, error)
}

// Result is the outcome of one workflow execution.
type Result struct {
	Status       string         `json:"status"`
	FinalState   string         `json:"final_state,omitempty"`
	StateResults map[string]any `json:"per_state_results,omitempty"`
	FSMResults   map[string]any `json:"fsm_results,omitempty"`
	Error        string         `json:"error,omitempty"`
	WorkflowType string         `json:"workflow_type,omitempty"`
}

// Type is schema metadata describing a workflow's declared fields.
type Type struct {
	Name      string      `json:"name"`
	Docstring string      `json:"docstring,omitempty"`
	Fields    []TypeField `json:"fields,omitempty"`
}

// TypeField is one declared field of a workflow type, in declaration order.
type TypeField struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default any    `json:"default,omitempty"`
}

// Instance owns exactly one FSM and its execution trail. Instances are
// single-use state holders; the factory builds a fresh one per request.
type Instance struct {
	name        string
	description string
	machine     *fsm.Machine
	wfType      *Type

	mu             sync.Mutex
	executionState ExecutionState
	history        []HistoryEntry
	originalYAML   string
	metadata       map[string]any
	parent         *Instance
	strict         bool
}

// NewInstance creates an instance around a machine. The machine may be nil;
// execution then falls back to a simple type-selected flow.
func NewInstance(name string, machine *fsm.Machine) *Instance {
	return &Instance{
		name:           name,
		machine:        machine,
		executionState: StateCreated,
		metadata:       make(map[string]any),
	}
}

// Name returns the workflow name.
func (w *Instance) Name() string { return w.name }

// Description returns the workflow description.
func (w *Instance) Description() string { return w.description }

// Machine returns the owned FSM, or nil.
func (w *Instance) Machine() *fsm.Machine { return w.machine }

// OriginalYAML returns the YAML text the instance was built from.
func (w *Instance) OriginalYAML() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.originalYAML
}

// Metadata returns a copy of the instance metadata.
func (w *Instance) Metadata() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]any, len(w.metadata))
	for k, v := range w.metadata {
		out[k] = v
	}
	return out
}

// ExecutionState returns the current lifecycle state.
func (w *Instance) ExecutionState() ExecutionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.executionState
}

// History returns a copy of the execution trail.
func (w *Instance) History() []HistoryEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]HistoryEntry, len(w.history))
	copy(out, w.history)
	return out
}

// Parent returns the parent instance for recursively invoked workflows.
func (w *Instance) Parent() *Instance {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parent
}

// SetParent records the parent workflow of a recursive invocation.
func (w *Instance) SetParent(parent *Instance) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parent = parent
}

// SetStrict makes execution return errors instead of error-shaped results.
func (w *Instance) SetStrict(strict bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.strict = strict
}

func (w *Instance) appendHistory(step string, payload map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, HistoryEntry{Step: step, Timestamp: time.Now(), Payload: payload})
}

func (w *Instance) setExecutionState(state ExecutionState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.executionState = state
}

// Type returns the declared workflow type, or nil for instances built
// without a definition.
func (w *Instance) Type() *Type { return w.wfType }

// typeName reports the workflow type keyword used by the no-FSM flow.
func (w *Instance) typeName() string {
	if w.wfType != nil && w.wfType.Name != "" {
		return w.wfType.Name
	}
	return w.name
}

// ============================================================================
// EXECUTION
// ============================================================================

// Execute runs the workflow to a terminal state, invoking each state action
// through the executor. Failures normally come back as an error-shaped
// Result; with strict set, they come back as errors.
func (w *Instance) Execute(ctx context.Context, executor ActionExecutor, data map[string]any) (*Result, error) {
	if err := validateData(data); err != nil {
		return w.fail(err)
	}
	if executor == nil {
		return w.fail(agenterr.New(agenterr.KindInvalidArgument, "Workflow", "Execute",
			"executor cannot be nil"))
	}

	w.setExecutionState(StateExecuting)
	w.appendHistory("start", data)

	var result *Result
	var err error
	if w.machine != nil {
		result, err = w.runFSMLoop(ctx, executor, data)
	} else {
		result, err = w.runSimpleFlow(ctx, executor, data)
	}
	if err != nil {
		return w.fail(err)
	}

	w.setExecutionState(StateCompleted)
	w.appendHistory("complete", map[string]any{"result": result})
	return result, nil
}

// runFSMLoop drives the machine until COMPLETE or ERROR. States without
// metadata (START and friends) are skipped with a bare "next" transition.
func (w *Instance) runFSMLoop(ctx context.Context, executor ActionExecutor, data map[string]any) (*Result, error) {
	stateResults := make(map[string]any)
	accumulated := make(map[string]any, len(data))
	for k, v := range data {
		accumulated[k] = v
	}

	stepCount := 0
	for _, s := range w.machine.States() {
		if _, ok := w.machine.StateMetadataFor(s); ok {
			stepCount++
		}
	}
	completed := 0
	recovered := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return nil, agenterr.Wrap(agenterr.KindCancellationRequested, "Workflow", "Execute",
				"workflow execution cancelled", err)
		}

		current := w.machine.CurrentState()
		if current == fsm.StateComplete || current == fsm.StateError {
			break
		}

		meta, hasMeta := w.machine.StateMetadataFor(current)
		if !hasMeta {
			if !w.machine.Transition(fsm.EventNext) {
				break
			}
			continue
		}

		_ = w.machine.SetStateStatus(current, fsm.StatusExecuting)
		actionResult, err := executor.ExecuteAction(ctx, ActionRequest{
			Action:       meta.Action,
			Objective:    meta.Objective,
			Parameters:   meta.Parameters,
			Data:         accumulated,
			WorkflowName: w.name,
			State:        current,
			StepIndex:    completed,
			StepCount:    stepCount,
		})
		if err != nil {
			_ = w.machine.SetStateStatus(current, fsm.StatusFailed)
			// A declared error_step takes over: hand control to the handler
			// state and carry the failure downstream. Each state gets at most
			// one recovery so handler chains terminate.
			if !recovered[current] && w.machine.CanTransition(current, fsm.EventError) &&
				w.machine.Transition(fsm.EventError) {
				recovered[current] = true
				accumulated[current] = map[string]any{"error": err.Error()}
				continue
			}
			return nil, agenterr.Wrap(agenterr.KindInternal, "Workflow", "Execute",
				fmt.Sprintf("state '%s' action '%s' failed", current, meta.Action), err)
		}

		_ = w.machine.SetResult(current, actionResult)
		stateResults[current] = actionResult
		accumulated[current] = actionResult
		_ = w.machine.SetStateStatus(current, fsm.StatusCompleted)
		completed++

		if !w.machine.Transition(fsm.EventNext) {
			break
		}
	}

	return &Result{
		Status:       "completed",
		FinalState:   w.machine.CurrentState(),
		StateResults: stateResults,
		FSMResults:   w.machine.Results(),
		WorkflowType: w.typeName(),
	}, nil
}

// runSimpleFlow handles instances without an FSM: a single action chosen by
// the workflow type keyword, falling back to a generic processing action.
func (w *Instance) runSimpleFlow(ctx context.Context, executor ActionExecutor, data map[string]any) (*Result, error) {
	action := "process"
	name := w.typeName()
	switch {
	case containsKeyword(name, "analysis", "analyze"):
		action = "analyze_problem"
	case containsKeyword(name, "research"):
		action = "research_topic"
	case containsKeyword(name, "report"):
		action = "generate_report"
	}

	result, err := executor.ExecuteAction(ctx, ActionRequest{
		Action:       action,
		Objective:    fmt.Sprintf("%v", data["problem"]),
		Data:         data,
		WorkflowName: w.name,
	})
	if err != nil {
		return nil, agenterr.Wrap(agenterr.KindInternal, "Workflow", "Execute",
			fmt.Sprintf("simple flow action '%s' failed", action), err)
	}

	return &Result{
		Status:       "completed",
		StateResults: map[string]any{action: result},
		WorkflowType: name,
	}, nil
}

// fail records the error and converts it to an error-shaped result unless
// the instance runs strict.
func (w *Instance) fail(err error) (*Result, error) {
	w.setExecutionState(StateError)
	w.appendHistory("error", map[string]any{"message": err.Error()})

	w.mu.Lock()
	strict := w.strict
	w.mu.Unlock()
	if strict {
		return nil, err
	}
	return &Result{
		Status:       "failed",
		Error:        err.Error(),
		WorkflowType: w.typeName(),
	}, nil
}

// validateData checks the execution payload shape: a non-empty string
// problem, parameters as a mapping, resources as a list.
func validateData(data map[string]any) error {
	problem, ok := data["problem"].(string)
	if !ok || problem == "" {
		return agenterr.New(agenterr.KindInvalidArgument, "Workflow", "Execute",
			"data requires a non-empty string 'problem'")
	}
	if params, present := data["parameters"]; present {
		if _, ok := params.(map[string]any); !ok {
			return agenterr.New(agenterr.KindInvalidArgument, "Workflow", "Execute",
				"'parameters' must be a mapping")
		}
	}
	if res, present := data["resources"]; present {
		if _, ok := res.([]any); !ok {
			if _, ok := res.([]string); !ok {
				return agenterr.New(agenterr.KindInvalidArgument, "Workflow", "Execute",
					"'resources' must be a list")
			}
		}
	}
	return nil
}

func containsKeyword(name string, keywords ...string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
