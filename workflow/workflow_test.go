package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/fsm"
)

const twoStepYAML = `workflow:
  name: equipment_check
  description: Check equipment status
  steps:
    - id: step_1
      action: read_sensor
      objective: Read the line sensor
    - id: step_2
      action: report
      objective: Report the reading
`

// recordingExecutor resolves every action to a canned string and records
// the order of calls.
type recordingExecutor struct {
	calls   []ActionRequest
	results map[string]any
	err     error
}

func (e *recordingExecutor) ExecuteAction(ctx context.Context, req ActionRequest) (any, error) {
	e.calls = append(e.calls, req)
	if e.err != nil {
		return nil, e.err
	}
	if e.results != nil {
		if r, ok := e.results[req.Action]; ok {
			return r, nil
		}
	}
	return "done: " + req.Action, nil
}

func TestFactoryBuildsLinearFSM(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)

	assert.Equal(t, "equipment_check", instance.Name())
	assert.Equal(t, "Check equipment status", instance.Description())
	assert.Equal(t, StateCreated, instance.ExecutionState())

	machine := instance.Machine()
	require.NotNil(t, machine)
	assert.ElementsMatch(t,
		[]string{"START", "STEP_step_1", "STEP_step_2", "COMPLETE"},
		machine.States())
	assert.Equal(t, "START", machine.CurrentState())

	meta, ok := machine.StateMetadataFor("STEP_step_1")
	require.True(t, ok)
	assert.Equal(t, "read_sensor", meta.Action)
	assert.Equal(t, fsm.StatusPending, meta.Status)
}

func TestFactoryRoundTrip(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)
	assert.Equal(t, twoStepYAML, instance.OriginalYAML())
}

func TestFactoryAcceptsFencedYAML(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML("```yaml\n" + twoStepYAML + "```")
	require.NoError(t, err)
	assert.Equal(t, "equipment_check", instance.Name())
}

func TestFactoryCacheReturnsFreshInstances(t *testing.T) {
	factory := NewFactory()

	first, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)
	second, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)

	require.True(t, first.Machine().Transition(fsm.EventNext))
	assert.Equal(t, "START", second.Machine().CurrentState(),
		"cached definitions must not share machine state")
}

func TestFactoryRejectsMalformedDefinitions(t *testing.T) {
	factory := NewFactory()
	tests := []struct {
		name string
		yaml string
	}{
		{"missing workflow key", "steps: []\n"},
		{"missing name", "workflow:\n  steps: []\n"},
		{"steps not a list", "workflow:\n  name: x\n  steps: nope\n"},
		{"steps missing", "workflow:\n  name: x\n"},
		{"unknown error_step", "workflow:\n  name: x\n  steps:\n    - id: a\n      error_step: ghost\n"},
	}
	for _, tt := range tests {
		_, err := factory.FromYAML(tt.yaml)
		require.Error(t, err, tt.name)
		assert.True(t, agenterr.IsInvalidFormat(err), tt.name)
	}
}

func TestFactoryDefaultStepIDsAndExtraKeys(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(`workflow:
  name: defaults
  owner: ops-team
  steps:
    - action: one
    - action: two
`)
	require.NoError(t, err)
	assert.True(t, instance.Machine().HasState("STEP_step_1"))
	assert.True(t, instance.Machine().HasState("STEP_step_2"))
	assert.Equal(t, "ops-team", instance.Metadata()["owner"])
}

func TestExecuteRunsAllSteps(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)

	executor := &recordingExecutor{results: map[string]any{
		"read_sensor": "42 PSI",
		"report":      "Line 3 nominal",
	}}
	result, err := instance.Execute(context.Background(), executor, map[string]any{"problem": "Check line 3"})
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "COMPLETE", result.FinalState)
	assert.Equal(t, "42 PSI", result.StateResults["STEP_step_1"])
	assert.Equal(t, "Line 3 nominal", result.StateResults["STEP_step_2"])
	assert.Equal(t, StateCompleted, instance.ExecutionState())

	require.Len(t, executor.calls, 2)
	assert.Equal(t, "read_sensor", executor.calls[0].Action)
	assert.Equal(t, "report", executor.calls[1].Action)

	// Every visited step state completed with a result entry.
	for _, state := range []string{"STEP_step_1", "STEP_step_2"} {
		meta, ok := instance.Machine().StateMetadataFor(state)
		require.True(t, ok)
		assert.Equal(t, fsm.StatusCompleted, meta.Status)
		_, ok = instance.Machine().ResultFor(state)
		assert.True(t, ok)
	}

	history := instance.History()
	require.NotEmpty(t, history)
	assert.Equal(t, "start", history[0].Step)
	assert.Equal(t, "complete", history[len(history)-1].Step)
}

func TestExecuteAccumulatesStateResults(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)

	executor := &recordingExecutor{}
	_, err = instance.Execute(context.Background(), executor, map[string]any{"problem": "p"})
	require.NoError(t, err)

	require.Len(t, executor.calls, 2)
	assert.Equal(t, "done: read_sensor", executor.calls[1].Data["STEP_step_1"])
}

func TestExecuteValidatesData(t *testing.T) {
	instance := NewInstance("w", nil)

	tests := []map[string]any{
		nil,
		{},
		{"problem": ""},
		{"problem": 42},
		{"problem": "p", "parameters": "not a mapping"},
		{"problem": "p", "resources": "not a list"},
	}
	for i, data := range tests {
		result, err := instance.Execute(context.Background(), &recordingExecutor{}, data)
		require.NoError(t, err, "case %d", i)
		assert.Equal(t, "failed", result.Status, "case %d", i)
		assert.NotEmpty(t, result.Error, "case %d", i)
	}
}

func TestExecuteActionFailure(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)

	executor := &recordingExecutor{err: errors.New("sensor offline")}
	result, err := instance.Execute(context.Background(), executor, map[string]any{"problem": "p"})
	require.NoError(t, err)

	assert.Equal(t, "failed", result.Status)
	assert.Contains(t, result.Error, "sensor offline")
	assert.Equal(t, StateError, instance.ExecutionState())

	meta, ok := instance.Machine().StateMetadataFor("STEP_step_1")
	require.True(t, ok)
	assert.Equal(t, fsm.StatusFailed, meta.Status)
}

func TestExecuteStrictPropagatesErrors(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)
	instance.SetStrict(true)

	_, err = instance.Execute(context.Background(), &recordingExecutor{err: errors.New("boom")}, map[string]any{"problem": "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestExecuteSimpleFlowWithoutFSM(t *testing.T) {
	instance := NewInstance("data analysis", nil)

	executor := &recordingExecutor{}
	result, err := instance.Execute(context.Background(), executor, map[string]any{"problem": "p"})
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	require.Len(t, executor.calls, 1)
	assert.Equal(t, "analyze_problem", executor.calls[0].Action)
}

func TestExecuteCancellation(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)
	instance.SetStrict(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = instance.Execute(ctx, &recordingExecutor{}, map[string]any{"problem": "p"})
	require.Error(t, err)
	assert.True(t, agenterr.IsCancellation(err))
}

func TestErrorStepTransition(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(`workflow:
  name: guarded
  steps:
    - id: risky
      action: attempt
      error_step: recover
    - id: recover
      action: recover
`)
	require.NoError(t, err)

	machine := instance.Machine()
	assert.True(t, machine.CanTransition("STEP_risky", fsm.EventError))
	next, ok := machine.GetNextState("STEP_risky", fsm.EventError)
	require.True(t, ok)
	assert.Equal(t, "STEP_recover", next)
}

// flakyExecutor fails the named action; everything else resolves normally.
type flakyExecutor struct {
	recordingExecutor
	failAction string
}

func (e *flakyExecutor) ExecuteAction(ctx context.Context, req ActionRequest) (any, error) {
	if req.Action == e.failAction {
		e.calls = append(e.calls, req)
		return nil, errors.New("sensor offline")
	}
	return e.recordingExecutor.ExecuteAction(ctx, req)
}

func TestErrorStepRecoveryRuns(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(`workflow:
  name: guarded
  steps:
    - id: risky
      action: attempt
      error_step: recover
    - id: recover
      action: recover
`)
	require.NoError(t, err)

	executor := &flakyExecutor{failAction: "attempt"}
	result, err := instance.Execute(context.Background(), executor, map[string]any{"problem": "p"})
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "COMPLETE", result.FinalState)
	assert.Contains(t, result.StateResults, "STEP_recover")
	assert.NotContains(t, result.StateResults, "STEP_risky")

	require.Len(t, executor.calls, 2)
	assert.Equal(t, "attempt", executor.calls[0].Action)
	assert.Equal(t, "recover", executor.calls[1].Action)
	// The handler sees the failure that routed control to it.
	assert.Equal(t, map[string]any{"error": "sensor offline"}, executor.calls[1].Data["STEP_risky"])

	meta, ok := instance.Machine().StateMetadataFor("STEP_risky")
	require.True(t, ok)
	assert.Equal(t, fsm.StatusFailed, meta.Status)
}

func TestErrorStepRecoveryRunsOnce(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(`workflow:
  name: stuck
  steps:
    - id: risky
      action: attempt
      error_step: risky
`)
	require.NoError(t, err)

	executor := &flakyExecutor{failAction: "attempt"}
	result, err := instance.Execute(context.Background(), executor, map[string]any{"problem": "p"})
	require.NoError(t, err)

	assert.Equal(t, "failed", result.Status)
	assert.Contains(t, result.Error, "sensor offline")
	// One pass through the error transition, then the failure surfaces.
	assert.Len(t, executor.calls, 2)
}

func TestFactoryBuildsWorkflowType(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(`workflow:
  name: pressure_check
  description: Check line pressure
  metadata:
    type: diagnostics
  steps:
    - id: step_1
      action: read_sensor
      parameters:
        line: 3
        unit: PSI
`)
	require.NoError(t, err)

	wt := instance.Type()
	require.NotNil(t, wt)
	assert.Equal(t, "diagnostics", wt.Name)
	assert.Equal(t, "Check line pressure", wt.Docstring)
	require.Len(t, wt.Fields, 2)
	assert.Equal(t, "line", wt.Fields[0].Name)
	assert.Equal(t, "int", wt.Fields[0].Type)
	assert.Equal(t, 3, wt.Fields[0].Default)
	assert.Equal(t, "unit", wt.Fields[1].Name)
	assert.Equal(t, "string", wt.Fields[1].Type)

	result, err := instance.Execute(context.Background(), &recordingExecutor{}, map[string]any{"problem": "p"})
	require.NoError(t, err)
	assert.Equal(t, "diagnostics", result.WorkflowType)
}

func TestExecuteReportsStepProgress(t *testing.T) {
	factory := NewFactory()
	instance, err := factory.FromYAML(twoStepYAML)
	require.NoError(t, err)

	executor := &recordingExecutor{}
	_, err = instance.Execute(context.Background(), executor, map[string]any{"problem": "p"})
	require.NoError(t, err)

	require.Len(t, executor.calls, 2)
	assert.Equal(t, 0, executor.calls[0].StepIndex)
	assert.Equal(t, 1, executor.calls[1].StepIndex)
	for _, call := range executor.calls {
		assert.Equal(t, 2, call.StepCount)
	}
}
