package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danaruntime/dana/plan"
)

// scriptedLLM returns queued responses in order, repeating the last one
// when the queue drains.
type scriptedLLM struct {
	responses []string
	calls     int
	err       error
}

func (s *scriptedLLM) QueryLLM(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	response := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return response, nil
}

// fixedStrategy scores a constant confidence and returns a canned plan.
type fixedStrategy struct {
	name  string
	score float64
}

func (f *fixedStrategy) Name() string        { return f.name }
func (f *fixedStrategy) Description() string { return f.name }
func (f *fixedStrategy) Confidence(string, *ProblemContext) float64 {
	return f.score
}
func (f *fixedStrategy) CreatePlan(context.Context, string, *ProblemContext) (*plan.Plan, error) {
	return plan.NewDirect(f.name), nil
}

func TestProblemContextChild(t *testing.T) {
	root := NewProblemContext("build a house", "shelter")
	root.Constraints["budget"] = 100
	root.Assumptions = append(root.Assumptions, "land is owned")

	child := root.Child("pour foundation", "base")
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, "build a house", child.OriginalProblem)
	assert.Equal(t, 100, child.Constraints["budget"])
	assert.Equal(t, []string{"land is owned"}, child.Assumptions)

	child.Constraints["budget"] = 50
	child.Assumptions = append(child.Assumptions, "weather holds")
	assert.Equal(t, 100, root.Constraints["budget"], "child must not mutate parent")
	assert.Len(t, root.Assumptions, 1)
}

func TestIdentityLoopDetection(t *testing.T) {
	root := NewProblemContext("Solve X", "")
	assert.False(t, root.IsIdentityLoop())

	same := root.Child("  solve   x ", "")
	assert.True(t, same.IsIdentityLoop())

	different := root.Child("solve y", "")
	assert.False(t, different.IsIdentityLoop())
}

func TestSelectorPicksHighestConfidence(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Register(&fixedStrategy{name: "low", score: 0.2}))
	require.NoError(t, s.Register(&fixedStrategy{name: "high", score: 0.9}))

	assert.Equal(t, "high", s.Select("p", nil).Name())
}

func TestSelectorTieBreaksByRegistrationOrder(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Register(&fixedStrategy{name: "first", score: 0.5}))
	require.NoError(t, s.Register(&fixedStrategy{name: "second", score: 0.5}))

	assert.Equal(t, "first", s.Select("p", nil).Name())
}

func TestSelectorDefaultsToRecursiveOnAllZero(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Register(&fixedStrategy{name: "other", score: 0}))
	require.NoError(t, s.Register(&fixedStrategy{name: StrategyRecursive, score: 0}))

	assert.Equal(t, StrategyRecursive, s.Select("p", nil).Name())
}

func TestSelectorEmptyAndNil(t *testing.T) {
	s := NewSelector()
	assert.Nil(t, s.Select("p", nil))
	assert.Error(t, s.Register(nil))
}

func TestPlannerDirectPlan(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"plan: DIRECT\nconfidence: 0.9\nreasoning: trivial\nsolution: \"4\""}}
	p := NewPlanner(llm, nil, 0)

	built, err := p.CreatePlan(context.Background(), "What is 2+2?", nil)
	require.NoError(t, err)
	assert.Equal(t, plan.KindDirect, built.Kind)
	assert.Equal(t, "4", built.Content)
	assert.Equal(t, StrategyPlanner, built.Metadata.Strategy)
	assert.InDelta(t, 0.9, built.Metadata.Confidence, 1e-9)
}

func TestPlannerEmptyDirectBecomesManual(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"plan: DIRECT"}}
	p := NewPlanner(llm, nil, 0)

	built, err := p.CreatePlan(context.Background(), "unanswerable", nil)
	require.NoError(t, err)
	assert.Equal(t, plan.KindManual, built.Kind)
	assert.Equal(t, "unanswerable", built.Content)
}

func TestPlannerRetriesBadWorkflowThenFallsBack(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"plan: WORKFLOW\nsolution: not a workflow"}}
	p := NewPlanner(llm, nil, 3)

	built, err := p.CreatePlan(context.Background(), "multi step", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, llm.calls, "workflow materialization failures are parse-class and retried")
	assert.Equal(t, plan.KindManual, built.Kind)
}

func TestPlannerWorkflowMaterializes(t *testing.T) {
	response := "plan: WORKFLOW\nsolution: |\n  workflow:\n    name: check\n    steps:\n      - id: step_1\n        action: read_sensor\n      - id: step_2\n        action: report"
	llm := &scriptedLLM{responses: []string{response}}
	p := NewPlanner(llm, nil, 0)

	built, err := p.CreatePlan(context.Background(), "Check equipment", nil)
	require.NoError(t, err)
	require.Equal(t, plan.KindWorkflow, built.Kind)
	require.NotNil(t, built.Instance)
	assert.Equal(t, "check", built.Instance.Name())
	assert.Equal(t, 1, llm.calls)
}

func TestPlannerTransportErrorsPropagate(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("connection refused")}
	p := NewPlanner(llm, nil, 3)

	_, err := p.CreatePlan(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Equal(t, 1, llm.calls, "transport failures are not retried")
}

func TestPlannerDelegateStripsAgentPrefix(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"plan: DELEGATE\nsolution: \"agent:finance\""}}
	p := NewPlanner(llm, nil, 0)

	built, err := p.CreatePlan(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, plan.KindDelegate, built.Kind)
	assert.Equal(t, "finance", built.TargetAgent)
}

func TestRecursiveBaseCaseOnDepth(t *testing.T) {
	r := NewRecursive(&scriptedLLM{}, nil, 3)

	pctx := NewProblemContext("root", "")
	frame := pctx
	for i := 0; i < 3; i++ {
		frame = frame.Child("sub problem "+string(rune('a'+i)), "")
	}

	built, err := r.CreatePlan(context.Background(), "deep problem", frame)
	require.NoError(t, err)
	assert.Equal(t, plan.KindDirect, built.Kind)
	assert.Equal(t, "Base case reached for: deep problem. Maximum recursion depth (3) exceeded.", built.Content)
}

func TestRecursiveBaseCaseOnIdentityLoop(t *testing.T) {
	r := NewRecursive(&scriptedLLM{}, nil, 10)

	root := NewProblemContext("same problem", "")
	loop := root.Child("Same Problem", "")

	built, err := r.CreatePlan(context.Background(), "Same Problem", loop)
	require.NoError(t, err)
	assert.Equal(t, plan.KindDirect, built.Kind)
	assert.Contains(t, built.Content, "Base case reached for: Same Problem")
}

func TestRecursiveBuildsWorkflow(t *testing.T) {
	response := "plan: WORKFLOW\nsolution: |\n  workflow:\n    name: decompose\n    steps:\n      - id: step_1\n        action: solve part one\n      - id: step_2\n        action: solve part two"
	r := NewRecursive(&scriptedLLM{responses: []string{response}}, nil, 10)

	built, err := r.CreatePlan(context.Background(), "part one and part two", NewProblemContext("p", ""))
	require.NoError(t, err)
	require.Equal(t, plan.KindWorkflow, built.Kind)
	assert.True(t, built.Instance.Machine().HasState("STEP_step_1"))
}

func TestRecursiveConfidence(t *testing.T) {
	r := NewRecursive(&scriptedLLM{}, nil, 10)
	assert.Greater(t, r.Confidence("do this and then that", nil), 0.0)
	assert.Zero(t, r.Confidence("what?", nil))
}

func TestIterativeRefinesUntilRepeat(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"draft one", "draft two", "draft two"}}
	i := NewIterative(llm, 10)

	built, err := i.CreatePlan(context.Background(), "refine my essay", nil)
	require.NoError(t, err)
	assert.Equal(t, plan.KindDirect, built.Kind)
	assert.Equal(t, "draft two", built.Content)
	assert.Equal(t, 3, llm.calls, "loop truncates on identical repeat")
}

func TestIterativeBoundedIterations(t *testing.T) {
	responses := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		responses = append(responses, "answer "+string(rune('a'+i)))
	}
	llm := &scriptedLLM{responses: responses}
	i := NewIterative(llm, 4)

	_, err := i.CreatePlan(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, llm.calls)
}

func TestIterativeConfidence(t *testing.T) {
	i := NewIterative(&scriptedLLM{}, 0)
	assert.Greater(t, i.Confidence("please refine this text", nil), 0.0)
	assert.Zero(t, i.Confidence("what is 2+2", nil))
}
