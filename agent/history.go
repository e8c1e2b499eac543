package agent

import (
	"sync"
	"time"
)

// ============================================================================
// ACTION HISTORY
// ============================================================================

// ActionType classifies history records.
type ActionType string

const (
	ActionSolveCall ActionType = "agent_solve_call"
	ActionReasoning ActionType = "reasoning"
	ActionChat      ActionType = "chat"
	ActionUserInput ActionType = "user_input"
	ActionCodeExec  ActionType = "code_execution"
	ActionWorkflow  ActionType = "workflow_execution"
	ActionDelegate  ActionType = "delegation"
	ActionEscalate  ActionType = "escalation"
	ActionManual    ActionType = "manual_solution"
)

// Action is one immutable history record.
type Action struct {
	Type             ActionType    `json:"type"`
	Description      string        `json:"description"`
	Depth            int           `json:"depth"`
	Timestamp        time.Time     `json:"timestamp"`
	Result           any           `json:"result,omitempty"`
	WorkflowID       string        `json:"workflow_id,omitempty"`
	ProblemStatement string        `json:"problem_statement,omitempty"`
	Success          bool          `json:"success"`
	ExecutionTime    time.Duration `json:"execution_time"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

// HistoryMetrics are derived over the full history.
type HistoryMetrics struct {
	TotalExecutionTime time.Duration `json:"total_execution_time"`
	ErrorRate          float64       `json:"error_rate"`
	MaxDepthReached    int           `json:"max_depth_reached"`
	SolveCallCount     int           `json:"solve_call_count"`
}

// Recognized success-pattern flags.
const (
	PatternRecursiveDecomposition = "recursive_decomposition"
	PatternUserInteraction        = "user_interaction"
	PatternReasoningIntensive     = "reasoning_intensive"
)

// Turn is one conversation turn: the contiguous run of actions recorded
// between one solve anchor and the next.
type Turn struct {
	Anchor    string    `json:"anchor"`
	StartedAt time.Time `json:"started_at"`
	Actions   []Action  `json:"actions"`
}

type turnMark struct {
	anchor    string
	startedAt time.Time
	start     int
}

// History is the append-only action log of one agent. Readers always see a
// consistent prefix.
type History struct {
	mu      sync.RWMutex
	actions []Action
	turns   []turnMark
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records an action. The timestamp is stamped here when unset.
func (h *History) Append(action Action) {
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}
	h.mu.Lock()
	h.actions = append(h.actions, action)
	h.mu.Unlock()
}

// BeginTurn opens a new conversation turn anchored on the given problem.
// Every action appended from here on belongs to this turn until the next
// anchor.
func (h *History) BeginTurn(anchor string) {
	h.mu.Lock()
	h.turns = append(h.turns, turnMark{anchor: anchor, startedAt: time.Now(), start: len(h.actions)})
	h.mu.Unlock()
}

// Turns partitions the history into conversation turns, oldest first.
// Actions recorded before the first anchor belong to no turn.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, 0, len(h.turns))
	for i, mark := range h.turns {
		end := len(h.actions)
		if i+1 < len(h.turns) {
			end = h.turns[i+1].start
		}
		actions := make([]Action, end-mark.start)
		copy(actions, h.actions[mark.start:end])
		out = append(out, Turn{Anchor: mark.anchor, StartedAt: mark.startedAt, Actions: actions})
	}
	return out
}

// LastTurn returns the most recent turn, if one has been opened.
func (h *History) LastTurn() (Turn, bool) {
	turns := h.Turns()
	if len(turns) == 0 {
		return Turn{}, false
	}
	return turns[len(turns)-1], true
}

// Len returns the number of recorded actions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.actions)
}

// Recent returns up to n most recent actions, oldest first.
func (h *History) Recent(n int) []Action {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || len(h.actions) == 0 {
		return nil
	}
	if n > len(h.actions) {
		n = len(h.actions)
	}
	out := make([]Action, n)
	copy(out, h.actions[len(h.actions)-n:])
	return out
}

// ByDepth returns all actions recorded at the given depth.
func (h *History) ByDepth(depth int) []Action {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Action
	for _, a := range h.actions {
		if a.Depth == depth {
			out = append(out, a)
		}
	}
	return out
}

// ByType returns all actions of the given type.
func (h *History) ByType(t ActionType) []Action {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Action
	for _, a := range h.actions {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Metrics derives aggregate metrics over the history.
func (h *History) Metrics() HistoryMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HistoryMetrics{}
	failures := 0
	for _, a := range h.actions {
		m.TotalExecutionTime += a.ExecutionTime
		if a.Depth > m.MaxDepthReached {
			m.MaxDepthReached = a.Depth
		}
		if a.Type == ActionSolveCall {
			m.SolveCallCount++
		}
		if !a.Success {
			failures++
		}
	}
	if len(h.actions) > 0 {
		m.ErrorRate = float64(failures) / float64(len(h.actions))
	}
	return m
}

// Patterns flags recognizable solving patterns in the history.
func (h *History) Patterns() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	solves, inputs, reasonings := 0, 0, 0
	for _, a := range h.actions {
		switch a.Type {
		case ActionSolveCall:
			solves++
		case ActionUserInput:
			inputs++
		case ActionReasoning:
			reasonings++
		}
	}

	var patterns []string
	if solves > 2 {
		patterns = append(patterns, PatternRecursiveDecomposition)
	}
	if inputs > 0 {
		patterns = append(patterns, PatternUserInteraction)
	}
	if reasonings > 3 {
		patterns = append(patterns, PatternReasoningIntensive)
	}
	return patterns
}
