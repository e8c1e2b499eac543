// Package fsm implements the finite-state machine driving workflow
// execution. Transitions are keyed by a typed (state, event) pair so event
// strings containing separator characters cannot collide.
package fsm

import (
	"fmt"
	"sync"

	"github.com/danaruntime/dana/agenterr"
)

// ============================================================================
// STATE STATUS TYPES
// ============================================================================

// StateStatus tracks per-state execution progress.
type StateStatus string

const (
	StatusPending   StateStatus = "pending"
	StatusExecuting StateStatus = "executing"
	StatusCompleted StateStatus = "completed"
	StatusFailed    StateStatus = "failed"
)

// Reserved state names. User states get default metadata; reserved states
// do not.
const (
	StateStart    = "START"
	StateComplete = "COMPLETE"
	StateError    = "ERROR"
)

// EventNext is the event linking linearly ordered states.
const EventNext = "next"

// EventError routes a state to its error handler.
const EventError = "error"

// ============================================================================
// TRANSITION KEY
// ============================================================================

// TransitionKey identifies a transition by its source state and event.
type TransitionKey struct {
	From  string
	Event string
}

// String renders a human-readable key for debugging.
func (k TransitionKey) String() string {
	return fmt.Sprintf("%s --%s-->", k.From, k.Event)
}

// ============================================================================
// STATE METADATA
// ============================================================================

// StateMetadata carries the action bound to a state.
type StateMetadata struct {
	Action     string         `json:"action"`
	Objective  string         `json:"objective"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty"`
	Status     StateStatus    `json:"status"`
}

// ============================================================================
// MACHINE
// ============================================================================

// Machine is a finite-state machine with per-state metadata and results.
//
// Invariants: the initial and current states are members of the state set,
// and both endpoints of every transition are members of the state set.
type Machine struct {
	mu               sync.RWMutex
	states           map[string]struct{}
	initialState     string
	currentState     string
	transitions      map[TransitionKey]string
	stateMetadata    map[string]*StateMetadata
	results          map[string]any
	workflowMetadata map[string]any
}

// NewLinear creates a machine from an ordered state list, linking each
// state to its successor with the "next" event. The first state is initial.
func NewLinear(states []string) (*Machine, error) {
	if len(states) == 0 {
		return nil, agenterr.New(agenterr.KindInvalidArgument, "FSM", "NewLinear", "state list cannot be empty")
	}

	transitions := make(map[TransitionKey]string, len(states)-1)
	for i := 0; i < len(states)-1; i++ {
		transitions[TransitionKey{From: states[i], Event: EventNext}] = states[i+1]
	}

	return NewBranching(states, states[0], transitions)
}

// NewBranching creates a machine from an explicit transition map,
// validating that every endpoint belongs to the state set. User states
// (anything other than START, COMPLETE, ERROR) get default pending
// metadata.
func NewBranching(states []string, initial string, transitions map[TransitionKey]string) (*Machine, error) {
	if len(states) == 0 {
		return nil, agenterr.New(agenterr.KindInvalidArgument, "FSM", "NewBranching", "state list cannot be empty")
	}

	stateSet := make(map[string]struct{}, len(states))
	for _, s := range states {
		if s == "" {
			return nil, agenterr.New(agenterr.KindInvalidArgument, "FSM", "NewBranching", "state name cannot be empty")
		}
		stateSet[s] = struct{}{}
	}

	if _, ok := stateSet[initial]; !ok {
		return nil, agenterr.New(agenterr.KindInvalidArgument, "FSM", "NewBranching",
			fmt.Sprintf("initial state '%s' not in state set", initial))
	}

	for key, to := range transitions {
		if _, ok := stateSet[key.From]; !ok {
			return nil, agenterr.New(agenterr.KindInvalidArgument, "FSM", "NewBranching",
				fmt.Sprintf("transition source '%s' not in state set", key.From))
		}
		if _, ok := stateSet[to]; !ok {
			return nil, agenterr.New(agenterr.KindInvalidArgument, "FSM", "NewBranching",
				fmt.Sprintf("transition target '%s' not in state set", to))
		}
	}

	metadata := make(map[string]*StateMetadata)
	for _, s := range states {
		if s == StateStart || s == StateComplete || s == StateError {
			continue
		}
		metadata[s] = &StateMetadata{Status: StatusPending}
	}

	copied := make(map[TransitionKey]string, len(transitions))
	for k, v := range transitions {
		copied[k] = v
	}

	return &Machine{
		states:           stateSet,
		initialState:     initial,
		currentState:     initial,
		transitions:      copied,
		stateMetadata:    metadata,
		results:          make(map[string]any),
		workflowMetadata: make(map[string]any),
	}, nil
}

// ============================================================================
// QUERIES
// ============================================================================

// States returns the state set.
func (m *Machine) States() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.states))
	for s := range m.states {
		out = append(out, s)
	}
	return out
}

// HasState reports whether s is a member of the state set.
func (m *Machine) HasState(s string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[s]
	return ok
}

// InitialState returns the initial state.
func (m *Machine) InitialState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialState
}

// CurrentState returns the current state.
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState
}

// CanTransition reports whether event is valid from the given state.
func (m *Machine) CanTransition(from, event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transitions[TransitionKey{From: from, Event: event}]
	return ok
}

// GetNextState returns the target of (from, event), if any.
func (m *Machine) GetNextState(from, event string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	to, ok := m.transitions[TransitionKey{From: from, Event: event}]
	return to, ok
}

// AvailableEvents returns the events valid from the given state.
func (m *Machine) AvailableEvents(state string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for key := range m.transitions {
		if key.From == state {
			out = append(out, key.Event)
		}
	}
	return out
}

// IsTerminal reports whether the state has no outgoing transitions.
func (m *Machine) IsTerminal(state string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key := range m.transitions {
		if key.From == state {
			return false
		}
	}
	return true
}

// Transitions returns a copy of the transition map.
func (m *Machine) Transitions() map[TransitionKey]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[TransitionKey]string, len(m.transitions))
	for k, v := range m.transitions {
		out[k] = v
	}
	return out
}

// ============================================================================
// MUTATIONS
// ============================================================================

// Transition fires event from the current state. Returns false and leaves
// the machine untouched when no such transition exists.
func (m *Machine) Transition(event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, ok := m.transitions[TransitionKey{From: m.currentState, Event: event}]
	if !ok {
		return false
	}
	m.currentState = to
	return true
}

// Reset returns the machine to its initial state and clears results and
// per-state status.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentState = m.initialState
	m.results = make(map[string]any)
	for _, meta := range m.stateMetadata {
		meta.Status = StatusPending
	}
}

// ============================================================================
// METADATA AND RESULTS
// ============================================================================

// SetStateMetadata attaches metadata to a state.
func (m *Machine) SetStateMetadata(state string, meta StateMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[state]; !ok {
		return agenterr.New(agenterr.KindInvalidArgument, "FSM", "SetStateMetadata",
			fmt.Sprintf("unknown state '%s'", state))
	}
	if meta.Status == "" {
		meta.Status = StatusPending
	}
	m.stateMetadata[state] = &meta
	return nil
}

// StateMetadataFor returns the metadata for a state, if any.
func (m *Machine) StateMetadataFor(state string) (StateMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.stateMetadata[state]
	if !ok {
		return StateMetadata{}, false
	}
	return *meta, true
}

// SetStateStatus advances the status of a state. Valid advances are
// pending→executing and executing→completed|failed.
func (m *Machine) SetStateStatus(state string, status StateStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.stateMetadata[state]
	if !ok {
		return agenterr.New(agenterr.KindInvalidArgument, "FSM", "SetStateStatus",
			fmt.Sprintf("state '%s' has no metadata", state))
	}

	if !validStatusAdvance(meta.Status, status) {
		return agenterr.New(agenterr.KindInvalidArgument, "FSM", "SetStateStatus",
			fmt.Sprintf("invalid status change %s -> %s for state '%s'", meta.Status, status, state))
	}
	meta.Status = status
	return nil
}

func validStatusAdvance(from, to StateStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusExecuting
	case StatusExecuting:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// SetResult records a state's result. Does not change the state's status.
func (m *Machine) SetResult(state string, result any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[state]; !ok {
		return agenterr.New(agenterr.KindInvalidArgument, "FSM", "SetResult",
			fmt.Sprintf("unknown state '%s'", state))
	}
	m.results[state] = result
	return nil
}

// ResultFor returns a state's recorded result, if any.
func (m *Machine) ResultFor(state string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[state]
	return r, ok
}

// Results returns a copy of all recorded results.
func (m *Machine) Results() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return out
}

// SetWorkflowMetadata stores workflow-level metadata.
func (m *Machine) SetWorkflowMetadata(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflowMetadata[key] = value
}

// WorkflowMetadata returns a copy of the workflow-level metadata.
func (m *Machine) WorkflowMetadata() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.workflowMetadata))
	for k, v := range m.workflowMetadata {
		out[k] = v
	}
	return out
}
