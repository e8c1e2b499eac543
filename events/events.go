// Package events defines the typed agent event records and the per-agent
// event bus that fans them out to registered observers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// EVENT TYPES
// ============================================================================

// Type identifies the kind of an event record.
type Type string

const (
	TypeLog         Type = "log"
	TypeStatus      Type = "status"
	TypeToken       Type = "token"
	TypeToolStart   Type = "tool_start"
	TypeToolEnd     Type = "tool_end"
	TypeProgress    Type = "progress"
	TypeFinalResult Type = "final_result"
	TypeError       Type = "error"
	TypeDone        Type = "done"
)

// Log levels carried by TypeLog events.
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Event is a single typed record broadcast to observers.
//
// AgentName and Seq are stamped by the bus on emit; Seq is monotonic per
// agent, so observers can detect gaps and reordering.
type Event struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	AgentName string    `json:"agent_name"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Log
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// Status
	Step   string `json:"step,omitempty"`
	Detail string `json:"detail,omitempty"`

	// Token
	Text string `json:"text,omitempty"`

	// ToolStart / ToolEnd
	ToolName   string `json:"tool_name,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`

	// Progress
	Fraction float64 `json:"fraction,omitempty"`

	// FinalResult
	Value any `json:"value,omitempty"`
}

func newEvent(t Type) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now(),
	}
}

// NewLog creates a log event.
func NewLog(level, message string) Event {
	e := newEvent(TypeLog)
	e.Level = level
	e.Message = message
	return e
}

// NewStatus creates a lifecycle status event.
func NewStatus(step, detail string) Event {
	e := newEvent(TypeStatus)
	e.Step = step
	e.Detail = detail
	return e
}

// NewToken creates a streamed-token event.
func NewToken(text string) Event {
	e := newEvent(TypeToken)
	e.Text = text
	return e
}

// NewToolStart creates a tool-invocation-start event.
func NewToolStart(name string) Event {
	e := newEvent(TypeToolStart)
	e.ToolName = name
	return e
}

// NewToolEnd creates a tool-invocation-end event.
func NewToolEnd(name, result string) Event {
	e := newEvent(TypeToolEnd)
	e.ToolName = name
	e.ToolResult = result
	return e
}

// NewProgress creates a progress event with fraction in [0,1].
func NewProgress(fraction float64) Event {
	e := newEvent(TypeProgress)
	e.Fraction = fraction
	return e
}

// NewFinalResult creates a final-result event.
func NewFinalResult(value any) Event {
	e := newEvent(TypeFinalResult)
	e.Value = value
	return e
}

// NewError creates an error event.
func NewError(message string) Event {
	e := newEvent(TypeError)
	e.Message = message
	return e
}

// NewDone creates a completion event.
func NewDone() Event {
	return newEvent(TypeDone)
}
