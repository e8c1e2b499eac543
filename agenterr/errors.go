// Package agenterr defines the error taxonomy shared across the runtime.
//
// Every component raises errors of a small, fixed set of kinds so callers
// can decide between retry, fallback, and propagation without string
// matching.
package agenterr

import (
	"errors"
	"fmt"
)

// ============================================================================
// ERROR KINDS
// ============================================================================

// Kind classifies a runtime error.
type Kind string

const (
	// KindInvalidArgument indicates input, callback, or config validation failure.
	KindInvalidArgument Kind = "invalid_argument"

	// KindInvalidFormat indicates a YAML or plan parsing failure. The planner
	// retries this class up to its attempt budget before falling back.
	KindInvalidFormat Kind = "invalid_format"

	// KindResourceUnavailable indicates an LLM, sandbox, or input resource
	// was queried before initialization or after teardown.
	KindResourceUnavailable Kind = "resource_unavailable"

	// KindTimeout indicates code execution or an LLM call exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindDepthExceeded indicates the recursion controller hit the depth cap.
	// Substituted with a base-case workflow rather than surfaced.
	KindDepthExceeded Kind = "depth_exceeded"

	// KindCancellationRequested indicates a promise or solve was cancelled.
	KindCancellationRequested Kind = "cancellation_requested"

	// KindInternal indicates an unexpected failure.
	KindInternal Kind = "internal_error"
)

// ============================================================================
// ERROR TYPE
// ============================================================================

// Error is the typed error carried across component boundaries.
type Error struct {
	Kind      Kind
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without a cause.
func New(kind Kind, component, action, message string) *Error {
	return &Error{Kind: kind, Component: component, Action: action, Message: message}
}

// Wrap creates a typed error wrapping a cause.
func Wrap(kind Kind, component, action, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Action: action, Message: message, Err: err}
}

// ============================================================================
// CLASSIFICATION HELPERS
// ============================================================================

// KindOf returns the kind of err, or KindInternal when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsInvalidArgument reports whether err is an input validation failure.
func IsInvalidArgument(err error) bool { return IsKind(err, KindInvalidArgument) }

// IsInvalidFormat reports whether err is a parse-class failure. The planner
// retries only this class; transport failures propagate.
func IsInvalidFormat(err error) bool { return IsKind(err, KindInvalidFormat) }

// IsResourceUnavailable reports whether err is a resource lifecycle failure.
func IsResourceUnavailable(err error) bool { return IsKind(err, KindResourceUnavailable) }

// IsTimeout reports whether err is a deadline failure.
func IsTimeout(err error) bool { return IsKind(err, KindTimeout) }

// IsDepthExceeded reports whether err is a recursion depth failure.
func IsDepthExceeded(err error) bool { return IsKind(err, KindDepthExceeded) }

// IsCancellation reports whether err is a cancellation.
func IsCancellation(err error) bool { return IsKind(err, KindCancellationRequested) }
