package agenterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(KindInvalidArgument, "EventBus", "OnLog", "callback cannot be nil")
	assert.Equal(t, "[EventBus:OnLog] callback cannot be nil", err.Error())

	cause := errors.New("connection refused")
	wrapped := Wrap(KindResourceUnavailable, "LLMResource", "Query", "llm not initialized", cause)
	assert.Equal(t, "[LLMResource:Query] llm not initialized: connection refused", wrapped.Error())
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"invalid argument", New(KindInvalidArgument, "c", "a", "m"), KindInvalidArgument},
		{"invalid format", New(KindInvalidFormat, "c", "a", "m"), KindInvalidFormat},
		{"timeout", New(KindTimeout, "c", "a", "m"), KindTimeout},
		{"depth exceeded", New(KindDepthExceeded, "c", "a", "m"), KindDepthExceeded},
		{"cancellation", New(KindCancellationRequested, "c", "a", "m"), KindCancellationRequested},
		{"untyped error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindInvalidFormat, "PlanParser", "Parse", "no yaml block")
	outer := fmt.Errorf("planning attempt 2: %w", inner)

	require.True(t, IsInvalidFormat(outer))
	assert.False(t, IsTimeout(outer))
	assert.Equal(t, KindInvalidFormat, KindOf(outer))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsInvalidArgument(New(KindInvalidArgument, "c", "a", "m")))
	assert.True(t, IsResourceUnavailable(New(KindResourceUnavailable, "c", "a", "m")))
	assert.True(t, IsCancellation(New(KindCancellationRequested, "c", "a", "m")))
	assert.False(t, IsDepthExceeded(errors.New("plain")))
}
