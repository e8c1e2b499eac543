package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danaruntime/dana/agenterr"
)

func TestEmitStampsAgentAndSequence(t *testing.T) {
	bus := NewBus("assistant")

	var received []Event
	require.NoError(t, bus.OnLog(func(e Event) { received = append(received, e) }))

	bus.Emit(NewStatus("initialized", ""))
	bus.Emit(NewLog(LevelInfo, "solving"))
	bus.Emit(NewDone())

	require.Len(t, received, 3)
	for i, e := range received {
		assert.Equal(t, "assistant", e.AgentName)
		assert.Equal(t, uint64(i+1), e.Seq, "sequence numbers are monotonic from 1")
	}
}

func TestCallbacksFireInRegistrationOrder(t *testing.T) {
	bus := NewBus("a")

	var order []string
	mk := func(name string) Callback {
		return func(Event) { order = append(order, name) }
	}
	first := mk("first")
	second := mk("second")
	third := mk("third")

	require.NoError(t, bus.OnLog(first))
	require.NoError(t, bus.OnLog(second))
	require.NoError(t, bus.OnLog(third))

	bus.Emit(NewLog(LevelDebug, "x"))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestCallbackPanicIsIsolated(t *testing.T) {
	bus := NewBus("a")

	var after int
	panicking := func(Event) { panic("observer bug") }
	counting := func(Event) { after++ }

	require.NoError(t, bus.OnLog(panicking))
	require.NoError(t, bus.OnLog(counting))

	assert.NotPanics(t, func() { bus.Emit(NewError("boom")) })
	assert.Equal(t, 1, after, "callbacks after the panicking one still fire")
}

func TestNilCallbackRejected(t *testing.T) {
	bus := NewBus("a")
	err := bus.OnLog(nil)
	require.Error(t, err)
	assert.True(t, agenterr.IsInvalidArgument(err))
}

func TestUnregister(t *testing.T) {
	bus := NewBus("a")

	var count int
	cb := func(Event) { count++ }
	other := func(Event) {}

	require.NoError(t, bus.OnLog(cb))
	assert.Equal(t, 1, bus.SubscriberCount())

	// Unknown callback is a no-op.
	bus.UnregisterLogCallback(other)
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.UnregisterLogCallback(cb)
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Emit(NewDone())
	assert.Equal(t, 0, count)
}

func TestObserverSeesPrefixWithoutReordering(t *testing.T) {
	bus := NewBus("a")

	var seqs []uint64
	require.NoError(t, bus.OnLog(func(e Event) { seqs = append(seqs, e.Seq) }))

	for i := 0; i < 20; i++ {
		bus.Emit(NewToken(fmt.Sprintf("t%d", i)))
	}

	for i := 1; i < len(seqs); i++ {
		assert.Equal(t, seqs[i-1]+1, seqs[i], "no reordering or gaps")
	}
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		typ   Type
	}{
		{"log", NewLog(LevelWarning, "m"), TypeLog},
		{"status", NewStatus("planning", "selecting strategy"), TypeStatus},
		{"token", NewToken("hello"), TypeToken},
		{"tool start", NewToolStart("coding"), TypeToolStart},
		{"tool end", NewToolEnd("coding", "120"), TypeToolEnd},
		{"progress", NewProgress(0.5), TypeProgress},
		{"final result", NewFinalResult("4"), TypeFinalResult},
		{"error", NewError("bad"), TypeError},
		{"done", NewDone(), TypeDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.event.Type)
			assert.NotEmpty(t, tt.event.ID)
			assert.False(t, tt.event.Timestamp.IsZero())
		})
	}
}
