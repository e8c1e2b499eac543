package events

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/logger"
)

// ============================================================================
// EVENT BUS
// ============================================================================

// Callback receives every event emitted on the bus it is registered with.
type Callback func(Event)

type subscription struct {
	key uintptr
	cb  Callback
}

// Bus fans events out to registered callbacks, per agent.
//
// Registry mutations serialize with emits: callbacks registered during an
// emit see only subsequent events. Every registered callback is invoked
// exactly once per Emit, in registration order. A panicking callback is
// isolated: the panic is recovered, logged at WARN, and dispatch continues.
type Bus struct {
	agentName string
	seq       atomic.Uint64
	mu        sync.Mutex
	subs      []subscription
}

// NewBus creates an event bus for the named agent.
func NewBus(agentName string) *Bus {
	return &Bus{agentName: agentName}
}

// AgentName returns the owning agent's name.
func (b *Bus) AgentName() string {
	return b.agentName
}

// OnLog registers a callback. A nil callback fails with InvalidArgument.
// The same function may be registered more than once; it then fires once
// per registration.
func (b *Bus) OnLog(cb Callback) error {
	if cb == nil {
		return agenterr.New(agenterr.KindInvalidArgument, "EventBus", "OnLog", "callback cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{key: callbackKey(cb), cb: cb})
	return nil
}

// UnregisterLogCallback removes the first registration of cb.
// Unregistering an unknown callback is a no-op.
func (b *Bus) UnregisterLogCallback(cb Callback) {
	if cb == nil {
		return
	}
	key := callbackKey(cb)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.key == key {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of registered callbacks.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Emit stamps the event with the agent name and the next sequence number,
// then invokes every callback synchronously in registration order.
func (b *Bus) Emit(event Event) Event {
	event.AgentName = b.agentName
	event.Seq = b.seq.Add(1)

	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		b.dispatch(sub.cb, event)
	}
	return event
}

// dispatch invokes a single callback, isolating panics.
func (b *Bus) dispatch(cb Callback, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ForComponent("events").Warn("event callback panicked",
				"agent", b.agentName, "event_type", string(event.Type), "panic", r)
		}
	}()
	cb(event)
}

// callbackKey derives a comparable identity for a callback function.
func callbackKey(cb Callback) uintptr {
	return reflect.ValueOf(cb).Pointer()
}
