package async

import (
	"context"
	"sync"

	"github.com/danaruntime/dana/agenterr"
)

// ============================================================================
// PROMISE - SINGLE-DELIVERY FUTURE HANDLE
// ============================================================================

// Callback observes a promise's delivered value. It runs exactly once, and
// never after cancellation.
type Callback func(value any, err error)

// Promise is a thin future: it holds either a pending computation or a
// delivered value. Callers synchronize externally; a promise is not
// re-entrant-safe beyond its own locking.
type Promise struct {
	mu          sync.Mutex
	done        chan struct{}
	value       any
	err         error
	delivered   bool
	cancelled   bool
	callback    Callback
	callbackRan bool
	cancel      context.CancelFunc
}

// Run schedules fn on its own goroutine and returns the promise for its
// result. The computation's context is cancelled when the promise is.
func Run(ctx context.Context, fn func(ctx context.Context) (any, error)) *Promise {
	p := newPromise()
	ctx, p.cancel = context.WithCancel(ctx)
	go p.compute(ctx, fn)
	return p
}

// Resolved creates an already-delivered promise.
func Resolved(value any) *Promise {
	p := newPromise()
	p.deliver(value, nil)
	return p
}

// Rejected creates an already-failed promise.
func Rejected(err error) *Promise {
	p := newPromise()
	p.deliver(nil, err)
	return p
}

func newPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

func (p *Promise) compute(ctx context.Context, fn func(ctx context.Context) (any, error)) {
	value, err := fn(ctx)

	// Single-step flattening: a computation resolving to a promise
	// delivers that promise's value instead.
	if inner, ok := value.(*Promise); ok && err == nil {
		value, err = inner.Await(ctx)
	}
	p.deliver(value, err)
}

// deliver records the result and fires the on-delivery callback unless the
// promise was cancelled first.
func (p *Promise) deliver(value any, err error) {
	p.mu.Lock()
	if p.delivered {
		p.mu.Unlock()
		return
	}
	p.value = value
	p.err = err
	p.delivered = true
	cb := p.callback
	fire := cb != nil && !p.cancelled && !p.callbackRan
	if fire {
		p.callbackRan = true
	}
	close(p.done)
	p.mu.Unlock()

	if fire {
		cb(value, err)
	}
}

// OnDelivery registers the single on-delivery callback. Registering after
// delivery fires immediately unless the promise was cancelled.
func (p *Promise) OnDelivery(cb Callback) {
	p.mu.Lock()
	if p.callback != nil || p.callbackRan {
		p.mu.Unlock()
		return
	}
	p.callback = cb
	fire := p.delivered && !p.cancelled
	if fire {
		p.callbackRan = true
	}
	value, err := p.value, p.err
	p.mu.Unlock()

	if fire {
		cb(value, err)
	}
}

// Await blocks until delivery or until ctx ends. A delivered inner promise
// is unwrapped one step.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, agenterr.Wrap(agenterr.KindCancellationRequested, "Promise", "Await",
			"await abandoned", ctx.Err())
	}

	p.mu.Lock()
	value, err, cancelled := p.value, p.err, p.cancelled
	p.mu.Unlock()

	if cancelled {
		return nil, agenterr.New(agenterr.KindCancellationRequested, "Promise", "Await",
			"promise was cancelled")
	}
	if inner, ok := value.(*Promise); ok && err == nil {
		return inner.Await(ctx)
	}
	return value, err
}

// Cancel marks the promise cancelled: the computation's context is
// cancelled, a running computation may finish, and the on-delivery callback
// will never fire.
func (p *Promise) Cancel() {
	p.mu.Lock()
	if p.delivered || p.cancelled {
		p.mu.Unlock()
		return
	}
	p.cancelled = true
	p.err = agenterr.New(agenterr.KindCancellationRequested, "Promise", "Cancel",
		"promise was cancelled")
	p.delivered = true
	cancel := p.cancel
	close(p.done)
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Delivered reports whether the promise has a value (or was cancelled).
func (p *Promise) Delivered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

// Cancelled reports whether Cancel won the race with delivery.
func (p *Promise) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}
