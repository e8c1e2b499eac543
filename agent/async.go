package agent

import (
	"context"

	"github.com/danaruntime/dana/async"
)

// ============================================================================
// ASYNC VARIANTS
// ============================================================================
// Every public operation has a promise-returning variant scheduled on the
// agent's worker pool. Cancelling the promise cancels the computation and
// suppresses its on-delivery callback.

// SolveAsync runs Solve on a worker.
func (a *Agent) SolveAsync(ctx context.Context, input any) *async.Promise {
	return a.schedule(ctx, func(ctx context.Context) (any, error) {
		return a.Solve(ctx, input)
	})
}

// ChatAsync runs Chat on a worker.
func (a *Agent) ChatAsync(ctx context.Context, message string) *async.Promise {
	return a.schedule(ctx, func(ctx context.Context) (any, error) {
		return a.Chat(ctx, message)
	})
}

// ReasonAsync runs Reason on a worker.
func (a *Agent) ReasonAsync(ctx context.Context, premise, system string) *async.Promise {
	return a.schedule(ctx, func(ctx context.Context) (any, error) {
		return a.Reason(ctx, premise, system)
	})
}

// InputAsync runs Input on a worker.
func (a *Agent) InputAsync(ctx context.Context, prompt string) *async.Promise {
	return a.schedule(ctx, func(ctx context.Context) (any, error) {
		return a.Input(ctx, prompt)
	})
}

// schedule runs fn under a context that ends when either the caller's
// context or the promise's own (cancellable) context does.
func (a *Agent) schedule(callerCtx context.Context, fn func(ctx context.Context) (any, error)) *async.Promise {
	return a.pool.Go(func(runCtx context.Context) (any, error) {
		merged, cancel := context.WithCancel(runCtx)
		defer cancel()
		stop := context.AfterFunc(callerCtx, cancel)
		defer stop()
		return fn(merged)
	})
}

// Wait blocks until all scheduled async operations have finished.
func (a *Agent) Wait() error {
	return a.pool.Wait()
}
