package async

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// WORKER POOL
// ============================================================================

// DefaultWorkers bounds concurrent promise computations per pool.
const DefaultWorkers = 4

// Pool runs promise computations on a bounded set of workers. Computation
// errors resolve the individual promise; they do not tear the pool down.
type Pool struct {
	group *errgroup.Group
	ctx   context.Context
}

// NewPool creates a pool bounded to the given worker count. A non-positive
// count selects DefaultWorkers.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	return &Pool{group: group, ctx: ctx}
}

// Go schedules fn on the pool and returns its promise. Scheduling blocks
// when all workers are busy.
func (p *Pool) Go(fn func(ctx context.Context) (any, error)) *Promise {
	promise := newPromise()
	ctx, cancel := context.WithCancel(p.ctx)
	promise.cancel = cancel
	p.group.Go(func() error {
		defer cancel()
		promise.compute(ctx, fn)
		return nil
	})
	return promise
}

// Wait blocks until every scheduled computation has finished.
func (p *Pool) Wait() error {
	return p.group.Wait()
}
