// Package sched provides the reference scheduler used by this
// repository's own tests and examples to exercise the
// release_lazy/acquire(handle) handoff across a migrating task
// (spec.md §6's scheduler contract). It is a fixed-size goroutine
// worker pool, not a work-stealing scheduler, and makes no scheduling
// quality claims — the real work-stealing scheduler DSM is built
// against is out of scope (spec.md §1). Grounded on
// internal/concurrency.Executor, the NUMA-aware worker pool already
// built for this repository's ambient concurrency stack.
package sched

import (
	"context"
	"runtime"

	"github.com/itoyori/ityr-go/api"
	"github.com/itoyori/ityr-go/internal/concurrency"
)

// Scheduler implements api.Scheduler over a fixed worker pool. Each
// ThreadSpawn submits one task; the pool decides which goroutine (and
// therefore, in a real multi-rank deployment, potentially which
// simulated rank) ultimately runs it, which is the property DSM's
// coherence controller must not assume anything about beyond its
// release handles.
type Scheduler struct {
	exec *concurrency.Executor
}

// New returns a Scheduler backed by numWorkers goroutines pinned to
// numaNode (numaNode < 0 disables pinning).
func New(numWorkers, numaNode int) *Scheduler {
	return &Scheduler{exec: concurrency.NewExecutor(numWorkers, numaNode)}
}

// Poll implements api.Scheduler. DSM calls this while waiting on an
// RMA completion or a cache slot; releaseFn/acquireFn are offered so
// a real work-stealing scheduler's own task-migration points can
// transfer memory order, but this reference scheduler has no other
// work to interleave, so it just yields the goroutine.
func (s *Scheduler) Poll(releaseFn, acquireFn func()) {
	runtime.Gosched()
	_ = releaseFn
	_ = acquireFn
}

// ThreadSpawn implements api.Scheduler: submits body to the worker
// pool, invoking onEnter immediately before it runs and onExit
// immediately after it returns (including on panic), regardless of
// which worker goroutine ultimately executes it.
func (s *Scheduler) ThreadSpawn(onEnter, onExit func(), body func()) {
	_ = s.exec.Submit(func() {
		if onEnter != nil {
			onEnter()
		}
		defer func() {
			if onExit != nil {
				onExit()
			}
		}()
		body()
	})
}

// NumWorkers exposes the pool's fixed worker count for tests.
func (s *Scheduler) NumWorkers() int { return s.exec.NumWorkers() }

// Close shuts down the worker pool. Not part of api.Scheduler; callers
// that own a *Scheduler call this directly during teardown.
func (s *Scheduler) Close() { s.exec.Close() }

// Run implements api.Reactor: blocks until ctx is done, then tears
// down the worker pool, giving whatever owns this Scheduler's lifetime
// a single run-to-completion call instead of a separate Close.
func (s *Scheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	s.Close()
	return ctx.Err()
}

var _ api.Scheduler = (*Scheduler)(nil)
var _ api.Reactor = (*Scheduler)(nil)
