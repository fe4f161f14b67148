// Package pool implements the fixed-size worker pool described in
// spec.md §4.E: a bounded set of workers that execute tasks, track
// which have finished but not yet been reaped, and let a single-
// threaded scheduler wait for progress without busy-polling.
//
// Idle-slot accounting is delegated to golang.org/x/sync/semaphore: a
// worker counts as "idle" exactly when its permit is available, so
// acquiring one non-blockingly (TryAcquire) or blockingly (Acquire) is
// precisely spec.md's get_idle_worker(block).
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is the unit of work a worker executes. It mirrors
// item.Apply(interactive) wrapped by the caller, returning an opaque
// result alongside a Go error for task failures (spec.md §7's "Task
// failure" row: captured by the worker, never kills it).
type Task func(ctx context.Context) (any, error)

type reapedEntry struct {
	worker *Worker
	id     string
	result any
	err    error
}

// Worker is a single slot in the pool. Callers obtain one from
// Pool.GetIdleWorker and hand it work with StartTask; they never
// construct a Worker directly.
type Worker struct {
	pool *FixedPool
}

// StartTask assigns fn to the worker, tagging it with id (the
// scheduler uses the item id so a later reap can remove it from
// dependents' working-dep sets). The pool tracks the task; errors fn
// returns are captured, not propagated as a panic or dropped task.
func (w *Worker) StartTask(ctx context.Context, id string, fn Task) {
	p := w.pool
	p.mu.Lock()
	p.busyCount++
	p.mu.Unlock()

	go func() {
		result, err := fn(ctx)

		p.mu.Lock()
		p.busyCount--
		p.reapable = append(p.reapable, reapedEntry{worker: w, id: id, result: result, err: err})
		p.cond.Broadcast()
		p.mu.Unlock()
	}()
}

// ReapedWorker is returned by GetReapableWorker: a handle onto a
// worker whose task has completed but whose result has not yet been
// consumed.
type ReapedWorker struct {
	pool  *FixedPool
	entry reapedEntry
}

// ID returns the id the now-finished task was started with.
func (r *ReapedWorker) ID() string { return r.entry.id }

// Reap consumes the result (or the captured failure) and returns the
// worker to the idle set.
func (r *ReapedWorker) Reap() (any, error) {
	r.pool.mu.Lock()
	r.pool.idle = append(r.pool.idle, r.entry.worker)
	r.pool.mu.Unlock()
	r.pool.sem.Release(1)
	return r.entry.result, r.entry.err
}

// FixedPool is a fixed-size worker pool.
type FixedPool struct {
	sem *semaphore.Weighted

	mu        sync.Mutex
	cond      *sync.Cond
	idle      []*Worker
	reapable  []reapedEntry
	busyCount int
}

// NewFixedPool returns a pool of n workers, all initially idle. n must
// be at least 1.
func NewFixedPool(n int) *FixedPool {
	if n < 1 {
		n = 1
	}
	p := &FixedPool{sem: semaphore.NewWeighted(int64(n))}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.idle = append(p.idle, &Worker{pool: p})
	}
	return p
}

// GetIdleWorker returns an idle worker. With block=false it returns
// nil immediately when none is free; with block=true it waits for one.
func (p *FixedPool) GetIdleWorker(ctx context.Context, block bool) *Worker {
	if block {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
	} else if !p.sem.TryAcquire(1) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	return w
}

// ReapableCount returns the number of workers whose task has completed
// but whose result has not been consumed.
func (p *FixedPool) ReapableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reapable)
}

// BusyCount returns the number of workers currently executing a task.
func (p *FixedPool) BusyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busyCount
}

// GetReapableWorker returns one reapable worker. Order among
// simultaneously reapable workers is unspecified; this implementation
// returns them FIFO for deterministic tests.
func (p *FixedPool) GetReapableWorker() *ReapedWorker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reapable) == 0 {
		return nil
	}
	entry := p.reapable[0]
	p.reapable = p.reapable[1:]
	return &ReapedWorker{pool: p, entry: entry}
}

// Wait blocks until at least one new reapable worker exists.
func (p *FixedPool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.reapable) == 0 {
		p.cond.Wait()
	}
}
