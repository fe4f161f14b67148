// Package scheduler drives the item graph built by internal/graph to
// completion over the internal/pool worker pool, implementing the
// dispatch/reap/idle loop from spec.md §4.F as a single-threaded loop
// that never blocks except inside pool.Wait or the blocking branch of
// pool.GetIdleWorker.
package scheduler

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/hashmap-kz/metanode/internal/clog"
	"github.com/hashmap-kz/metanode/internal/graph"
	"github.com/hashmap-kz/metanode/internal/item"
	"github.com/hashmap-kz/metanode/internal/pool"
)

// Result is one item's apply outcome. Err is set when Item.Apply itself
// returned a Go error (spec.md §7's "Task failure" row); Before/After
// are then nil, and the item is still treated as completed for
// dependency-resolution purposes.
type Result struct {
	ID     string
	Before *item.Status
	After  *item.Status
	Err    error
}

// Event is delivered on the channel Run returns: either a per-item
// Result, or a Fatal error that terminates the run (UnknownDependency
// at build time, or CyclicDependency from a drained residue).
type Event struct {
	Result *Result
	Fatal  error
}

// CyclicDependencyError mirrors graph.CyclicDependencyError; it is
// raised here when the dispatch loop drains to a non-empty pending set
// despite having passed graph.Build's pre-flight check — defense in
// depth for the invariant spec.md §4.F requires of the loop itself.
type CyclicDependencyError = graph.CyclicDependencyError

// Run builds the dependency graph over items and executes it with the
// given worker count, downgrading to 1 whenever interactive is true
// (spec.md §4.F, §5). It returns a channel of Events; the channel is
// closed once the run terminates, successfully or not.
func Run(ctx context.Context, items []item.Item, workers int, interactive bool) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		logger := clog.FromContext(ctx)

		if interactive {
			workers = 1
		}
		if workers < 1 {
			workers = 1
		}

		nodes, err := graph.Build(items)
		if err != nil {
			out <- Event{Fatal: err}
			return
		}

		p := pool.NewFixedPool(workers)
		ready, pending := partition(nodes)

		for len(ready) > 0 || p.BusyCount() > 0 || p.ReapableCount() > 0 {
			for len(ready) > 0 {
				w := p.GetIdleWorker(ctx, false)
				if w == nil {
					break
				}
				n := ready[len(ready)-1]
				ready = ready[:len(ready)-1]
				nodeItem := n.Item
				logger.Debug("⏳ dispatch", "item", nodeItem.ID())
				w.StartTask(ctx, nodeItem.ID(), func(taskCtx context.Context) (any, error) {
					before, after, applyErr := nodeItem.Apply(taskCtx, interactive)
					return itemOutcome{before: before, after: after}, applyErr
				})
			}

			for p.ReapableCount() > 0 {
				rw := p.GetReapableWorker()
				id := rw.ID()
				res, taskErr := rw.Reap()

				pending, ready = resolve(pending, ready, id)

				if taskErr != nil {
					logger.Warn("⟲ reap failed", "item", id, "err", taskErr)
					out <- Event{Result: &Result{ID: id, Err: taskErr}}
					continue
				}
				outcome := res.(itemOutcome)
				if outcome.before == nil && outcome.after == nil {
					// synthetic type-group item: no result to yield
					continue
				}
				logGlyph(logger, id, outcome)
				out <- Event{Result: &Result{ID: id, Before: outcome.before, After: outcome.after}}
			}

			if p.BusyCount() > 0 && len(ready) == 0 && p.ReapableCount() == 0 {
				p.Wait()
			}
		}

		if len(pending) > 0 {
			ids := make([]string, 0, len(pending))
			for _, n := range pending {
				ids = append(ids, n.Item.ID())
			}
			out <- Event{Fatal: &CyclicDependencyError{IDs: ids}}
		}
	}()

	return out
}

type itemOutcome struct {
	before *item.Status
	after  *item.Status
}

// logGlyph reports a reaped item's status transition using the
// teacher's glyph convention: ✓ when nothing changed, ⟲ when the fix
// moved the item from incorrect to correct, ⏳ when it's still not
// correct after the attempt.
func logGlyph(logger *log.Logger, id string, outcome itemOutcome) {
	switch {
	case outcome.after != nil && outcome.after.Aborted:
		logger.Info("⏳ aborted", "item", id)
	case outcome.before != nil && outcome.after != nil && !outcome.before.Correct && outcome.after.Correct:
		logger.Info("⟲ fixed", "item", id)
	case outcome.after != nil && outcome.after.Correct:
		logger.Debug("✓ correct", "item", id)
	default:
		logger.Warn("⏳ still incorrect", "item", id)
	}
}

func partition(nodes []*graph.Node) (ready, pending []*graph.Node) {
	for _, n := range nodes {
		if len(n.Working) == 0 {
			ready = append(ready, n)
		} else {
			pending = append(pending, n)
		}
	}
	return ready, pending
}

// resolve removes dep from every pending node's working set and moves
// newly-unblocked nodes into ready.
func resolve(pending, ready []*graph.Node, dep string) ([]*graph.Node, []*graph.Node) {
	var stillPending []*graph.Node
	for _, n := range pending {
		delete(n.Working, dep)
		if len(n.Working) == 0 {
			ready = append(ready, n)
		} else {
			stillPending = append(stillPending, n)
		}
	}
	return stillPending, ready
}
