// Package aggregate classifies the (before, after) status pairs a
// scheduler run produces into the five-way outcome spec.md §4.G
// defines, raising InconsistentResultError on any combination that
// doesn't match one of its clauses.
package aggregate

import (
	"fmt"

	"github.com/hashmap-kz/metanode/internal/item"
	"github.com/hashmap-kz/metanode/internal/scheduler"
)

// Counts tallies every item an apply run processed. It mirrors
// ApplyResult from the original node.py: one field per outcome.
type Counts struct {
	Correct   int
	Fixed     int
	Aborted   int
	Unfixable int
	Failed    int
}

// Total returns the number of concrete items processed so far.
func (c Counts) Total() int {
	return c.Correct + c.Fixed + c.Aborted + c.Unfixable + c.Failed
}

// InconsistentResultError is raised when a status pair matches none of
// the five clauses — always an item-class bug, per spec.md §7.
type InconsistentResultError struct {
	ID     string
	Before *item.Status
	After  *item.Status
}

func (e *InconsistentResultError) Error() string {
	return fmt.Sprintf("aggregate: item %q produced an inconsistent result: before=%+v after=%+v",
		e.ID, e.Before, e.After)
}

// Accumulate folds one scheduler.Result into counts. A task failure
// (Result.Err != nil, Before/After both nil) is classified Failed
// without consulting the status-pair clauses, since there is no status
// pair to classify: the item never got to report one.
func Accumulate(counts *Counts, r *scheduler.Result) error {
	if r.Err != nil {
		counts.Failed++
		return nil
	}

	before, after := r.Before, r.After
	switch {
	case before.Correct && after.Correct:
		counts.Correct++
	case after.Aborted:
		counts.Aborted++
	case !before.Fixable || !after.Fixable:
		counts.Unfixable++
	case !before.Correct && after.Correct:
		counts.Fixed++
	case !before.Correct && !after.Correct:
		counts.Failed++
	default:
		return &InconsistentResultError{ID: r.ID, Before: before, After: after}
	}
	return nil
}

// Drain consumes every Event from ch, applying Accumulate to each
// Result and returning the first Fatal error encountered (if any)
// alongside the final Counts.
func Drain(ch <-chan scheduler.Event) (Counts, error) {
	return DrainFunc(ch, nil)
}

// DrainFunc behaves like Drain but additionally invokes onEvent with
// every Event as it arrives, before accumulation -- letting a caller
// print the per-item stream as the run progresses instead of only
// seeing the totals once the channel closes. onEvent may be nil.
func DrainFunc(ch <-chan scheduler.Event, onEvent func(scheduler.Event)) (Counts, error) {
	var counts Counts
	var fatal error
	for ev := range ch {
		if onEvent != nil {
			onEvent(ev)
		}
		if ev.Fatal != nil && fatal == nil {
			fatal = ev.Fatal
			continue
		}
		if ev.Result != nil {
			if err := Accumulate(&counts, ev.Result); err != nil && fatal == nil {
				fatal = err
			}
		}
	}
	return counts, fatal
}
