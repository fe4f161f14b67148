// Package item defines the narrow capability interface the scheduler
// depends on (spec.md §4.C, §6). Item-class implementations (file,
// package, user, ...) are collaborators that satisfy this interface;
// the scheduler never knows about any concrete type.
package item

import "context"

// Status is the before/after snapshot an item emits from Apply.
type Status struct {
	Correct bool
	Fixable bool
	Aborted bool
	// Info carries free-form diagnostics (e.g. stat output, stderr) for
	// logging and for item-class-specific reporting. Never inspected by
	// the scheduler or aggregator.
	Info map[string]any
}

// Item is the capability set every configuration unit satisfies.
//
// ID returns the canonical "type:name" identifier. StaticDeps and
// UserDeps return, respectively, the item's built-in and
// configuration-declared dependencies; the graph builder unions them
// into a working set it owns and mutates, so Item implementations must
// treat both slices as immutable once constructed.
//
// Apply performs the reconciliation. Synthetic items (type-group nodes
// built by the graph package) return (nil, nil, nil); real items
// always return a non-nil pair. interactive=true permits the item to
// prompt on stdio; the scheduler guarantees a pool of size 1 whenever
// interactive is true.
type Item interface {
	ID() string
	StaticDeps() []string
	UserDeps() []string
	Apply(ctx context.Context, interactive bool) (before, after *Status, err error)
}
