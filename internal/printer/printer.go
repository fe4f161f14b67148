// Package printer renders the outcome of an apply run and a
// --dry-run graph preview as terminal tables, replacing the
// ObjMetadata-width bookkeeping the teacher needed for its
// Kubernetes resource list with aquasecurity/table's own layout.
package printer

import (
	"fmt"
	"io"

	"github.com/aquasecurity/table"

	"github.com/hashmap-kz/metanode/internal/aggregate"
	"github.com/hashmap-kz/metanode/internal/applyrun"
	"github.com/hashmap-kz/metanode/internal/graph"
	"github.com/hashmap-kz/metanode/internal/scheduler"
)

// PrintEvent renders a single scheduler.Event from the per-item stream,
// using the same glyph convention as the apply log lines: ✓ for an item
// already correct, ⟲ for one the run fixed, ⏳ for one still drifted or
// aborted after the attempt.
func PrintEvent(w io.Writer, ev scheduler.Event) {
	switch {
	case ev.Fatal != nil:
		fmt.Fprintf(w, "⟲ fatal: %s\n", ev.Fatal)
	case ev.Result == nil:
		return
	case ev.Result.Err != nil:
		fmt.Fprintf(w, "⏳ %s failed: %s\n", ev.Result.ID, ev.Result.Err)
	case ev.Result.After != nil && ev.Result.After.Aborted:
		fmt.Fprintf(w, "⏳ %s aborted\n", ev.Result.ID)
	case ev.Result.Before != nil && ev.Result.After != nil && !ev.Result.Before.Correct && ev.Result.After.Correct:
		fmt.Fprintf(w, "⟲ %s fixed\n", ev.Result.ID)
	case ev.Result.After != nil && ev.Result.After.Correct:
		fmt.Fprintf(w, "✓ %s correct\n", ev.Result.ID)
	default:
		fmt.Fprintf(w, "⏳ %s still drifted\n", ev.Result.ID)
	}
}

// PrintResults renders one row per node result plus a totals line.
func PrintResults(w io.Writer, results []applyrun.Result) {
	t := table.New(w)
	t.SetHeaders("Node", "Run ID", "Correct", "Fixed", "Failed", "Aborted", "Unfixable", "Status")

	var totals aggregate.Counts
	for _, r := range results {
		status := "ok"
		if r.Fatal != nil {
			status = "fatal: " + r.Fatal.Error()
		}
		t.AddRow(
			r.Node,
			r.RunID,
			fmt.Sprintf("%d", r.Counts.Correct),
			fmt.Sprintf("%d", r.Counts.Fixed),
			fmt.Sprintf("%d", r.Counts.Failed),
			fmt.Sprintf("%d", r.Counts.Aborted),
			fmt.Sprintf("%d", r.Counts.Unfixable),
			status,
		)
		totals.Correct += r.Counts.Correct
		totals.Fixed += r.Counts.Fixed
		totals.Failed += r.Counts.Failed
		totals.Aborted += r.Counts.Aborted
		totals.Unfixable += r.Counts.Unfixable
	}

	t.Render()
	fmt.Fprintf(w, "\ntotal: %d items across %d node(s)\n", totals.Total(), len(results))
}

// PrintGraphPreview renders the resolved dependency graph for a
// --dry-run invocation: one row per item, with its static and user
// dependencies, before any command reaches the wire.
func PrintGraphPreview(w io.Writer, nodes []*graph.Node) {
	t := table.New(w)
	t.SetHeaders("Item", "Static Deps", "User Deps", "Synthetic")

	for _, n := range nodes {
		synthetic := "no"
		if graph.IsSynthetic(n.Item) {
			synthetic = "yes"
		}
		t.AddRow(
			n.Item.ID(),
			fmt.Sprintf("%v", n.Item.StaticDeps()),
			fmt.Sprintf("%v", n.Item.UserDeps()),
			synthetic,
		)
	}

	t.Render()
}
