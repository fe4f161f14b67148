package printer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashmap-kz/metanode/internal/aggregate"
	"github.com/hashmap-kz/metanode/internal/applyrun"
	"github.com/hashmap-kz/metanode/internal/graph"
	"github.com/hashmap-kz/metanode/internal/item"
	"github.com/hashmap-kz/metanode/internal/scheduler"
)

type fakeItem struct {
	id   string
	deps []string
}

func (f *fakeItem) ID() string           { return f.id }
func (f *fakeItem) StaticDeps() []string { return nil }
func (f *fakeItem) UserDeps() []string   { return f.deps }
func (f *fakeItem) Apply(context.Context, bool) (*item.Status, *item.Status, error) {
	return nil, nil, nil
}

func TestPrintResultsIncludesEachNodeAndTotal(t *testing.T) {
	var buf bytes.Buffer
	results := []applyrun.Result{
		{Node: "web1", RunID: "r1", Counts: aggregate.Counts{Correct: 2, Fixed: 1}},
		{Node: "web2", RunID: "r2", Counts: aggregate.Counts{Failed: 1}, Fatal: errors.New("boom")},
	}

	PrintResults(&buf, results)
	out := buf.String()

	assert.Contains(t, out, "web1")
	assert.Contains(t, out, "web2")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "total: 4 items across 2 node(s)")
}

func TestPrintGraphPreviewMarksSyntheticNodes(t *testing.T) {
	items := []item.Item{
		&fakeItem{id: "file:/etc/motd"},
		&fakeItem{id: "file:/etc/issue", deps: []string{"file:/etc/motd"}},
	}
	nodes, err := graph.Build(items)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintGraphPreview(&buf, nodes)
	out := buf.String()

	assert.Contains(t, out, "file:/etc/motd")
	assert.Contains(t, out, "file:/etc/issue")
	assert.Contains(t, out, "file:")
}

func status(correct bool) *item.Status { return &item.Status{Correct: correct, Fixable: true} }

func TestPrintEventGlyphsPerOutcome(t *testing.T) {
	tests := []struct {
		name string
		ev   scheduler.Event
		want string
	}{
		{"fatal", scheduler.Event{Fatal: assert.AnError}, "⟲ fatal"},
		{"task error", scheduler.Event{Result: &scheduler.Result{ID: "x:a", Err: assert.AnError}}, "⏳ x:a failed"},
		{"fixed", scheduler.Event{Result: &scheduler.Result{ID: "x:a", Before: status(false), After: status(true)}}, "⟲ x:a fixed"},
		{"correct", scheduler.Event{Result: &scheduler.Result{ID: "x:a", Before: status(true), After: status(true)}}, "✓ x:a correct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintEvent(&buf, tt.ev)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
