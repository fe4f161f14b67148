package aggregate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashmap-kz/metanode/internal/item"
	"github.com/hashmap-kz/metanode/internal/scheduler"
)

func status(correct, fixable, aborted bool) *item.Status {
	return &item.Status{Correct: correct, Fixable: fixable, Aborted: aborted}
}

func TestAccumulateClassifications(t *testing.T) {
	tests := []struct {
		name           string
		before, after  *item.Status
		expectField    func(Counts) int
	}{
		{"correct", status(true, true, false), status(true, true, false), func(c Counts) int { return c.Correct }},
		{"fixed", status(false, true, false), status(true, true, false), func(c Counts) int { return c.Fixed }},
		{"failed", status(false, true, false), status(false, true, false), func(c Counts) int { return c.Failed }},
		{"aborted", status(false, true, false), status(false, true, true), func(c Counts) int { return c.Aborted }},
		{"unfixable before", status(false, false, false), status(false, true, false), func(c Counts) int { return c.Unfixable }},
		{"unfixable after", status(false, true, false), status(false, false, false), func(c Counts) int { return c.Unfixable }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var counts Counts
			err := Accumulate(&counts, &scheduler.Result{ID: "x:x", Before: tt.before, After: tt.after})
			require.NoError(t, err)
			assert.Equal(t, 1, tt.expectField(counts))
			assert.Equal(t, 1, counts.Total())
		})
	}
}

func TestAccumulateAbortedPrecedesUnfixable(t *testing.T) {
	// after.Aborted is true AND after.Fixable is false: aborted wins
	// because it is listed first.
	var counts Counts
	err := Accumulate(&counts, &scheduler.Result{
		ID:     "x:x",
		Before: status(false, true, false),
		After:  status(false, false, true),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Aborted)
	assert.Equal(t, 0, counts.Unfixable)
}

func TestAccumulateInconsistentResult(t *testing.T) {
	// before.Correct=true, after.Correct=false, nothing aborted/unfixable:
	// no clause matches.
	var counts Counts
	err := Accumulate(&counts, &scheduler.Result{
		ID:     "x:x",
		Before: status(true, true, false),
		After:  status(false, true, false),
	})
	var ire *InconsistentResultError
	require.ErrorAs(t, err, &ire)
	assert.Equal(t, "x:x", ire.ID)
}

func TestAccumulateTaskFailureCountsAsFailed(t *testing.T) {
	var counts Counts
	err := Accumulate(&counts, &scheduler.Result{ID: "x:x", Err: errors.New("boom")})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Failed)
}

func TestDrainSumsToTotalAndSurfacesFatal(t *testing.T) {
	ch := make(chan scheduler.Event, 3)
	ch <- scheduler.Event{Result: &scheduler.Result{ID: "x:a", Before: status(true, true, false), After: status(true, true, false)}}
	ch <- scheduler.Event{Result: &scheduler.Result{ID: "x:b", Before: status(false, true, false), After: status(true, true, false)}}
	ch <- scheduler.Event{Fatal: errors.New("stop")}
	close(ch)

	counts, err := Drain(ch)
	require.Error(t, err)
	assert.Equal(t, 2, counts.Total())
}

func TestDrainFuncInvokesOnEventForEveryEvent(t *testing.T) {
	ch := make(chan scheduler.Event, 2)
	ch <- scheduler.Event{Result: &scheduler.Result{ID: "x:a", Before: status(true, true, false), After: status(true, true, false)}}
	ch <- scheduler.Event{Fatal: errors.New("stop")}
	close(ch)

	var seen []scheduler.Event
	counts, err := DrainFunc(ch, func(ev scheduler.Event) { seen = append(seen, ev) })
	require.Error(t, err)
	assert.Equal(t, 1, counts.Total())
	require.Len(t, seen, 2)
	assert.Equal(t, "x:a", seen[0].Result.ID)
	assert.EqualError(t, seen[1].Fatal, "stop")
}
