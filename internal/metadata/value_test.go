package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMergeMappingsRecurse(t *testing.T) {
	base := map[string]any{
		"a": map[string]any{"x": 1, "y": 2},
		"b": "base",
	}
	overlay := map[string]any{
		"a": map[string]any{"y": 9},
	}
	merged := DeepMerge(base, overlay)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"x": 1, "y": 9},
		"b": "base",
	}, merged)
}

func TestDeepMergeListsOverlayWins(t *testing.T) {
	base := []any{1, 2, 3}
	overlay := []any{9}
	assert.Equal(t, []any{9}, DeepMerge(base, overlay))
}

func TestDeepMergeScalarOverlayWins(t *testing.T) {
	assert.Equal(t, "new", DeepMerge("old", "new"))
	assert.Equal(t, "new", DeepMerge(map[string]any{"x": 1}, "new"))
}

func TestDeepMergeDoesNotAliasInputs(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1}}
	overlay := map[string]any{"b": 2}
	merged := DeepMerge(base, overlay).(map[string]any)
	merged["a"].(map[string]any)["x"] = 999
	assert.Equal(t, 1, base["a"].(map[string]any)["x"])
}

func TestDeepMergeEmptyOverlayIsIdentity(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1}}
	merged := DeepMerge(base, map[string]any{})
	assert.True(t, Equal(base, merged))
}

func TestDeepMergeDisjointKeysInsertsThem(t *testing.T) {
	base := map[string]any{"a": 1}
	overlay := map[string]any{"b": 2}
	merged := DeepMerge(base, overlay)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged)
}

func TestValueAtPath(t *testing.T) {
	v := map[string]any{"a": map[string]any{"b": map[string]any{"c": 42}}}

	got, err := ValueAtPath(v, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = ValueAtPath(v, []string{"a", "nope"})
	var pnf *PathNotFoundError
	assert.ErrorAs(t, err, &pnf)

	_, err = ValueAtPath(v, []string{"a", "b", "c", "d"})
	assert.ErrorAs(t, err, &pnf)
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitPath("a/b"))
	assert.Equal(t, []string{"a", "b"}, SplitPath([]string{"a", "b"}))
	assert.Nil(t, SplitPath(""))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(map[string]any{"a": []any{1, "x", nil}}))

	err := Validate([]any{1, 2})
	var ime *InvalidMetadataError
	assert.ErrorAs(t, err, &ime)

	err = Validate(map[string]any{"a": make(chan int)})
	assert.ErrorAs(t, err, &ime)
}

func TestFreezeRoundTrip(t *testing.T) {
	v := map[string]any{"a": []any{1, map[string]any{"b": "c"}}}
	frozen := Freeze(v)
	assert.Equal(t, v, frozen.Unwrap())
}

func TestFreezeRejectsMutation(t *testing.T) {
	frozen := Freeze(map[string]any{"a": 1}).(FrozenMap)
	err := frozen.Set("a", FrozenScalar{})
	var fw *FrozenWriteError
	assert.ErrorAs(t, err, &fw)

	list := Freeze([]any{1, 2}).(FrozenList)
	err = list.Set(0, FrozenScalar{})
	assert.ErrorAs(t, err, &fw)

	scalar := Freeze(5).(FrozenScalar)
	err = scalar.Set(6)
	assert.ErrorAs(t, err, &fw)
}

func TestFreezeDeepMergeIdentity(t *testing.T) {
	x := map[string]any{"a": map[string]any{"x": 1}}
	merged := DeepMerge(x, map[string]any{})
	assert.Equal(t, Freeze(x).Unwrap(), Freeze(merged).Unwrap())
}
