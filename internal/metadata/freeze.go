package metadata

// Frozen is a structurally immutable snapshot of a metadata value.
// Mappings and lists become read-only variants whose mutating methods
// always fail with FrozenWriteError; scalars are returned as-is since
// they are already immutable in Go.
type Frozen interface {
	// Unwrap returns a deep, ordinary Go copy of the frozen value
	// (maps/slices the caller may freely mutate) without disturbing the
	// frozen original.
	Unwrap() any
}

// FrozenMap is the read-only mapping variant of Frozen.
type FrozenMap struct {
	m map[string]Frozen
}

// Get returns the frozen child at key, if present.
func (f FrozenMap) Get(key string) (Frozen, bool) {
	v, ok := f.m[key]
	return v, ok
}

// Keys returns the mapping's keys in no particular order.
func (f FrozenMap) Keys() []string {
	keys := make([]string, 0, len(f.m))
	for k := range f.m {
		keys = append(keys, k)
	}
	return keys
}

// Set always fails: a FrozenMap cannot be mutated.
func (f FrozenMap) Set(string, Frozen) error {
	return &FrozenWriteError{Kind: "mapping"}
}

func (f FrozenMap) Unwrap() any {
	out := make(map[string]any, len(f.m))
	for k, v := range f.m {
		out[k] = v.Unwrap()
	}
	return out
}

// FrozenList is the read-only sequence variant of Frozen.
type FrozenList struct {
	s []Frozen
}

// At returns the frozen element at index i.
func (f FrozenList) At(i int) Frozen { return f.s[i] }

// Len returns the number of elements.
func (f FrozenList) Len() int { return len(f.s) }

// Set always fails: a FrozenList cannot be mutated.
func (f FrozenList) Set(int, Frozen) error {
	return &FrozenWriteError{Kind: "list"}
}

func (f FrozenList) Unwrap() any {
	out := make([]any, len(f.s))
	for i, v := range f.s {
		out[i] = v.Unwrap()
	}
	return out
}

// FrozenScalar wraps a leaf value (bool, number, string, nil).
type FrozenScalar struct {
	v any
}

// Value returns the wrapped scalar.
func (f FrozenScalar) Value() any { return f.v }

// Set always fails: a FrozenScalar cannot be mutated.
func (f FrozenScalar) Set(any) error {
	return &FrozenWriteError{Kind: "scalar"}
}

func (f FrozenScalar) Unwrap() any { return f.v }

// Freeze returns a deep-frozen snapshot of v. No node of v is aliased
// into the result, so subsequent mutation of v does not affect the
// frozen view and vice versa (mutation of the frozen view is simply
// impossible: there is no exported way to reach its backing storage).
func Freeze(v any) Frozen {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]Frozen, len(t))
		for k, val := range t {
			m[k] = Freeze(val)
		}
		return FrozenMap{m: m}
	case []any:
		s := make([]Frozen, len(t))
		for i, val := range t {
			s[i] = Freeze(val)
		}
		return FrozenList{s: s}
	default:
		return FrozenScalar{v: t}
	}
}
