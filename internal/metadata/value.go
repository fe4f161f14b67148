// Package metadata implements the value-level algebra the rest of the
// core is built on: deep merge, key-path lookup and deep-freeze over
// heterogeneous trees of maps, lists and scalars.
//
// Trees are represented the same way the teacher represents its core
// domain object (Kubernetes unstructured.Unstructured wraps exactly
// map[string]interface{}): a metadata value is either a
// map[string]any, a []any, or a scalar (bool, float64, int, string,
// nil). No custom tagged-union type is introduced on top of that; Go's
// type switch already gives us the sum type spec.md's design notes ask
// for.
package metadata

// Layer is a single named contribution to a Metastack: a mapping from
// string keys to metadata values. The root must always be a mapping.
type Layer = map[string]any

// DeepMerge recursively combines overlay onto base.
//
//   - two mappings merge key by key, recursing on keys present in both
//   - two lists: overlay wins wholesale, no element-wise merge
//   - anything else (scalar vs anything, mismatched types): overlay wins
//
// The result never aliases a node of base or overlay; callers are free
// to mutate or freeze it afterwards.
func DeepMerge(base, overlay any) any {
	baseMap, baseIsMap := base.(map[string]any)
	overlayMap, overlayIsMap := overlay.(map[string]any)
	if baseIsMap && overlayIsMap {
		merged := make(map[string]any, len(baseMap)+len(overlayMap))
		for k, v := range baseMap {
			merged[k] = deepCopy(v)
		}
		for k, v := range overlayMap {
			if existing, ok := merged[k]; ok {
				merged[k] = DeepMerge(existing, v)
			} else {
				merged[k] = deepCopy(v)
			}
		}
		return merged
	}
	return deepCopy(overlay)
}

// deepCopy returns a value with no shared mutable structure with v, so
// DeepMerge never aliases a source node into its result.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return t
	}
}

// ValueAtPath descends v mapping by mapping along path, returning
// PathNotFoundError as soon as a segment is missing or the value at
// that point is not a mapping.
func ValueAtPath(v any, path []string) (any, error) {
	cur := v
	for i, segment := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &PathNotFoundError{Path: path[:i+1]}
		}
		next, ok := m[segment]
		if !ok {
			return nil, &PathNotFoundError{Path: path[:i+1]}
		}
		cur = next
	}
	return cur, nil
}

// SplitPath turns the caller-facing "a/b/c" convenience form into a
// segment slice. Already-split input is returned unchanged.
func SplitPath(path any) []string {
	switch p := path.(type) {
	case []string:
		return p
	case string:
		if p == "" {
			return nil
		}
		var segs []string
		start := 0
		for i := 0; i <= len(p); i++ {
			if i == len(p) || p[i] == '/' {
				segs = append(segs, p[start:i])
				start = i + 1
			}
		}
		return segs
	default:
		return nil
	}
}

// Validate enforces that layer is a well-formed metadata value whose
// root is a mapping with string keys, and that every nested value is
// one of the permitted shapes (mapping, list, scalar).
func Validate(layer any) error {
	root, ok := layer.(map[string]any)
	if !ok {
		return &InvalidMetadataError{Reason: "root must be a mapping"}
	}
	return validateValue(root)
}

func validateValue(v any) error {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if k == "" {
				return &InvalidMetadataError{Reason: "mapping key must be a non-empty string"}
			}
			if err := validateValue(val); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, val := range t {
			if err := validateValue(val); err != nil {
				return err
			}
		}
		return nil
	case bool, int, int64, float64, string, nil:
		return nil
	default:
		return &InvalidMetadataError{Reason: "unsupported value type in metadata tree"}
	}
}

// Equal reports whether two metadata values are structurally identical.
// Used by Metastack.SetLayer to decide whether a re-inserted layer
// actually changed.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, ok := bv[k]
			if !ok || !Equal(v, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, v := range av {
			if !Equal(v, bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
