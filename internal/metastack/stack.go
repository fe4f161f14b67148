// Package metastack implements the ordered stack of metadata layers
// described in spec.md §4.B: insertion order is significant, later
// layers override earlier ones on scalar conflict, and every composed
// read is returned as an immutable, deep-frozen snapshot so a caller
// cannot corrupt the layer stack by mutating what Get returned.
package metastack

import (
	"sync"

	"github.com/hashmap-kz/metanode/internal/metadata"
)

// KeyError is returned by GetStrict when no layer contributed a value
// at the requested path. Get falls back to its default instead.
type KeyError struct {
	Path []string
}

func (e *KeyError) Error() string {
	return "metastack: key not found: " + joinPath(e.Path)
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}

// Reader is the read-only surface of a Metastack. Item factories and
// everything downstream of the repo loader see only this interface;
// SetLayer is confined to the Metastack type itself, and only the repo
// loader calls it.
type Reader interface {
	Get(path any, def any) (metadata.Frozen, error)
	Has(path any) bool
	AsDict() map[string]any
}

// Metastack is an ordered stack of named metadata layers.
type Metastack struct {
	mu     sync.RWMutex
	order  []string
	layers map[string]metadata.Layer
}

// New returns an empty Metastack.
func New() *Metastack {
	return &Metastack{layers: make(map[string]metadata.Layer)}
}

// SetLayer validates layer and inserts or replaces it under identifier.
// A fresh identifier is appended to the end of the stack; an existing
// identifier keeps its original position. It reports whether the
// stored value actually changed.
//
// This method must not be called concurrently with Get/Has/AsDict —
// the Metastack is read-only during an apply run — and is intentionally
// unexported from the package's public Reader interface so ordinary
// item code can never reach it; only the repo loader calls it.
func (s *Metastack) SetLayer(identifier string, layer metadata.Layer) (bool, error) {
	if err := metadata.Validate(layer); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, had := s.layers[identifier]
	changed := !had || !metadata.Equal(existing, layer)
	if !had {
		s.order = append(s.order, identifier)
	}
	s.layers[identifier] = layer
	return changed, nil
}

// Get iterates layers in insertion order, merging every contribution
// found at path (earlier layers form the base, later layers overlay).
// The result is always deep-frozen. If no layer has the path, def is
// returned.
func (s *Metastack) Get(path any, def any) (metadata.Frozen, error) {
	v, err := s.get(path)
	if err != nil {
		var ke *KeyError
		if isKeyError(err, &ke) {
			return metadata.Freeze(def), nil
		}
		return nil, err
	}
	return metadata.Freeze(v), nil
}

// GetStrict behaves like Get but fails with a *KeyError instead of
// falling back to a default when no layer contributed the path.
func (s *Metastack) GetStrict(path any) (metadata.Frozen, error) {
	v, err := s.get(path)
	if err != nil {
		return nil, err
	}
	return metadata.Freeze(v), nil
}

func (s *Metastack) get(path any) (any, error) {
	segments := metadata.SplitPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result any
	undef := true
	for _, id := range s.order {
		layer := s.layers[id]
		value, err := metadata.ValueAtPath(layer, segments)
		if err != nil {
			continue
		}
		if undef {
			result = value
			undef = false
		} else {
			result = metadata.DeepMerge(result, value)
		}
	}

	if undef {
		return nil, &KeyError{Path: segments}
	}
	return result, nil
}

// Has reports whether any layer contributes a value at path.
func (s *Metastack) Has(path any) bool {
	_, err := s.get(path)
	return err == nil
}

// AsDict returns the fully composed view as a plain, non-frozen deep
// copy that the caller is free to mutate.
func (s *Metastack) AsDict() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	final := map[string]any{}
	for _, id := range s.order {
		final = metadata.DeepMerge(final, s.layers[id]).(map[string]any)
	}
	return final
}

func isKeyError(err error, target **KeyError) bool {
	ke, ok := err.(*KeyError)
	if ok {
		*target = ke
	}
	return ok
}
