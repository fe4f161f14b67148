package metadata

import "fmt"

// PathNotFoundError is returned by ValueAtPath when a segment of the
// requested path is missing, or descends through a non-mapping.
type PathNotFoundError struct {
	Path []string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("metadata: path not found: %s", joinPath(e.Path))
}

// InvalidMetadataError is returned by Validate when a layer is not a
// well-formed metadata value rooted in a mapping of string keys.
type InvalidMetadataError struct {
	Reason string
}

func (e *InvalidMetadataError) Error() string {
	return fmt.Sprintf("metadata: invalid layer: %s", e.Reason)
}

// FrozenWriteError is returned whenever a caller attempts to mutate a
// frozen (deep-frozen) view returned from a Metastack read.
type FrozenWriteError struct {
	Kind string
}

func (e *FrozenWriteError) Error() string {
	return fmt.Sprintf("metadata: attempted write to frozen %s", e.Kind)
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
