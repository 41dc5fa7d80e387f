package patch

import (
	"context"
	"reflect"
)

// Map is a mutable state tree: field name to arbitrary value. Nested
// mappings inside a Map are map[string]any.
type Map map[string]any

// Patch is a partial Map describing intended changes.
type Patch map[string]any

// Resolve returns p itself. It lets an already computed Patch stand in
// wherever a lazily computed modifier is accepted.
func (p Patch) Resolve(ctx context.Context) (Patch, error) {
	return p, nil
}

type deletion struct{}

func (deletion) String() string { return "<delete>" }

// Delete marks a field for removal. It is distinct from a field being absent
// from a patch, which leaves the target field untouched.
var Delete any = deletion{}

// IsDelete reports whether v is the deletion marker.
func IsDelete(v any) bool {
	_, ok := v.(deletion)
	return ok
}

// Kind classifies a patch or state value for merging.
type Kind int

const (
	// Scalar covers every value that is not one of the other kinds, nil included.
	Scalar Kind = iota
	// Sequence is a slice or array. Sequences are replaced wholesale.
	Sequence
	// Mapping is a nested string-keyed mapping that merges recursively.
	Mapping
	// Deletion is the Delete marker.
	Deletion
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	case Deletion:
		return "deletion"
	default:
		return "unknown"
	}
}

// KindOf classifies v. Only Map, Patch and map[string]any count as nested
// mappings; other map types are opaque scalars.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return Scalar
	case deletion:
		return Deletion
	case Map, Patch, map[string]any:
		return Mapping
	case []any, []string, []Patch, []Map, []map[string]any:
		return Sequence
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return Sequence
	}
	return Scalar
}

// AsMapping returns the underlying map of a Mapping value. It reports false
// for every other kind, nil maps included.
func AsMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Map:
		return m, m != nil
	case Patch:
		return m, m != nil
	case map[string]any:
		return m, m != nil
	}
	return nil, false
}

// Clone deep-copies every nested mapping of m. Sequences and scalars are
// shared.
func Clone(m Map) Map {
	if m == nil {
		return nil
	}
	return Map(cloneMapping(m, false))
}

// cloneMapping copies src recursively. When materialize is set, deletion
// markers are dropped so the result can be stored as state.
func cloneMapping(src map[string]any, materialize bool) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if materialize && IsDelete(v) {
			continue
		}
		if nested, ok := AsMapping(v); ok {
			dst[k] = cloneMapping(nested, materialize)
			continue
		}
		dst[k] = v
	}
	return dst
}
