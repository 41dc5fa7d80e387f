// Package patch provides the sparse, mergeable change descriptions used to
// mutate store state.
//
// A Patch is a partial mapping shaped like the state it targets. Applying a
// patch walks its fields in order:
//
//   - a field set to Delete removes that field from the target
//   - a nested mapping merges recursively into a nested mapping of the same name
//   - anything else (scalars, slices, nil, or a shape mismatch) replaces the
//     target field wholesale
//
// A field that a patch does not mention is left untouched. Slices are opaque
// values: they are always replaced, never merged element-wise.
//
//	state := patch.Map{"user": map[string]any{"name": "ada", "role": "admin"}}
//	patch.Apply(state,
//	    patch.Patch{"user": patch.Patch{"role": patch.Delete}},
//	    patch.Patch{"visits": 3},
//	)
//	// state == {"user": {"name": "ada"}, "visits": 3}
//
// # JSON merge patches
//
// DecodeMergePatch and EncodeMergePatch convert between Patch and RFC 7386
// documents, where null means deletion. Diff computes the patch that turns one
// state into another.
package patch
