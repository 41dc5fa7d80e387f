package patch

// Apply merges patches into target in place, left to right, and returns
// target.
//
// A nil target yields a fresh empty Map and is not written to. nil patches are
// skipped. Nested mappings that land in target wholesale are copied with their
// deletion markers dropped, so target never aliases a patch.
func Apply(target Map, patches ...Patch) Map {
	if target == nil {
		return Map{}
	}

	for _, p := range patches {
		if p == nil {
			continue
		}
		applyMapping(target, p)
	}

	return target
}

func applyMapping(target, p map[string]any) {
	for k, v := range p {
		if IsDelete(v) {
			delete(target, k)
			continue
		}

		src, srcIsMap := AsMapping(v)
		dst, dstIsMap := AsMapping(target[k])

		switch {
		case srcIsMap && dstIsMap:
			applyMapping(dst, src)
		case srcIsMap:
			target[k] = cloneMapping(src, true)
		default:
			target[k] = v
		}
	}
}

// Merge folds src into dst and returns dst (a fresh Patch when dst is nil).
//
// The same field rules as Apply hold, except that deletion markers are kept
// as values: the result lists every field either patch touched, with later
// values winning, so it can be reported as one combined change set.
func Merge(dst, src Patch) Patch {
	if dst == nil {
		dst = Patch{}
	}
	if src == nil {
		return dst
	}

	mergeMapping(dst, src)
	return dst
}

func mergeMapping(dst, src map[string]any) {
	for k, v := range src {
		s, srcIsMap := AsMapping(v)
		d, dstIsMap := AsMapping(dst[k])

		switch {
		case srcIsMap && dstIsMap:
			mergeMapping(d, s)
		case srcIsMap:
			dst[k] = cloneMapping(s, false)
		default:
			dst[k] = v
		}
	}
}
