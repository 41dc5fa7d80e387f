package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
)

// ErrUnrepresentable is returned when a patch cannot be expressed as an
// RFC 7386 merge patch. JSON merge patches reserve null for deletion, so an
// explicit nil value has no encoding.
var ErrUnrepresentable = errors.New("value not representable in a JSON merge patch")

// DecodeMergePatch parses an RFC 7386 merge patch. null members become Delete.
// A document that is JSON null decodes to a nil Patch.
func DecodeMergePatch(data []byte) (Patch, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode merge patch: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return Patch(fromMergeDoc(doc)), nil
}

func fromMergeDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			out[k] = Delete
		case map[string]any:
			out[k] = fromMergeDoc(val)
		default:
			out[k] = val
		}
	}
	return out
}

// EncodeMergePatch renders p as an RFC 7386 merge patch. Delete becomes null.
func EncodeMergePatch(p Patch) ([]byte, error) {
	doc, err := toMergeDoc(p, nil)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode merge patch: %w", err)
	}
	return data, nil
}

func toMergeDoc(p map[string]any, path []string) (map[string]any, error) {
	out := make(map[string]any, len(p))
	for k, v := range p {
		if IsDelete(v) {
			out[k] = nil
			continue
		}
		if v == nil {
			return nil, fmt.Errorf("field %s: %w", strings.Join(append(path, k), "."), ErrUnrepresentable)
		}
		if nested, ok := AsMapping(v); ok {
			doc, err := toMergeDoc(nested, append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = doc
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Diff returns a patch that turns from into to. Both states must be JSON
// encodable. Fields holding nil in to are reported as deletions.
func Diff(from, to Map) (Patch, error) {
	original, err := json.Marshal(nonNil(from))
	if err != nil {
		return nil, fmt.Errorf("diff: encode source: %w", err)
	}
	modified, err := json.Marshal(nonNil(to))
	if err != nil {
		return nil, fmt.Errorf("diff: encode target: %w", err)
	}

	merge, err := jsonpatch.CreateMergePatch(original, modified)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	p, err := DecodeMergePatch(merge)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = Patch{}
	}
	return p, nil
}

// ApplyJSON applies p to a JSON document and returns the merged document.
func ApplyJSON(doc []byte, p Patch) ([]byte, error) {
	merge, err := EncodeMergePatch(p)
	if err != nil {
		return nil, err
	}
	out, err := jsonpatch.MergePatch(doc, merge)
	if err != nil {
		return nil, fmt.Errorf("apply merge patch: %w", err)
	}
	return out, nil
}

func nonNil(m Map) Map {
	if m == nil {
		return Map{}
	}
	return m
}
