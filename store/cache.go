package store

import (
	"context"
	"reflect"
	"time"

	"github.com/tailored-agentic-units/patchstore/observability"
	"github.com/tailored-agentic-units/patchstore/patch"
)

// CacheEntry is a token-stamped value stored under the cache field. It is
// opaque to patch merging, so writing an entry replaces the previous one.
type CacheEntry struct {
	Token any `json:"token"`
	Value any `json:"value"`
}

// GetCache returns the value cached under key when its stored token strictly
// equals token. Two nil tokens are equal.
func (s *Store) GetCache(ctx context.Context, key string, token any) (any, bool) {
	entry, ok := s.cacheEntry(key)
	hit := ok && sameToken(entry.Token, token)

	eventType := EventCacheMiss
	if hit {
		eventType = EventCacheHit
	}
	s.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    s.name,
		Data:      map[string]any{"key": key, "found": ok},
	})

	if !hit {
		return nil, false
	}
	return entry.Value, true
}

// SetCache stores value under key, stamped with token.
func (s *Store) SetCache(ctx context.Context, key string, value, token any) (patch.Map, error) {
	return s.Update(ctx, patch.Patch{
		FieldCache: patch.Patch{key: CacheEntry{Token: token, Value: value}},
	})
}

// ClearCache deletes every cache entry individually, keeping the cache
// mapping itself.
func (s *Store) ClearCache(ctx context.Context) (patch.Map, error) {
	return s.Update(ctx, patch.Patch{FieldCache: s.clearCachePatch()})
}

func (s *Store) clearCachePatch() any {
	cache, ok := patch.AsMapping(s.state[FieldCache])
	if !ok {
		return map[string]any{}
	}

	p := make(patch.Patch, len(cache))
	for key := range cache {
		p[key] = patch.Delete
	}
	return p
}

func (s *Store) cacheEntry(key string) (CacheEntry, bool) {
	cache, ok := patch.AsMapping(s.state[FieldCache])
	if !ok {
		return CacheEntry{}, false
	}

	switch e := cache[key].(type) {
	case CacheEntry:
		return e, true
	case *CacheEntry:
		if e != nil {
			return *e, true
		}
	default:
		if fields, ok := patch.AsMapping(e); ok {
			return CacheEntry{Token: fields["token"], Value: fields["value"]}, true
		}
	}
	return CacheEntry{}, false
}

// sameToken is strict equality: identical dynamic types and equal values, or
// the same reference for maps, slices, funcs, channels and pointers.
//
// Slices match when they share backing storage with the same length and
// capacity. Slices without storage of their own (zero capacity, or a
// zero-size element type) all share one address in the runtime, so they
// never match, not even themselves. Funcs compare by code pointer, so two
// closures of the same literal match.
func sameToken(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		if va.Cap() == 0 || ta.Elem().Size() == 0 {
			return false
		}
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len() && va.Cap() == vb.Cap()
	}

	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
