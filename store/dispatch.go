package store

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/patchstore/modifier"
	"github.com/tailored-agentic-units/patchstore/observability"
	"github.com/tailored-agentic-units/patchstore/patch"
)

// Dispatch runs action through the reducers and then drains the actions
// queue.
//
// Execution follows this algorithm:
//  1. Invoke each reducer in registration order; resolve its sequence fully
//     and apply the patches before invoking the next reducer
//  2. Check that the actions field is still a sequence
//  3. If the queue is empty, broadcast the combined change and return
//  4. Otherwise remove the first queued action, broadcast, and repeat from
//     step 1 with the removed action
//
// Every chained action runs before Dispatch returns, and each one produces
// its own change record. Returns *DispatchError on reducer, queue or
// invariant failures.
func (s *Store) Dispatch(ctx context.Context, action Action) (patch.Map, error) {
	if err := action.Validate("Dispatch"); err != nil {
		return s.state, err
	}

	ctx, span := s.tracer.Start(ctx, "patchstore.dispatch", trace.WithAttributes(
		attribute.String("action.type", action.Type),
		attribute.String("store.name", s.name),
		attribute.String("store.id", s.id.String()),
	))
	defer span.End()

	state, path, err := s.dispatch(ctx, action, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	span.SetAttributes(
		attribute.Int("dispatch.chain_length", len(path)),
		attribute.Int64("store.generation", int64(s.generation)),
	)
	return state, nil
}

func (s *Store) dispatch(ctx context.Context, action Action, span trace.Span) (patch.Map, []string, error) {
	path := make([]string, 0, 1)

	for {
		path = append(path, action.Type)

		s.observer.OnEvent(ctx, observability.Event{
			Type:      EventDispatchStart,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    s.name,
			Data: map[string]any{
				"action":   action.Type,
				"depth":    len(path),
				"reducers": len(s.reducers),
			},
		})

		changes, err := s.reduce(ctx, action, path)
		if err != nil {
			return s.state, path, err
		}

		next, queued, err := s.dequeue(ctx, action, path)
		if err != nil {
			return s.state, path, err
		}

		if err := s.broadcast(ctx, action.Type, changes); err != nil {
			return s.state, path, &DispatchError{
				Action:  action.Type,
				Path:    slices.Clone(path),
				Reducer: -1,
				Err:     err,
			}
		}

		if !queued {
			s.observer.OnEvent(ctx, observability.Event{
				Type:      EventDispatchComplete,
				Level:     observability.LevelInfo,
				Timestamp: time.Now(),
				Source:    s.name,
				Data: map[string]any{
					"action":     path[0],
					"chain":      slices.Clone(path),
					"generation": s.generation,
				},
			})
			return s.state, path, nil
		}

		nextAction, err := ActionFrom(next)
		if err != nil {
			return s.state, path, &DispatchError{
				Action:  action.Type,
				Path:    slices.Clone(path),
				Reducer: -1,
				Err:     err,
			}
		}

		span.AddEvent(string(EventDispatchChain), trace.WithAttributes(
			attribute.String("action.from", action.Type),
			attribute.String("action.type", nextAction.Type),
			attribute.Int("dispatch.depth", len(path)+1),
		))
		s.observer.OnEvent(ctx, observability.Event{
			Type:      EventDispatchChain,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    s.name,
			Data: map[string]any{
				"from":      action.Type,
				"action":    nextAction.Type,
				"remaining": s.queueLen(),
			},
		})

		action = nextAction
	}
}

// reduce runs every reducer for action and returns the combined change.
func (s *Store) reduce(ctx context.Context, action Action, path []string) (patch.Patch, error) {
	changes := patch.Patch{}
	reducers := s.reducers

	for i, reducer := range reducers {
		patches, err := modifier.Resolve(ctx, reducer(ctx, s.state, action))
		if err != nil {
			return nil, &DispatchError{
				Action:  action.Type,
				Path:    slices.Clone(path),
				Reducer: i,
				Err:     err,
			}
		}

		patch.Apply(s.state, patches...)
		for _, p := range patches {
			changes = patch.Merge(changes, p)
		}

		s.observer.OnEvent(ctx, observability.Event{
			Type:      EventReducerResolve,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    s.name,
			Data: map[string]any{
				"action":  action.Type,
				"reducer": i,
				"patches": len(patches),
			},
		})
	}

	return changes, nil
}

// dequeue removes the first element of the actions queue. The remaining
// elements are copied into a fresh slice, so a slice supplied by a reducer is
// never modified.
func (s *Store) dequeue(ctx context.Context, action Action, path []string) (any, bool, error) {
	queue := s.state[FieldActions]

	if kind := patch.KindOf(queue); kind != patch.Sequence {
		err := fmt.Errorf("%w: field %q is a %s after reducers ran, want sequence",
			ErrInvariant, FieldActions, kind)

		s.observer.OnEvent(ctx, observability.Event{
			Type:      EventInvariant,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    s.name,
			Data: map[string]any{
				"action": action.Type,
				"field":  FieldActions,
				"kind":   kind.String(),
			},
		})

		return nil, false, &DispatchError{
			Action:  action.Type,
			Path:    slices.Clone(path),
			Reducer: -1,
			Err:     err,
		}
	}

	items, _ := Queued(s.state)
	if len(items) == 0 {
		return nil, false, nil
	}
	s.state[FieldActions] = items[1:]

	return items[0], true, nil
}

func (s *Store) queueLen() int {
	items, _ := Queued(s.state)
	return len(items)
}

// Queued returns a copy of the actions queue in state as a fresh []any. It
// accepts any slice or array type. ok is false when the field is absent or
// not a sequence.
func Queued(state patch.Map) ([]any, bool) {
	queue := state[FieldActions]
	if patch.KindOf(queue) != patch.Sequence {
		return nil, false
	}

	items := reflect.ValueOf(queue)
	out := make([]any, 0, items.Len())
	for i := range items.Len() {
		out = append(out, items.Index(i).Interface())
	}
	return out, true
}
