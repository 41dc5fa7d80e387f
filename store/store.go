package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/patchstore/config"
	"github.com/tailored-agentic-units/patchstore/modifier"
	"github.com/tailored-agentic-units/patchstore/observability"
	"github.com/tailored-agentic-units/patchstore/patch"
)

// Reserved top-level state fields.
const (
	FieldActions = "actions"
	FieldCache   = "cache"
)

const tracerName = "github.com/tailored-agentic-units/patchstore/store"

// Reducer reacts to an action with a lazy sequence of patches. A nil
// sequence means the reducer ignores the action.
type Reducer func(ctx context.Context, state patch.Map, action Action) modifier.Sequence

// Store owns the state tree, its reducers, listeners and change history.
type Store struct {
	id    uuid.UUID
	name  string
	state patch.Map

	reducers     []Reducer
	listeners    []listenerEntry
	nextListener ListenerID

	history    history
	generation uint64

	observer         observability.Observer
	tracer           trace.Tracer
	snapshots        SnapshotStore
	snapshotInterval int
}

// Option customizes a Store during New.
type Option func(*Store) error

// WithObserver uses obs instead of resolving StoreConfig.Observer.
func WithObserver(obs observability.Observer) Option {
	return func(s *Store) error {
		if obs == nil {
			return &ArgumentError{Op: "New", Arg: "observer", Reason: "must not be nil"}
		}
		s.observer = obs
		return nil
	}
}

// WithTracerProvider creates the dispatch tracer from tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) error {
		if tp == nil {
			return &ArgumentError{Op: "New", Arg: "tracer provider", Reason: "must not be nil"}
		}
		s.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// WithSnapshotStore uses ss instead of resolving StoreConfig.Snapshot.Store.
func WithSnapshotStore(ss SnapshotStore) Option {
	return func(s *Store) error {
		s.snapshots = ss
		return nil
	}
}

// WithReducers registers the initial reducers.
func WithReducers(reducers ...Reducer) Option {
	return func(s *Store) error {
		return s.ReplaceReducers(reducers...)
	}
}

// WithInitialState applies p over the empty initial state.
func WithInitialState(p patch.Patch) Option {
	return func(s *Store) error {
		patch.Apply(s.state, p)
		if kind := patch.KindOf(s.state[FieldActions]); kind != patch.Sequence {
			return &ArgumentError{
				Op:     "New",
				Arg:    "initial state",
				Reason: fmt.Sprintf("field %q is a %s, want sequence", FieldActions, kind),
			}
		}
		return nil
	}
}

// WithSnapshot resumes from snap: its state replaces the initial state and
// the generation counter continues from snap.Generation. The store keeps its
// own ID.
func WithSnapshot(snap Snapshot) Option {
	return func(s *Store) error {
		if snap.State == nil {
			return &ArgumentError{Op: "New", Arg: "snapshot", Reason: "has no state"}
		}
		state := patch.Clone(snap.State)
		if kind := patch.KindOf(state[FieldActions]); kind != patch.Sequence {
			return &ArgumentError{
				Op:     "New",
				Arg:    "snapshot",
				Reason: fmt.Sprintf("field %q is a %s, want sequence", FieldActions, kind),
			}
		}
		s.state = state
		s.generation = snap.Generation
		return nil
	}
}

// New creates a Store from configuration. Zero config fields take their
// defaults. The observer and, when snapshots are enabled, the snapshot store
// are resolved by name through their registries unless supplied as options.
func New(cfg config.StoreConfig, opts ...Option) (*Store, error) {
	resolved := config.DefaultStoreConfig(cfg.Name)
	resolved.Merge(&cfg)

	s := &Store{
		id:   uuid.New(),
		name: resolved.Name,
		state: patch.Map{
			FieldActions: []any{},
			FieldCache:   map[string]any{},
		},
		history:          history{max: resolved.HistoryMaxSize},
		tracer:           otel.Tracer(tracerName),
		snapshotInterval: resolved.Snapshot.Interval,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.observer == nil {
		observer, err := observability.GetObservers(resolved.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		s.observer = observer
	}

	if s.snapshots == nil && s.snapshotInterval > 0 {
		snapshots, err := GetSnapshotStore(resolved.Snapshot.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve snapshot store: %w", err)
		}
		s.snapshots = snapshots
	}

	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventStoreCreate,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    s.name,
		Data: map[string]any{
			"store_id":          s.id.String(),
			"history_max_size":  s.history.max,
			"snapshot_interval": s.snapshotInterval,
			"reducers":          len(s.reducers),
		},
	})

	return s, nil
}

// ID returns the identifier assigned at construction.
func (s *Store) ID() uuid.UUID {
	return s.id
}

// Name returns the configured store name.
func (s *Store) Name() string {
	return s.name
}

// Get returns the live state. Callers must treat it as read-only.
func (s *Store) Get() patch.Map {
	return s.state
}

// GetState is an alias for Get.
func (s *Store) GetState() patch.Map {
	return s.state
}

// Generation returns the number of broadcasts so far.
func (s *Store) Generation() uint64 {
	return s.generation
}

// History returns a copy of the change records, newest first.
func (s *Store) History() []ChangeRecord {
	return s.history.list()
}

// Snapshot returns a deep copy of the current state with its generation.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		ID:         uuid.New(),
		StoreID:    s.id,
		Generation: s.generation,
		State:      patch.Clone(s.state),
		Timestamp:  time.Now(),
	}
}

// LatestSnapshot loads the last snapshot saved for this store.
func (s *Store) LatestSnapshot() (Snapshot, error) {
	if s.snapshots == nil {
		return Snapshot{}, fmt.Errorf("store %s: snapshots are disabled", s.name)
	}
	return s.snapshots.Load(s.id)
}

// SetHistoryMaxSize changes the history capacity. It applies at the next
// broadcast. Zero disables history.
func (s *Store) SetHistoryMaxSize(n int) error {
	if n < 0 {
		return &ArgumentError{Op: "SetHistoryMaxSize", Arg: "size", Reason: fmt.Sprintf("%d is negative", n)}
	}
	s.history.max = n
	return nil
}

// ReplaceReducers swaps the reducer list. Nothing changes when any reducer is
// nil.
func (s *Store) ReplaceReducers(reducers ...Reducer) error {
	for i, r := range reducers {
		if r == nil {
			return &ArgumentError{
				Op:     "ReplaceReducers",
				Arg:    fmt.Sprintf("reducer %d", i),
				Reason: "must not be nil",
			}
		}
	}

	s.reducers = append([]Reducer(nil), reducers...)
	return nil
}

// Update applies p to the state and broadcasts it as a direct change.
func (s *Store) Update(ctx context.Context, p patch.Patch) (patch.Map, error) {
	patch.Apply(s.state, p)

	s.observer.OnEvent(ctx, observability.Event{
		Type:      EventStoreUpdate,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    s.name,
		Data:      map[string]any{"fields": len(p)},
	})

	return s.state, s.broadcast(ctx, "", patch.Merge(nil, p))
}

// Clear resets actions to an empty queue, deletes each cache entry while
// keeping the cache mapping, and deletes every other top-level field.
func (s *Store) Clear(ctx context.Context) (patch.Map, error) {
	p := patch.Patch{
		FieldActions: []any{},
		FieldCache:   s.clearCachePatch(),
	}
	for field := range s.state {
		if field == FieldActions || field == FieldCache {
			continue
		}
		p[field] = patch.Delete
	}

	return s.Update(ctx, p)
}

// broadcast records the change, saves a snapshot when one is due, and
// notifies listeners in registration order.
func (s *Store) broadcast(ctx context.Context, action string, changes patch.Patch) error {
	s.generation++
	record := ChangeRecord{
		ID:         uuid.New(),
		Action:     action,
		Changes:    changes,
		Generation: s.generation,
		Timestamp:  time.Now(),
	}

	if evicted := s.history.push(record); evicted > 0 {
		s.observer.OnEvent(ctx, observability.Event{
			Type:      EventHistoryEvict,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    s.name,
			Data:      map[string]any{"evicted": evicted, "max": s.history.max},
		})
	}

	s.observer.OnEvent(ctx, observability.Event{
		Type:      EventBroadcast,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    s.name,
		Data: map[string]any{
			"action":     action,
			"generation": s.generation,
			"change_id":  record.ID.String(),
			"listeners":  len(s.listeners),
		},
	})

	if err := s.saveSnapshot(ctx); err != nil {
		return err
	}

	listeners := append([]listenerEntry(nil), s.listeners...)
	for i, l := range listeners {
		if err := l.fn(ctx, s.state, record); err != nil {
			s.observer.OnEvent(ctx, observability.Event{
				Type:      EventListenerError,
				Level:     observability.LevelError,
				Timestamp: time.Now(),
				Source:    s.name,
				Data:      map[string]any{"index": i, "error": err.Error()},
			})
			return &ListenerError{Index: i, Err: err}
		}
	}

	return nil
}

func (s *Store) saveSnapshot(ctx context.Context) error {
	if s.snapshots == nil || s.snapshotInterval <= 0 || s.generation%uint64(s.snapshotInterval) != 0 {
		return nil
	}

	snap := s.Snapshot()
	if err := s.snapshots.Save(snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.observer.OnEvent(ctx, observability.Event{
		Type:      EventSnapshotSave,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    s.name,
		Data: map[string]any{
			"snapshot_id": snap.ID.String(),
			"generation":  snap.Generation,
		},
	})
	return nil
}
