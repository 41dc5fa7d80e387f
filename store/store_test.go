package store_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/patchstore/config"
	"github.com/tailored-agentic-units/patchstore/modifier"
	"github.com/tailored-agentic-units/patchstore/observability"
	"github.com/tailored-agentic-units/patchstore/patch"
	"github.com/tailored-agentic-units/patchstore/store"
)

type recordingObserver struct {
	events []observability.Event
}

func (r *recordingObserver) OnEvent(ctx context.Context, event observability.Event) {
	r.events = append(r.events, event)
}

func (r *recordingObserver) types() []observability.EventType {
	types := make([]observability.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func testConfig() config.StoreConfig {
	cfg := config.DefaultStoreConfig("test")
	cfg.Observer = "noop"
	return cfg
}

func newTestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.New(testConfig(), opts...)
	require.NoError(t, err)
	return s
}

// on builds a reducer that answers actions of one type with a single patch.
func on(actionType string, fn func(state patch.Map, a store.Action) patch.Patch) store.Reducer {
	return func(ctx context.Context, state patch.Map, a store.Action) modifier.Sequence {
		if a.Type != actionType {
			return nil
		}
		return modifier.Patches(fn(state, a))
	}
}

func TestNew_InitialState(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, patch.Map{"actions": []any{}, "cache": map[string]any{}}, s.Get())
	assert.NotEqual(t, uuid.Nil, s.ID())
	assert.Equal(t, "test", s.Name())
	assert.Zero(t, s.Generation())
	assert.Empty(t, s.History())
}

func TestNew_ZeroConfigUsesDefaults(t *testing.T) {
	s, err := store.New(config.StoreConfig{Observer: "noop"})
	require.NoError(t, err)

	for i := range 12 {
		_, err := s.Update(context.Background(), patch.Patch{"n": i})
		require.NoError(t, err)
	}
	assert.Len(t, s.History(), 10)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func() config.StoreConfig
		opts    []store.Option
		wantArg bool
	}{
		{
			name: "unknown observer",
			cfg: func() config.StoreConfig {
				cfg := testConfig()
				cfg.Observer = "missing"
				return cfg
			},
		},
		{
			name: "unknown snapshot store",
			cfg: func() config.StoreConfig {
				cfg := testConfig()
				cfg.Snapshot = config.SnapshotConfig{Store: "missing", Interval: 1}
				return cfg
			},
		},
		{
			name:    "nil reducer",
			cfg:     testConfig,
			opts:    []store.Option{store.WithReducers(nil)},
			wantArg: true,
		},
		{
			name:    "nil observer",
			cfg:     testConfig,
			opts:    []store.Option{store.WithObserver(nil)},
			wantArg: true,
		},
		{
			name:    "initial actions not a sequence",
			cfg:     testConfig,
			opts:    []store.Option{store.WithInitialState(patch.Patch{"actions": "nope"})},
			wantArg: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.New(tt.cfg(), tt.opts...)
			require.Error(t, err)
			assert.Equal(t, tt.wantArg, errors.Is(err, store.ErrInvalidArgument))
		})
	}
}

func TestNew_InitialStateOption(t *testing.T) {
	s := newTestStore(t, store.WithInitialState(patch.Patch{"user": patch.Patch{"name": "ada"}}))

	assert.Equal(t, patch.Map{
		"actions": []any{},
		"cache":   map[string]any{},
		"user":    map[string]any{"name": "ada"},
	}, s.Get())
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)

	state, err := s.Update(context.Background(), patch.Patch{"a": 1, "n": patch.Patch{"b": 2}})
	require.NoError(t, err)

	assert.Equal(t, 1, state["a"])
	assert.Equal(t, map[string]any{"b": 2}, state["n"])

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "", history[0].Action)
	assert.Equal(t, patch.Patch{"a": 1, "n": map[string]any{"b": 2}}, history[0].Changes)
	assert.Equal(t, uint64(1), history[0].Generation)
	assert.Equal(t, uint64(1), s.Generation())
}

func TestUpdate_NilValueIsNotDeletion(t *testing.T) {
	s := newTestStore(t, store.WithInitialState(patch.Patch{"a": "x"}))

	state, err := s.Update(context.Background(), patch.Patch{"a": nil})
	require.NoError(t, err)

	value, exists := state["a"]
	assert.True(t, exists)
	assert.Nil(t, value)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.WithInitialState(patch.Patch{
		"foo":     "bar",
		"nested":  patch.Patch{"x": 1},
		"actions": []any{store.Action{Type: "PENDING"}},
	}))
	_, err := s.SetCache(ctx, "a", 1, nil)
	require.NoError(t, err)
	_, err = s.SetCache(ctx, "b", 2, "tok")
	require.NoError(t, err)

	state, err := s.Clear(ctx)
	require.NoError(t, err)

	assert.Equal(t, patch.Map{"actions": []any{}, "cache": map[string]any{}}, state)

	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, patch.Patch{
		"actions": []any{},
		"cache":   map[string]any{"a": patch.Delete, "b": patch.Delete},
		"foo":     patch.Delete,
		"nested":  patch.Delete,
	}, history[0].Changes)
}

func TestClear_ReplacesNonMappingCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Update(ctx, patch.Patch{"cache": "junk"})
	require.NoError(t, err)

	state, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, state["cache"])
}

func TestClear_RestoresMissingCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Update(ctx, patch.Patch{"cache": patch.Delete})
	require.NoError(t, err)

	state, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, patch.Map{"actions": []any{}, "cache": map[string]any{}}, state)
}

func TestHistory_Bounded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SetHistoryMaxSize(2))

	for i := 1; i <= 3; i++ {
		_, err := s.Update(ctx, patch.Patch{"n": i})
		require.NoError(t, err)
	}

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, patch.Patch{"n": 3}, history[0].Changes)
	assert.Equal(t, patch.Patch{"n": 2}, history[1].Changes)
}

func TestHistory_ResizeAppliesOnNextBroadcast(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := range 3 {
		_, err := s.Update(ctx, patch.Patch{"n": i})
		require.NoError(t, err)
	}

	require.NoError(t, s.SetHistoryMaxSize(1))
	assert.Len(t, s.History(), 3)

	_, err := s.Update(ctx, patch.Patch{"n": 99})
	require.NoError(t, err)
	require.Len(t, s.History(), 1)
	assert.Equal(t, patch.Patch{"n": 99}, s.History()[0].Changes)

	require.NoError(t, s.SetHistoryMaxSize(0))
	_, err = s.Update(ctx, patch.Patch{"n": 100})
	require.NoError(t, err)
	assert.Empty(t, s.History())
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(context.Background(), patch.Patch{"a": 1})
	require.NoError(t, err)

	history := s.History()
	history[0].Action = "tampered"

	assert.Equal(t, "", s.History()[0].Action)
}

func TestSetHistoryMaxSize_RejectsNegative(t *testing.T) {
	s := newTestStore(t)

	err := s.SetHistoryMaxSize(-1)

	var argErr *store.ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "SetHistoryMaxSize", argErr.Op)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestReplaceReducers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.WithReducers(on("SET", func(_ patch.Map, a store.Action) patch.Patch {
		return patch.Patch{"by": "first"}
	})))

	err := s.ReplaceReducers(on("SET", func(_ patch.Map, a store.Action) patch.Patch {
		return patch.Patch{"by": "second"}
	}), nil)
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	state, err := s.Dispatch(ctx, store.Action{Type: "SET"})
	require.NoError(t, err)
	assert.Equal(t, "first", state["by"], "failed replacement must keep the old reducers")

	require.NoError(t, s.ReplaceReducers(on("SET", func(_ patch.Map, a store.Action) patch.Patch {
		return patch.Patch{"by": "second"}
	})))
	state, err = s.Dispatch(ctx, store.Action{Type: "SET"})
	require.NoError(t, err)
	assert.Equal(t, "second", state["by"])
}

func TestListeners(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var calls []string
	var seenState patch.Map
	first, err := s.AddStorageListener(func(ctx context.Context, state patch.Map, change store.ChangeRecord) error {
		calls = append(calls, "first:"+change.Action)
		seenState = state
		return nil
	})
	require.NoError(t, err)
	_, err = s.AddStorageListener(func(ctx context.Context, state patch.Map, change store.ChangeRecord) error {
		calls = append(calls, "second:"+change.Action)
		return nil
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, patch.Patch{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:", "second:"}, calls)
	assert.Equal(t, reflect.ValueOf(s.Get()).Pointer(), reflect.ValueOf(seenState).Pointer(),
		"listeners receive the live state")

	s.RemoveStorageListener(first)
	s.RemoveStorageListener(store.ListenerID(9999))

	calls = nil
	_, err = s.Update(ctx, patch.Patch{"a": 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"second:"}, calls)
}

func TestAddStorageListener_RejectsNil(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddStorageListener(nil)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestListenerError_StopsBroadcast(t *testing.T) {
	ctx := context.Background()
	errListener := errors.New("listener failed")
	s := newTestStore(t)

	laterCalled := false
	_, err := s.AddStorageListener(func(ctx context.Context, state patch.Map, change store.ChangeRecord) error {
		return errListener
	})
	require.NoError(t, err)
	_, err = s.AddStorageListener(func(ctx context.Context, state patch.Map, change store.ChangeRecord) error {
		laterCalled = true
		return nil
	})
	require.NoError(t, err)

	state, err := s.Update(ctx, patch.Patch{"a": 1})

	var listenerErr *store.ListenerError
	require.ErrorAs(t, err, &listenerErr)
	assert.Equal(t, 0, listenerErr.Index)
	assert.ErrorIs(t, err, errListener)
	assert.False(t, laterCalled)
	assert.Equal(t, 1, state["a"], "the change is applied before listeners run")
	assert.Len(t, s.History(), 1)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.WithInitialState(patch.Patch{"n": patch.Patch{"a": 1}}))

	snap := s.Snapshot()
	_, err := s.Update(ctx, patch.Patch{"n": patch.Patch{"a": 2}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 1}, snap.State["n"])
	assert.Equal(t, uint64(0), snap.Generation)
	assert.Equal(t, s.ID(), snap.StoreID)
	assert.Equal(t, uint64(1), s.Snapshot().Generation)
}

func TestSnapshot_SavedEveryInterval(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemorySnapshotStore()

	cfg := testConfig()
	cfg.Snapshot.Interval = 2
	s, err := store.New(cfg, store.WithSnapshotStore(snapshots))
	require.NoError(t, err)

	_, err = s.Update(ctx, patch.Patch{"n": 1})
	require.NoError(t, err)
	_, err = snapshots.Load(s.ID())
	require.Error(t, err, "no snapshot before the first interval")

	for i := 2; i <= 3; i++ {
		_, err = s.Update(ctx, patch.Patch{"n": i})
		require.NoError(t, err)
	}

	snap, err := snapshots.Load(s.ID())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Equal(t, 2, snap.State["n"])

	latest, err := s.LatestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.ID, latest.ID)
}

func TestLatestSnapshot_Disabled(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LatestSnapshot()
	assert.ErrorContains(t, err, "snapshots are disabled")
}

func TestWithSnapshot_Resumes(t *testing.T) {
	ctx := context.Background()
	source := newTestStore(t)
	_, err := source.Update(ctx, patch.Patch{"n": patch.Patch{"a": 1}})
	require.NoError(t, err)
	_, err = source.SetCache(ctx, "k", "v", "t1")
	require.NoError(t, err)
	snap := source.Snapshot()

	s := newTestStore(t, store.WithSnapshot(snap))
	assert.NotEqual(t, source.ID(), s.ID())
	assert.Equal(t, uint64(2), s.Generation())
	assert.Equal(t, map[string]any{"a": 1}, s.Get()["n"])

	value, ok := s.GetCache(ctx, "k", "t1")
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	_, err = s.Update(ctx, patch.Patch{"n": patch.Patch{"a": 2}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, snap.State["n"], "resumed store does not share the snapshot state")
	assert.Equal(t, uint64(3), s.History()[0].Generation)
}

func TestWithSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name string
		snap store.Snapshot
	}{
		{name: "no state", snap: store.Snapshot{}},
		{name: "actions not a sequence", snap: store.Snapshot{State: patch.Map{"actions": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.New(testConfig(), store.WithSnapshot(tt.snap))
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}
}

func TestSnapshotStore_Registry(t *testing.T) {
	custom := store.NewMemorySnapshotStore()
	store.RegisterSnapshotStore("test-registry", custom)

	got, err := store.GetSnapshotStore("test-registry")
	require.NoError(t, err)
	assert.Same(t, custom, got)

	_, err = store.GetSnapshotStore("missing")
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Snapshot = config.SnapshotConfig{Store: "test-registry", Interval: 1}
	s, err := store.New(cfg)
	require.NoError(t, err)

	_, err = s.Update(context.Background(), patch.Patch{"a": 1})
	require.NoError(t, err)

	snap, err := custom.Load(s.ID())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestObserver_UpdateEvents(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStore(t, store.WithObserver(obs))
	require.NoError(t, s.SetHistoryMaxSize(1))

	obs.events = nil
	ctx := context.Background()
	_, err := s.Update(ctx, patch.Patch{"a": 1})
	require.NoError(t, err)
	_, err = s.Update(ctx, patch.Patch{"a": 2})
	require.NoError(t, err)

	assert.Equal(t, []observability.EventType{
		store.EventStoreUpdate,
		store.EventBroadcast,
		store.EventStoreUpdate,
		store.EventHistoryEvict,
		store.EventBroadcast,
	}, obs.types())
	assert.Equal(t, "test", obs.events[0].Source)
}
