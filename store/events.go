package store

import "github.com/tailored-agentic-units/patchstore/observability"

const (
	// Store lifecycle
	EventStoreCreate observability.EventType = "store.create"
	EventStoreUpdate observability.EventType = "store.update"

	// Dispatch
	EventDispatchStart    observability.EventType = "store.dispatch.start"
	EventReducerResolve   observability.EventType = "store.reducer.resolve"
	EventDispatchChain    observability.EventType = "store.dispatch.chain"
	EventDispatchComplete observability.EventType = "store.dispatch.complete"
	EventInvariant        observability.EventType = "store.invariant"

	// Broadcast
	EventBroadcast     observability.EventType = "store.broadcast"
	EventHistoryEvict  observability.EventType = "store.history.evict"
	EventListenerError observability.EventType = "store.listener.error"

	// Cache
	EventCacheHit  observability.EventType = "store.cache.hit"
	EventCacheMiss observability.EventType = "store.cache.miss"

	// Snapshots
	EventSnapshotSave observability.EventType = "store.snapshot.save"
)
