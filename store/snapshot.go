package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/patchstore/patch"
)

// Snapshot is a deep copy of store state at one generation. Later mutations
// of the live state do not reach it.
type Snapshot struct {
	ID         uuid.UUID `json:"id"`
	StoreID    uuid.UUID `json:"store_id"`
	Generation uint64    `json:"generation"`
	State      patch.Map `json:"state"`
	Timestamp  time.Time `json:"timestamp"`
}

// SnapshotStore keeps snapshots saved during broadcasts.
//
// Snapshots are keyed by store ID; saving replaces the previous snapshot of
// the same store. Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save stores snap under snap.StoreID.
	Save(snap Snapshot) error

	// Load returns the latest snapshot of storeID.
	// Returns error if none was saved.
	Load(storeID uuid.UUID) (Snapshot, error)
}

type memorySnapshotStore struct {
	snapshots map[uuid.UUID]Snapshot
	mu        sync.RWMutex
}

// NewMemorySnapshotStore creates a SnapshotStore backed by a map. Snapshots
// are lost when the process exits.
func NewMemorySnapshotStore() SnapshotStore {
	return &memorySnapshotStore{
		snapshots: make(map[uuid.UUID]Snapshot),
	}
}

func (m *memorySnapshotStore) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[snap.StoreID] = snap
	return nil
}

func (m *memorySnapshotStore) Load(storeID uuid.UUID) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, exists := m.snapshots[storeID]
	if !exists {
		return Snapshot{}, fmt.Errorf("snapshot not found: %s", storeID)
	}
	return snap, nil
}

// snapshotStores is the registry of named SnapshotStore implementations.
// "memory" is registered by default.
var (
	snapshotStores = map[string]SnapshotStore{
		"memory": NewMemorySnapshotStore(),
	}
	mutex sync.RWMutex
)

// GetSnapshotStore retrieves a SnapshotStore by name from the registry.
//
// New calls this when StoreConfig.Snapshot.Interval is positive.
func GetSnapshotStore(name string) (SnapshotStore, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	store, exists := snapshotStores[name]
	if !exists {
		return nil, fmt.Errorf("unknown snapshot store: %s", name)
	}
	return store, nil
}

// RegisterSnapshotStore adds a named SnapshotStore to the registry.
//
// Example:
//
//	store.RegisterSnapshotStore("audit", auditStore)
//
//	cfg := config.DefaultStoreConfig("cart")
//	cfg.Snapshot.Store = "audit"
//	cfg.Snapshot.Interval = 10
func RegisterSnapshotStore(name string, store SnapshotStore) {
	mutex.Lock()
	defer mutex.Unlock()

	snapshotStores[name] = store
}
