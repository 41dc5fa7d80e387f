package config

const defaultHistoryMaxSize = 10

// SnapshotConfig controls periodic snapshots of store state.
type SnapshotConfig struct {
	// Store identifies which SnapshotStore to use (resolved via registry).
	Store string `json:"store" yaml:"store" toml:"store" env:"STORE"`

	// Interval saves a snapshot every N broadcasts (0 = disabled).
	Interval int `json:"interval" yaml:"interval" toml:"interval" env:"INTERVAL"`
}

// DefaultSnapshotConfig returns snapshot configuration with snapshots disabled.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Store:    "memory",
		Interval: 0,
	}
}

func (c *SnapshotConfig) Merge(source *SnapshotConfig) {
	if source.Store != "" {
		c.Store = source.Store
	}

	if source.Interval > 0 {
		c.Interval = source.Interval
	}
}

// StoreConfig defines configuration for a Store instance.
//
// Example JSON:
//
//	{
//	  "name": "checkout",
//	  "observer": "slog",
//	  "history_max_size": 25,
//	  "snapshot": {
//	    "store": "memory",
//	    "interval": 5
//	  }
//	}
type StoreConfig struct {
	// Name identifies the store in events and spans.
	Name string `json:"name" yaml:"name" toml:"name" env:"NAME"`

	// Observer names the observer implementation ("noop", "slog", "otel"),
	// or several separated by commas.
	Observer string `json:"observer" yaml:"observer" toml:"observer" env:"OBSERVER"`

	// HistoryMaxSize bounds the change history.
	HistoryMaxSize int `json:"history_max_size" yaml:"history_max_size" toml:"history_max_size" env:"HISTORY_MAX_SIZE"`

	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot" toml:"snapshot" envPrefix:"SNAPSHOT_"`
}

// DefaultStoreConfig returns defaults for a store named name.
//
// Default values:
//   - Observer: "slog"
//   - HistoryMaxSize: 10
//   - Snapshot: disabled (Interval=0)
func DefaultStoreConfig(name string) StoreConfig {
	return StoreConfig{
		Name:           name,
		Observer:       "slog",
		HistoryMaxSize: defaultHistoryMaxSize,
		Snapshot:       DefaultSnapshotConfig(),
	}
}

func (c *StoreConfig) Merge(source *StoreConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.HistoryMaxSize > 0 {
		c.HistoryMaxSize = source.HistoryMaxSize
	}

	c.Snapshot.Merge(&source.Snapshot)
}
