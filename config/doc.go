// Package config defines initialization-time configuration for a store.
//
// Configuration is plain data: strings name the observer and snapshot store
// implementations, which store.New resolves through their registries.
// Values come from DefaultStoreConfig, an optional file read by LoadConfig
// (JSON, YAML or TOML by extension) and PATCHSTORE_* environment variables
// applied by FromEnv. Each layer is folded in with Merge, so zero values
// never clear a default.
//
// Example:
//
//	cfg, err := config.LoadConfig("store.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.FromEnv(cfg); err != nil {
//	    log.Fatal(err)
//	}
//	s, err := store.New(*cfg)
package config
