package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "PATCHSTORE_"

// LoadConfig reads a config file, merges it with defaults, and returns the
// resulting StoreConfig. The format follows the file extension: .json, .yaml,
// .yml or .toml.
func LoadConfig(filename string) (*StoreConfig, error) {
	cfg := DefaultStoreConfig("")

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded StoreConfig
	if err := Decode(filename, data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return &cfg, nil
}

// Decode unmarshals data into target using the format implied by the
// extension of filename.
func Decode(filename string, data []byte, target any) error {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return json.Unmarshal(data, target)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, target)
	case ".toml":
		_, err := toml.Decode(string(data), target)
		return err
	default:
		return fmt.Errorf("unsupported config format: %q", ext)
	}
}

// FromEnv overlays PATCHSTORE_* environment variables onto cfg. Unset
// variables leave the corresponding fields untouched.
func FromEnv(cfg *StoreConfig) error {
	var loaded StoreConfig
	if err := env.ParseWithOptions(&loaded, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.Merge(&loaded)
	return nil
}
