package rules

import (
	"fmt"
	"os"

	"github.com/tailored-agentic-units/patchstore/config"
	"github.com/tailored-agentic-units/patchstore/store"
)

// File is the document format of a rule file.
type File struct {
	Rules []Rule `json:"rules" yaml:"rules" toml:"rules"`
}

// Load reads rules from a JSON, YAML or TOML file, chosen by extension.
func Load(filename string) ([]Rule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file File
	if err := config.Decode(filename, data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return file.Rules, nil
}

// LoadReducers reads and compiles a rule file.
func LoadReducers(filename string) ([]store.Reducer, error) {
	rules, err := Load(filename)
	if err != nil {
		return nil, err
	}
	return Reducers(rules)
}
