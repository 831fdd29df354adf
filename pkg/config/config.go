// Package config provides YAML-based configuration loading with environment
// variable expansion and optional validation.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration structs that can validate themselves.
type Validator interface {
	Validate() error
}

// Load reads a YAML file, expands ${VAR} references from the environment, and
// decodes it into target. If target implements Validator, Validate is called
// after decoding.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}

	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config: validation failed: %w", err)
		}
	}

	return nil
}

// LoadIfExists behaves like Load but leaves target untouched (reporting
// found=false) when the file does not exist, so callers can fall back to
// compiled-in defaults without treating a missing file as fatal.
func LoadIfExists[T any](filename string, target *T) (found bool, err error) {
	if _, statErr := os.Stat(filename); errors.Is(statErr, os.ErrNotExist) {
		return false, nil
	}
	return true, Load(filename, target)
}
