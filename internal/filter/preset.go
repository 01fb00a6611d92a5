package filter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// LoadPreset reads criteria from a YAML preset file.
func LoadPreset(path string) (Criteria, error) {
	var c Criteria
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("filter: read preset: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Criteria{}, fmt.Errorf("filter: parse preset %s: %w", path, err)
	}
	return c, nil
}

// SavePreset writes c to path as YAML, replacing any existing file.
func SavePreset(path string, c Criteria) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("filter: marshal preset: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("filter: write preset: %w", err)
	}
	return nil
}
