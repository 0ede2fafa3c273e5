package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indicates a config file extension with no loader.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// FromFile loads a pipeline or node config file. The format follows the
// extension: .yaml, .yml or .json.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		c, err = FromYAML(data)
	case ".json":
		c, err = FromJSON(data)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FromYAML parses a YAML document. The top level must be a mapping; an
// empty document gives an empty Config. Non-string keys are formatted
// with %v so key paths reach every entry.
func FromYAML(data []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
	}
	return document("yaml", doc)
}

// FromJSON parses a JSON document. The top level must be an object.
// Integral numbers decode as int and the rest as float64, matching the
// YAML loader so seeds and row counts keep their precision.
func FromJSON(data []byte) (Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Config{}, fmt.Errorf("%w: parse json: %v", ErrInvalidConfig, err)
	}
	if dec.More() {
		return Config{}, fmt.Errorf("%w: parse json: trailing data after top-level value", ErrInvalidConfig)
	}
	return document("json", doc)
}

func document(format string, doc any) (Config, error) {
	if doc == nil {
		return New(nil), nil
	}
	m, ok := normalize(doc).(map[string]any)
	if !ok {
		return Config{}, fmt.Errorf("%w: %s document is %T, want a mapping", ErrNotMapping, format, doc)
	}
	return New(m), nil
}

// normalize rewrites decoded documents into map[string]any and []any
// trees with int or float64 numbers.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
		f, _ := val.Float64()
		return f
	default:
		return v
	}
}

// ToYAML renders the configuration as YAML.
func (c Config) ToYAML() ([]byte, error) {
	out, err := yaml.Marshal(c.data)
	if err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	return out, nil
}
