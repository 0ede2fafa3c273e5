package config

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"
)

// ErrMissingKey indicates a required key path does not resolve.
var ErrMissingKey = errors.New("missing config key")

// ErrNotMapping indicates a key path runs through a non-mapping value.
var ErrNotMapping = errors.New("config value is not a mapping")

// Config is an immutable nested mapping addressed by key paths.
// All accessor methods return default values if the key is missing
// or the value cannot be converted to the requested type.
type Config struct {
	data map[string]any
}

// New creates a Config from a deep copy of data.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	return Config{data: copyMap(data)}
}

// Path joins key path elements in dotted notation.
func Path(parts ...string) string {
	return strings.Join(parts, ".")
}

// splitPath turns tuple or dotted notation into path elements.
// ("a", "b.c") and ("a.b.c") both yield [a b c].
func splitPath(path []string) []string {
	var out []string
	for _, p := range path {
		for _, part := range strings.Split(p, ".") {
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Lookup returns the value at path.
func (c Config) Lookup(path ...string) (any, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, false
	}
	var cur any = c.data
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Require returns the value at path, or ErrMissingKey naming the path.
func (c Config) Require(path ...string) (any, error) {
	v, ok := c.Lookup(path...)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, Path(splitPath(path)...))
	}
	return v, nil
}

// RequireAll checks every path and reports all missing ones together.
func (c Config) RequireAll(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if _, err := c.Require(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Has returns true if the path resolves.
func (c Config) Has(path ...string) bool {
	_, ok := c.Lookup(path...)
	return ok
}

// Sub returns the nested mapping at path as a Config.
func (c Config) Sub(path ...string) (Config, error) {
	v, err := c.Require(path...)
	if err != nil {
		return Config{}, err
	}
	m, ok := asMap(v)
	if !ok {
		return Config{}, fmt.Errorf("%w: %s is %T", ErrNotMapping, Path(splitPath(path)...), v)
	}
	return New(m), nil
}

// Keys returns the top-level keys, sorted.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of c with value stored at path. Intermediate
// mappings are created as needed; a non-mapping value in the way is
// replaced.
func (c Config) With(path string, value any) Config {
	parts := splitPath([]string{path})
	out := New(c.data)
	if len(parts) == 0 {
		return out
	}
	m := out.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := asMap(m[p])
		if !ok {
			next = make(map[string]any)
		}
		m[p] = next
		m = next
	}
	if sub, ok := value.(Config); ok {
		value = sub.Raw()
	}
	m[parts[len(parts)-1]] = value
	return out
}

// Flatten returns every leaf value keyed by its dotted path.
func (c Config) Flatten() map[string]any {
	out := make(map[string]any)
	flatten("", c.data, out)
	return out
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := asMap(v); ok && len(sub) > 0 {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

// Raw returns a deep copy of the underlying mapping.
func (c Config) Raw() map[string]any {
	return copyMap(c.data)
}

// String returns the string value for path, or defaultVal if missing or not a string.
func (c Config) String(path, defaultVal string) string {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration value for path, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int: interpreted as seconds
//   - int64: interpreted as seconds
//   - float64: interpreted as seconds
//   - time.Duration: used directly
func (c Config) Duration(path string, defaultVal time.Duration) time.Duration {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// Time returns the timestamp at path, or defaultVal if missing or invalid.
// Strings are parsed as RFC 3339 or as a date ("2006-01-02").
func (c Config) Time(path string, defaultVal time.Time) time.Time {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		if t, err := ParseTime(val); err == nil {
			return t
		}
	}
	return defaultVal
}

// Bool returns the boolean value for path, or defaultVal if missing or not a bool.
func (c Config) Bool(path string, defaultVal bool) bool {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for path, or defaultVal if missing or not convertible.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted to int (truncated, only if no fractional part)
func (c Config) Int(path string, defaultVal int) int {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		// Only convert if there's no fractional part
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for path, or defaultVal if missing or not convertible.
//
// Accepts:
//   - float64: used directly
//   - int: converted to float64
//   - int64: converted to float64
func (c Config) Float(path string, defaultVal float64) float64 {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// StringSlice returns the string slice for path, or defaultVal if missing or not convertible.
//
// Accepts:
//   - []string: used directly
//   - []any: each element converted to string if possible
func (c Config) StringSlice(path string, defaultVal []string) []string {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}

// Any returns the raw value for path, or defaultVal if missing.
func (c Config) Any(path string, defaultVal any) any {
	v, ok := c.Lookup(path)
	if !ok {
		return defaultVal
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Config:
		return m.data, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	if m, ok := asMap(v); ok {
		return copyMap(m)
	}
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case map[string]string:
		return maps.Clone(val)
	}
	return v
}
