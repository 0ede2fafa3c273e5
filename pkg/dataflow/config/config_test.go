package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nested() config.Config {
	return config.New(map[string]any{
		"source": map[string]any{
			"frequency": "B",
			"seed":      7,
			"window": map[string]any{
				"start": "2000-01-03",
				"end":   "2000-01-31",
			},
		},
		"model": map[string]any{
			"x_vars":       []any{"0", "1"},
			"n_components": 2,
			"scale":        0.5,
			"enabled":      true,
			"timeout":      "30s",
		},
	})
}

// TestLookup_PathNotations verifies tuple and dotted paths are equivalent.
func TestLookup_PathNotations(t *testing.T) {
	cfg := nested()

	tests := []struct {
		name string
		path []string
	}{
		{"tuple", []string{"source", "window", "start"}},
		{"dotted", []string{"source.window.start"}},
		{"mixed", []string{"source", "window.start"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := cfg.Lookup(tt.path...)
			require.True(t, ok)
			assert.Equal(t, "2000-01-03", v)
		})
	}

	_, ok := cfg.Lookup("source", "missing")
	assert.False(t, ok)
	_, ok = cfg.Lookup("source.frequency.deeper")
	assert.False(t, ok)
	_, ok = cfg.Lookup()
	assert.False(t, ok)
}

// TestRequire verifies missing paths fail with ErrMissingKey.
func TestRequire(t *testing.T) {
	cfg := nested()

	v, err := cfg.Require("model", "n_components")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = cfg.Require("model", "kwargs", "whiten")
	assert.ErrorIs(t, err, config.ErrMissingKey)
	assert.Contains(t, err.Error(), "model.kwargs.whiten")

	err = cfg.RequireAll("model.x_vars", "model.nope", "source.nope")
	assert.ErrorIs(t, err, config.ErrMissingKey)
	assert.Contains(t, err.Error(), "model.nope")
	assert.Contains(t, err.Error(), "source.nope")
}

// TestSub verifies nested configs can be extracted.
func TestSub(t *testing.T) {
	cfg := nested()

	win, err := cfg.Sub("source.window")
	require.NoError(t, err)
	assert.Equal(t, []string{"end", "start"}, win.Keys())

	_, err = cfg.Sub("source.frequency")
	assert.ErrorIs(t, err, config.ErrNotMapping)

	_, err = cfg.Sub("absent")
	assert.ErrorIs(t, err, config.ErrMissingKey)
}

// TestTypedAccessors verifies typed extraction with defaults.
func TestTypedAccessors(t *testing.T) {
	cfg := nested()

	assert.Equal(t, "B", cfg.String("source.frequency", "T"))
	assert.Equal(t, "T", cfg.String("source.seed", "T"))
	assert.Equal(t, 7, cfg.Int("source.seed", 0))
	assert.Equal(t, 2, cfg.Int("model.n_components", 0))
	assert.Equal(t, 0, cfg.Int("model.scale", 0), "fractional floats are not ints")
	assert.InDelta(t, 0.5, cfg.Float("model.scale", 0), 1e-12)
	assert.InDelta(t, 7.0, cfg.Float("source.seed", 0), 1e-12)
	assert.True(t, cfg.Bool("model.enabled", false))
	assert.Equal(t, 30*time.Second, cfg.Duration("model.timeout", 0))
	assert.Equal(t, []string{"0", "1"}, cfg.StringSlice("model.x_vars", nil))
	assert.Equal(t, time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC), cfg.Time("source.window.start", time.Time{}))
	assert.Equal(t, "fallback", cfg.Any("nope", "fallback"))
}

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "1h30m", 90 * time.Minute},
		{"int seconds", 5, 5 * time.Second},
		{"int64 seconds", int64(2), 2 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"duration", 3 * time.Minute, 3 * time.Minute},
		{"invalid string", "soon", time.Second},
		{"wrong type", true, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"a": map[string]any{"d": tt.val}})
			assert.Equal(t, tt.want, cfg.Duration("a.d", time.Second))
		})
	}
}

// TestImmutability verifies New, Raw, and With never share state.
func TestImmutability(t *testing.T) {
	src := map[string]any{"a": map[string]any{"b": 1}}
	cfg := config.New(src)

	src["a"].(map[string]any)["b"] = 2
	assert.Equal(t, 1, cfg.Int("a.b", 0))

	raw := cfg.Raw()
	raw["a"].(map[string]any)["b"] = 3
	assert.Equal(t, 1, cfg.Int("a.b", 0))

	updated := cfg.With("a.c.d", "x")
	assert.Equal(t, "x", updated.String("a.c.d", ""))
	assert.False(t, cfg.Has("a.c"))

	replaced := cfg.With("a.b.deep", 1)
	assert.Equal(t, 1, replaced.Int("a.b.deep", 0))
	assert.Equal(t, 1, cfg.Int("a.b", 0))
}

// TestFlatten verifies dotted leaf keys.
func TestFlatten(t *testing.T) {
	flat := nested().Flatten()
	assert.Equal(t, "2000-01-31", flat["source.window.end"])
	assert.Equal(t, 2, flat["model.n_components"])
	assert.NotContains(t, flat, "source")
}

// TestFromFile verifies YAML and JSON loading.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "c.yaml")
	jsonPath := filepath.Join(dir, "c.json")
	txtPath := filepath.Join(dir, "c.txt")
	require.NoError(t, os.WriteFile(yamlPath, []byte("model:\n  n_components: 3\n  x_vars: [a, b]\n"), 0o600))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"model": {"n_components": 3}}`), 0o600))
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o600))

	y, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 3, y.Int("model.n_components", 0))
	assert.Equal(t, []string{"a", "b"}, y.StringSlice("model.x_vars", nil))

	j, err := config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 3, j.Any("model.n_components", nil), "integral JSON numbers decode as int")

	_, err = config.FromFile(txtPath)
	assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = config.FromYAML([]byte("a: [unclosed"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

// TestLoaders_TopLevelMapping verifies documents must be mappings.
func TestLoaders_TopLevelMapping(t *testing.T) {
	_, err := config.FromYAML([]byte("- a\n- b\n"))
	assert.ErrorIs(t, err, config.ErrNotMapping)
	_, err = config.FromJSON([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, config.ErrNotMapping)
	_, err = config.FromJSON([]byte(`{"a": 1} {"b": 2}`))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	empty, err := config.FromYAML(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Keys())

	c, err := config.FromYAML([]byte("nodes:\n  1: {seed: 3}\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Int("nodes.1.seed", 0), "non-string keys are reachable")

	j, err := config.FromJSON([]byte(`{"scale": 0.5, "seed": 18446744073709551}`))
	require.NoError(t, err)
	assert.Equal(t, 0.5, j.Any("scale", nil))
	assert.Equal(t, 18446744073709551, j.Any("seed", nil))
}

// TestToYAML verifies a rendered config parses back.
func TestToYAML(t *testing.T) {
	out, err := nested().ToYAML()
	require.NoError(t, err)
	back, err := config.FromYAML(out)
	require.NoError(t, err)
	assert.Equal(t, "B", back.String("source.frequency", ""))
}

func TestPath(t *testing.T) {
	assert.Equal(t, "a.b.c", config.Path("a", "b", "c"))
}
