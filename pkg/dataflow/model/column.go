package model

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
	"gonum.org/v1/gonum/stat"
)

// Column functions supported by ColumnTransformer.
const (
	ColumnDiff      = "diff"
	ColumnPctChange = "pct_change"
	ColumnLogDiff   = "log_diff"
	ColumnZScore    = "zscore"
)

// NaN handling modes for burn-in rows.
const (
	NaNModeDrop  = "drop"
	NaNModeLeave = "leave"
)

// ColumnConfig configures a ColumnTransformer. An empty Columns list
// applies the function to every input column.
type ColumnConfig struct {
	Columns   []string `mapstructure:"cols"`
	Transform string   `mapstructure:"transform" validate:"required,oneof=diff pct_change log_diff zscore"`
	NaNMode   string   `mapstructure:"nan_mode" validate:"omitempty,oneof=drop leave"`
}

// BurnIn returns how many leading rows of output the function cannot
// compute.
func (c ColumnConfig) BurnIn() int {
	switch c.Transform {
	case ColumnDiff, ColumnPctChange, ColumnLogDiff:
		return 1
	default:
		return 0
	}
}

// zscoreParams holds the per-column moments learned at Fit.
type zscoreParams struct {
	mean map[string]float64
	std  map[string]float64
}

// ColumnTransformer applies an element-wise function to selected columns
// and passes the others through. Burn-in rows are dropped by default.
type ColumnTransformer struct {
	dataflow.Lifecycle
	cfg ColumnConfig

	mu     sync.RWMutex
	params *zscoreParams
}

// NewColumnTransformer returns an unfitted column transformer.
func NewColumnTransformer(id string, cfg ColumnConfig) (*ColumnTransformer, error) {
	if cfg.NaNMode == "" {
		cfg.NaNMode = NaNModeDrop
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	cfg.Columns = slices.Clone(cfg.Columns)
	return &ColumnTransformer{Lifecycle: dataflow.NewLifecycle(id), cfg: cfg}, nil
}

// Fit learns the z-score moments when configured and transforms the input.
// A z-score fit needs at least two rows; a failed fit keeps prior moments.
func (c *ColumnTransformer) Fit(_ dataflow.Context, in dataflow.Inputs) (dataflow.Outputs, error) {
	df, err := in.In()
	if err != nil {
		return nil, err
	}
	cols, err := c.columns(df)
	if err != nil {
		return nil, err
	}

	var params *zscoreParams
	if c.cfg.Transform == ColumnZScore {
		if df.Len() < 2 {
			return nil, fmt.Errorf("%w: zscore needs at least 2 rows, got %d", ErrInsufficientData, df.Len())
		}
		params = &zscoreParams{mean: map[string]float64{}, std: map[string]float64{}}
		for _, name := range cols {
			vals, _ := df.Column(name)
			m, sd := stat.MeanStdDev(vals, nil)
			if sd == 0 || math.IsNaN(sd) {
				sd = 1
			}
			params.mean[name], params.std[name] = m, sd
		}
	}
	out, err := c.apply(df, cols, params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.params = params
	c.MarkFit()
	c.mu.Unlock()
	return dataflow.Single(out), nil
}

// Predict applies the function using the moments learned at Fit.
func (c *ColumnTransformer) Predict(_ dataflow.Context, in dataflow.Inputs) (dataflow.Outputs, error) {
	c.mu.RLock()
	fitted, params := c.IsFit(), c.params
	c.mu.RUnlock()
	if !fitted {
		return nil, &dataflow.NodeError{NodeID: c.ID(), Op: string(dataflow.ModePredict), Err: dataflow.ErrNotFitted}
	}
	df, err := in.In()
	if err != nil {
		return nil, err
	}
	cols, err := c.columns(df)
	if err != nil {
		return nil, err
	}
	out, err := c.apply(df, cols, params)
	if err != nil {
		return nil, err
	}
	return dataflow.Single(out), nil
}

func (c *ColumnTransformer) columns(df *table.Frame) ([]string, error) {
	if len(c.cfg.Columns) == 0 {
		return df.Columns(), nil
	}
	if _, err := df.Select(c.cfg.Columns...); err != nil {
		return nil, err
	}
	return c.cfg.Columns, nil
}

func (c *ColumnTransformer) apply(df *table.Frame, cols []string, params *zscoreParams) (*table.Frame, error) {
	out := df
	for _, name := range cols {
		vals, _ := df.Column(name)
		var next []float64
		switch c.cfg.Transform {
		case ColumnDiff:
			next = lagged(vals, func(prev, cur float64) float64 { return cur - prev })
		case ColumnPctChange:
			next = lagged(vals, func(prev, cur float64) float64 { return cur/prev - 1 })
		case ColumnLogDiff:
			next = lagged(vals, func(prev, cur float64) float64 { return math.Log(cur) - math.Log(prev) })
		case ColumnZScore:
			sd, ok := params.std[name]
			if !ok {
				return nil, fmt.Errorf("%w: column %q was not present at fit", dataflow.ErrColumnMismatch, name)
			}
			m := params.mean[name]
			next = make([]float64, len(vals))
			for i, v := range vals {
				next[i] = (v - m) / sd
			}
		}
		var err error
		if out, err = out.WithColumn(name, next); err != nil {
			return nil, err
		}
	}
	if c.cfg.NaNMode == NaNModeDrop {
		out = out.Drop(c.cfg.BurnIn())
	}
	return out, nil
}

// lagged applies fn to consecutive pairs. The first value is NaN.
func lagged(vals []float64, fn func(prev, cur float64) float64) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(vals[i-1], vals[i])
	}
	return out
}
