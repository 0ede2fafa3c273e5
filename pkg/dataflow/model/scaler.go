package model

import (
	"fmt"
	"slices"

	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
	"gonum.org/v1/gonum/stat"
)

// ScalerConfig configures a StandardScaler. Both flags default to true.
type ScalerConfig struct {
	WithMean bool `mapstructure:"with_mean"`
	WithStd  bool `mapstructure:"with_std"`
}

// StandardScaler centers each column and scales it to unit variance.
type StandardScaler struct {
	cfg ScalerConfig
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler(cfg ScalerConfig) *StandardScaler {
	return &StandardScaler{cfg: cfg}
}

// NewStandardScalerFromKwargs decodes kwargs into a ScalerConfig.
func NewStandardScalerFromKwargs(kwargs map[string]any) (Transform, error) {
	cfg := ScalerConfig{WithMean: true, WithStd: true}
	if err := decodeKwargs(kwargs, &cfg); err != nil {
		return nil, err
	}
	return &StandardScaler{cfg: cfg}, nil
}

// Fit learns per-column mean and standard deviation. Columns with zero
// variance are left unscaled.
func (s *StandardScaler) Fit(x *table.Frame) (Fitted, error) {
	if x.Len() < 2 {
		return nil, fmt.Errorf("%w: scaler needs at least 2 rows, got %d", ErrInsufficientData, x.Len())
	}
	cols := x.Columns()
	f := &FittedScaler{
		columns: cols,
		mean:    make([]float64, len(cols)),
		std:     make([]float64, len(cols)),
	}
	for i, name := range cols {
		vals, _ := x.Column(name)
		m, sd := stat.MeanStdDev(vals, nil)
		f.mean[i], f.std[i] = 0, 1
		if s.cfg.WithMean {
			f.mean[i] = m
		}
		if s.cfg.WithStd && sd > 0 {
			f.std[i] = sd
		}
	}
	return f, nil
}

// FittedScaler is the learned state of a StandardScaler.
type FittedScaler struct {
	columns []string
	mean    []float64
	std     []float64
}

var _ Invertible = (*FittedScaler)(nil)

// Columns returns the columns the scaler was fit on.
func (f *FittedScaler) Columns() []string {
	return slices.Clone(f.columns)
}

// Transform returns (x - mean) / std per column.
func (f *FittedScaler) Transform(x *table.Frame) (*table.Frame, error) {
	return f.apply(x, func(i int, v float64) float64 { return (v - f.mean[i]) / f.std[i] })
}

// Inverse returns y*std + mean per column.
func (f *FittedScaler) Inverse(y *table.Frame) (*table.Frame, error) {
	return f.apply(y, func(i int, v float64) float64 { return v*f.std[i] + f.mean[i] })
}

func (f *FittedScaler) apply(x *table.Frame, fn func(i int, v float64) float64) (*table.Frame, error) {
	sel, err := x.Select(f.columns...)
	if err != nil {
		return nil, err
	}
	data := make([][]float64, len(f.columns))
	for i, name := range f.columns {
		vals, _ := sel.Column(name)
		out := make([]float64, len(vals))
		for r, v := range vals {
			out[r] = fn(i, v)
		}
		data[i] = out
	}
	return table.New(sel.Index(), f.Columns(), data)
}
