package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// ArmaVolume is the constant "vol" column emitted by ArmaGenerator.
const ArmaVolume = 100

// ArmaConfig configures an ARMA(p, q) price generator.
type ArmaConfig struct {
	Frequency string    `mapstructure:"frequency" validate:"required"`
	Start     time.Time `mapstructure:"start_date" validate:"required"`
	End       time.Time `mapstructure:"end_date" validate:"required"`
	// ARCoeffs and MACoeffs exclude the zero lag.
	ARCoeffs []float64 `mapstructure:"ar_coeffs"`
	MACoeffs []float64 `mapstructure:"ma_coeffs"`
	// Scale is the innovation standard deviation. Zero means 1.
	Scale float64 `mapstructure:"scale" validate:"gte=0"`
	// Burnin samples are generated and discarded before the first row.
	Burnin int    `mapstructure:"burnin" validate:"gte=0"`
	Seed   uint64 `mapstructure:"seed"`
}

// NewArmaGenerator returns a DataSource emitting "close", the cumulative
// sum of ARMA returns, and a constant "vol" column.
func NewArmaGenerator(id string, cfg ArmaConfig) (*DataSource, error) {
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("arma %s: %w", id, err)
	}
	freq, err := table.ParseFrequency(cfg.Frequency)
	if err != nil {
		return nil, fmt.Errorf("arma %s: %w", id, err)
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	w := table.Window{Start: cfg.Start, End: cfg.End}
	origin := OriginFunc(func(context.Context, table.Window) (*table.Frame, error) {
		return armaFrame(cfg, freq)
	})
	return New(id, origin, w), nil
}

func armaFrame(cfg ArmaConfig, freq table.Frequency) (*table.Frame, error) {
	index := freq.Range(cfg.Start, cfg.End)
	rets := ArmaSample(len(index), cfg.ARCoeffs, cfg.MACoeffs, cfg.Scale, cfg.Burnin, cfg.Seed)

	closes := make([]float64, len(rets))
	vol := make([]float64, len(rets))
	var sum float64
	for i, r := range rets {
		sum += r
		closes[i] = sum
		vol[i] = ArmaVolume
	}
	return table.New(index, []string{"close", "vol"}, [][]float64{closes, vol})
}

// ArmaSample draws n values of
//
//	x[t] = sum ar[i]*x[t-1-i] + e[t] + sum ma[j]*e[t-1-j],  e ~ N(0, scale²)
//
// after discarding burnin leading samples. The same seed always yields the
// same sample.
func ArmaSample(n int, ar, ma []float64, scale float64, burnin int, seed uint64) []float64 {
	noise := distuv.Normal{Mu: 0, Sigma: scale, Src: newSource(seed)}
	total := n + burnin
	x := make([]float64, total)
	e := make([]float64, total)
	for t := range total {
		e[t] = noise.Rand()
		v := e[t]
		for i, c := range ar {
			if t-1-i >= 0 {
				v += c * x[t-1-i]
			}
		}
		for j, c := range ma {
			if t-1-j >= 0 {
				v += c * e[t-1-j]
			}
		}
		x[t] = v
	}
	return x[burnin:]
}

// MultivariateNormalConfig configures correlated Gaussian returns.
type MultivariateNormalConfig struct {
	Dim       int       `mapstructure:"dim" validate:"required,gt=0"`
	Frequency string    `mapstructure:"frequency" validate:"required"`
	Start     time.Time `mapstructure:"start_date" validate:"required"`
	End       time.Time `mapstructure:"end_date" validate:"required"`
	// Scale multiplies the standard deviations. Zero means 1.
	Scale float64 `mapstructure:"scale" validate:"gte=0"`
	Seed  uint64  `mapstructure:"seed"`
}

// NewMultivariateNormal returns a DataSource emitting Dim zero-mean
// correlated Gaussian columns named "0".."Dim-1". The covariance is drawn
// once from the seed.
func NewMultivariateNormal(id string, cfg MultivariateNormalConfig) (*DataSource, error) {
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("multivariate_normal %s: %w", id, err)
	}
	freq, err := table.ParseFrequency(cfg.Frequency)
	if err != nil {
		return nil, fmt.Errorf("multivariate_normal %s: %w", id, err)
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	w := table.Window{Start: cfg.Start, End: cfg.End}
	origin := OriginFunc(func(context.Context, table.Window) (*table.Frame, error) {
		return multivariateNormalFrame(cfg, freq)
	})
	return New(id, origin, w), nil
}

func multivariateNormalFrame(cfg MultivariateNormalConfig, freq table.Frequency) (*table.Frame, error) {
	src := newSource(cfg.Seed)
	cov := RandomCovariance(cfg.Dim, cfg.Scale, src)
	dist, ok := distmv.NewNormal(make([]float64, cfg.Dim), cov, src)
	if !ok {
		return nil, fmt.Errorf("covariance is not positive definite")
	}

	index := freq.Range(cfg.Start, cfg.End)
	rows := make([][]float64, len(index))
	for i := range rows {
		rows[i] = dist.Rand(nil)
	}
	return table.FromRows(index, table.IntColumns(cfg.Dim), rows)
}

// RandomCovariance returns A·Aᵀ/dim·scale² + 0.01·I for a Gaussian A,
// which is symmetric positive definite.
func RandomCovariance(dim int, scale float64, src rand.Source) *mat.SymDense {
	g := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	a := mat.NewDense(dim, dim, nil)
	for i := range dim {
		for j := range dim {
			a.Set(i, j, g.Rand())
		}
	}
	cov := mat.NewSymDense(dim, nil)
	cov.SymOuterK(scale*scale/float64(dim), a)
	for i := range dim {
		cov.SetSym(i, i, cov.At(i, i)+0.01)
	}
	return cov
}

// RealTimeSyntheticConfig configures a random-walk source meant to be
// driven by a time cursor.
type RealTimeSyntheticConfig struct {
	Columns   []string  `mapstructure:"columns" validate:"required,min=1,dive,required"`
	Frequency string    `mapstructure:"frequency"`
	Start     time.Time `mapstructure:"start_date" validate:"required"`
	End       time.Time `mapstructure:"end_date" validate:"required"`
	Seed      uint64    `mapstructure:"seed"`
}

// NewRealTimeSynthetic returns a DataSource of random-walk columns with
// uniform steps in [-0.5, 0.5). The series over [Start, End] is fixed by
// the seed, so advancing the time cursor only reveals more of it.
// Frequency defaults to one minute.
func NewRealTimeSynthetic(id string, cfg RealTimeSyntheticConfig) (*DataSource, error) {
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("real_time_synthetic %s: %w", id, err)
	}
	freq := table.Minute
	if cfg.Frequency != "" {
		f, err := table.ParseFrequency(cfg.Frequency)
		if err != nil {
			return nil, fmt.Errorf("real_time_synthetic %s: %w", id, err)
		}
		freq = f
	}
	w := table.Window{Start: cfg.Start, End: cfg.End}
	origin := OriginFunc(func(_ context.Context, w table.Window) (*table.Frame, error) {
		return randomWalkFrame(cfg, freq, w)
	})
	return New(id, origin, w), nil
}

func randomWalkFrame(cfg RealTimeSyntheticConfig, freq table.Frequency, w table.Window) (*table.Frame, error) {
	rng := rand.New(newSource(cfg.Seed))
	index := freq.Range(cfg.Start, cfg.End)
	data := make([][]float64, len(cfg.Columns))
	for c := range data {
		data[c] = make([]float64, len(index))
	}
	for r := range index {
		for c := range data {
			step := rng.Float64() - 0.5
			if r == 0 {
				data[c][r] = step
				continue
			}
			data[c][r] = data[c][r-1] + step
		}
	}
	cols := append([]string(nil), cfg.Columns...)
	df, err := table.New(index, cols, data)
	if err != nil {
		return nil, err
	}
	// Rows after the cursor are not yet observable.
	return df.Slice(table.Window{End: w.End}), nil
}

func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
