// Package model provides transformer nodes that fit a statistical transform
// on upstream data and apply it at predict time.
//
// A Transform is the unfitted, configured estimator. Fitting it yields a
// Fitted value that is stored as node state and reused by Predict. The
// output schema of a Fitted depends only on the transform configuration,
// never on the batch it is applied to.
package model

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/registry"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
)

// Sentinel errors for transforms.
var (
	// ErrNotInvertible indicates a fitted transform cannot reconstruct its input.
	ErrNotInvertible = errors.New("transform is not invertible")

	// ErrInsufficientData indicates a frame has too few rows or columns to fit.
	ErrInsufficientData = errors.New("insufficient data to fit transform")

	// ErrNonFinite indicates NaN or Inf values in a transform input.
	ErrNonFinite = errors.New("non-finite value in transform input")
)

// Transform is a configured, unfitted estimator.
type Transform interface {
	Fit(x *table.Frame) (Fitted, error)
}

// Fitted is the learned state of a Transform.
type Fitted interface {
	// Transform applies the learned state to x. The result has the same
	// index as x and the columns reported by Columns.
	Transform(x *table.Frame) (*table.Frame, error)

	// Columns returns the output column names.
	Columns() []string
}

// Invertible is a Fitted that can map its output back to input space.
type Invertible interface {
	Fitted
	Inverse(y *table.Frame) (*table.Frame, error)
}

// Constructor builds a Transform from keyword arguments.
type Constructor func(kwargs map[string]any) (Transform, error)

// Registry maps transform names to constructors.
type Registry = registry.Registry[string, Constructor]

// DefaultTransforms returns a new registry holding the built-in transforms.
func DefaultTransforms() *Registry {
	r := registry.New[string, Constructor]()
	r.MustRegister("pca", NewPCAFromKwargs)
	r.MustRegister("standard_scaler", NewStandardScalerFromKwargs)
	return r
}

// Build looks up name in r and constructs the transform with kwargs.
func Build(r *Registry, name string, kwargs map[string]any) (Transform, error) {
	ctor, err := r.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("transform %q: %w", name, err)
	}
	t, err := ctor(kwargs)
	if err != nil {
		return nil, fmt.Errorf("transform %q: %w", name, err)
	}
	return t, nil
}

func decodeKwargs(kwargs map[string]any, out any) error {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return config.Decode(kwargs, out)
}
