package model

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
)

// ModelConfig is the keyword configuration shared by UnsupervisedModel and
// Residualizer. TransformKwargs are passed to the named transform's
// constructor.
type ModelConfig struct {
	XVars           []string       `mapstructure:"x_vars" validate:"required,min=1,dive,required"`
	Transform       string         `mapstructure:"transform" validate:"required"`
	TransformKwargs map[string]any `mapstructure:"transform_kwargs"`
}

// output selects what a transformer node emits.
type output int

const (
	outputTransformed output = iota
	outputResidual
)

// transformerNode holds the fitted state common to the model nodes.
// Fitted state is replaced wholesale on a successful Fit and read under a
// read lock by Predict.
type transformerNode struct {
	dataflow.Lifecycle
	xVars     []string
	transform Transform
	output    output

	mu     sync.RWMutex
	fitted Fitted
}

// UnsupervisedModel fits a transform on the x_vars columns of its input
// and emits the transformed representation.
type UnsupervisedModel struct {
	transformerNode
}

// NewUnsupervisedModel returns an unfitted model node.
func NewUnsupervisedModel(id string, xVars []string, t Transform) (*UnsupervisedModel, error) {
	base, err := newTransformerNode(id, xVars, t, outputTransformed)
	if err != nil {
		return nil, err
	}
	return &UnsupervisedModel{transformerNode: base}, nil
}

// Residualizer fits an invertible transform on the x_vars columns of its
// input and emits x minus its reconstruction, with the x_vars columns.
type Residualizer struct {
	transformerNode
}

// NewResidualizer returns an unfitted residualizer node.
func NewResidualizer(id string, xVars []string, t Transform) (*Residualizer, error) {
	base, err := newTransformerNode(id, xVars, t, outputResidual)
	if err != nil {
		return nil, err
	}
	return &Residualizer{transformerNode: base}, nil
}

func newTransformerNode(id string, xVars []string, t Transform, out output) (transformerNode, error) {
	if len(xVars) == 0 {
		return transformerNode{}, fmt.Errorf("node %s: x_vars must not be empty", id)
	}
	if t == nil {
		return transformerNode{}, fmt.Errorf("node %s: transform is nil", id)
	}
	return transformerNode{
		Lifecycle: dataflow.NewLifecycle(id),
		xVars:     slices.Clone(xVars),
		transform: t,
		output:    out,
	}, nil
}

// XVars returns the input columns the node operates on.
func (n *transformerNode) XVars() []string {
	return slices.Clone(n.xVars)
}

// Fitted returns the state learned at the last successful Fit, or nil.
func (n *transformerNode) Fitted() Fitted {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.fitted
}

// Fit restricts the input to x_vars, fits the transform on the whole
// window, and returns the output for that same window. Prior fitted state
// is kept if any step fails.
func (n *transformerNode) Fit(ctx dataflow.Context, in dataflow.Inputs) (dataflow.Outputs, error) {
	x, err := n.inputs(in)
	if err != nil {
		return nil, err
	}
	fitted, err := n.transform.Fit(x)
	if err != nil {
		return nil, err
	}
	if n.output == outputResidual {
		if _, ok := fitted.(Invertible); !ok {
			return nil, fmt.Errorf("%w: %T", ErrNotInvertible, fitted)
		}
	}
	out, err := n.apply(fitted, x)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.fitted = fitted
	n.MarkFit()
	n.mu.Unlock()

	ctx.Logger().Debug("transform fitted",
		slog.Int("rows", x.Len()),
		slog.Any("columns", fitted.Columns()),
	)
	return dataflow.Single(out), nil
}

// Predict applies the state stored at the last Fit without changing it.
func (n *transformerNode) Predict(_ dataflow.Context, in dataflow.Inputs) (dataflow.Outputs, error) {
	fitted := n.Fitted()
	if fitted == nil {
		return nil, &dataflow.NodeError{NodeID: n.ID(), Op: string(dataflow.ModePredict), Err: dataflow.ErrNotFitted}
	}
	x, err := n.inputs(in)
	if err != nil {
		return nil, err
	}
	out, err := n.apply(fitted, x)
	if err != nil {
		return nil, err
	}
	return dataflow.Single(out), nil
}

func (n *transformerNode) inputs(in dataflow.Inputs) (*table.Frame, error) {
	df, err := in.In()
	if err != nil {
		return nil, err
	}
	return df.Select(n.xVars...)
}

func (n *transformerNode) apply(fitted Fitted, x *table.Frame) (*table.Frame, error) {
	y, err := fitted.Transform(x)
	if err != nil {
		return nil, err
	}
	if n.output == outputTransformed {
		return y, nil
	}
	recon, err := fitted.(Invertible).Inverse(y)
	if err != nil {
		return nil, err
	}
	return x.Sub(recon)
}
