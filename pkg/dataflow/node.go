package dataflow

import (
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
)

// Canonical port names.
const (
	PortIn  = "df_in"
	PortOut = "df_out"
)

// Mode selects which lifecycle method the scheduler calls.
type Mode string

// Supported modes.
const (
	ModeFit     Mode = "fit"
	ModePredict Mode = "predict"
)

// Validate returns ErrInvalidMode for anything other than fit or predict.
func (m Mode) Validate() error {
	switch m {
	case ModeFit, ModePredict:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
	}
}

// Inputs maps input port names to the tables delivered to a node.
type Inputs map[string]*table.Frame

// Outputs maps output port names to the tables a node produced.
type Outputs map[string]*table.Frame

// In returns the table on the canonical input port.
func (in Inputs) In() (*table.Frame, error) {
	f, ok := in[PortIn]
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: port %s", ErrMissingInput, PortIn)
	}
	return f, nil
}

// Out returns the table on the canonical output port, or nil.
func (out Outputs) Out() *table.Frame {
	return out[PortOut]
}

// Single wraps f as the canonical output.
func Single(f *table.Frame) Outputs {
	return Outputs{PortOut: f}
}

// Node is the unit of computation in a DAG.
//
// Fit trains the node on its inputs and returns the output for the same
// window; calling it again discards prior learned state. Predict applies
// the state captured at the last Fit without changing it, and fails with
// ErrInvalidLifecycle if Fit never succeeded. Data source nodes receive
// empty Inputs.
type Node interface {
	ID() string
	Fit(ctx Context, in Inputs) (Outputs, error)
	Predict(ctx Context, in Inputs) (Outputs, error)
}

// Lifecycle tracks the unfit/fit state of a node. Embed it in node
// implementations.
type Lifecycle struct {
	id  string
	fit bool
}

// NewLifecycle returns an unfit lifecycle for the node id.
func NewLifecycle(id string) Lifecycle {
	return Lifecycle{id: id}
}

// ID returns the node id.
func (l *Lifecycle) ID() string {
	return l.id
}

// MarkFit records a successful Fit.
func (l *Lifecycle) MarkFit() {
	l.fit = true
}

// IsFit reports whether Fit has succeeded at least once.
func (l *Lifecycle) IsFit() bool {
	return l.fit
}

// RequireFit returns ErrInvalidLifecycle wrapped with node context when
// the node has not been fit.
func (l *Lifecycle) RequireFit() error {
	if l.fit {
		return nil
	}
	return &NodeError{NodeID: l.id, Op: string(ModePredict), Err: ErrInvalidLifecycle}
}
