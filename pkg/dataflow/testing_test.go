package dataflow

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
)

// testCtx returns a context for direct node calls.
func testCtx() Context {
	return NewContext(context.Background())
}

func ts(minute int) time.Time {
	return time.Date(2010, time.January, 4, 9, 30+minute, 0, 0, time.UTC)
}

// sourceFrame returns n rows of a single column "x" with values 0..n-1.
func sourceFrame(n int) *table.Frame {
	index := make([]time.Time, n)
	vals := make([]float64, n)
	for i := range n {
		index[i] = ts(i)
		vals[i] = float64(i)
	}
	return table.MustNew(index, []string{"x"}, [][]float64{vals})
}

// trackingNode records its calls and adds a learned offset to its input.
type trackingNode struct {
	Lifecycle
	log    *[]string
	source *table.Frame
	offset float64
	fits   int
}

func newTrackingNode(id string, log *[]string) *trackingNode {
	return &trackingNode{Lifecycle: NewLifecycle(id), log: log}
}

func newTrackingSource(id string, log *[]string, f *table.Frame) *trackingNode {
	n := newTrackingNode(id, log)
	n.source = f
	return n
}

func (n *trackingNode) record(op string) {
	if n.log != nil {
		*n.log = append(*n.log, n.ID()+":"+op)
	}
}

func (n *trackingNode) input(in Inputs) (*table.Frame, error) {
	if n.source != nil {
		return n.source, nil
	}
	return in.In()
}

func (n *trackingNode) Fit(_ Context, in Inputs) (Outputs, error) {
	n.record("fit")
	df, err := n.input(in)
	if err != nil {
		return nil, err
	}
	n.fits++
	n.offset = float64(n.fits)
	n.MarkFit()
	return n.apply(df)
}

func (n *trackingNode) Predict(_ Context, in Inputs) (Outputs, error) {
	n.record("predict")
	if err := n.RequireFit(); err != nil {
		return nil, err
	}
	df, err := n.input(in)
	if err != nil {
		return nil, err
	}
	return n.apply(df)
}

func (n *trackingNode) apply(df *table.Frame) (Outputs, error) {
	if n.source != nil {
		return Single(df), nil
	}
	out := df
	for _, c := range df.Columns() {
		vals, err := df.Column(c)
		if err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] += n.offset
		}
		if out, err = out.WithColumn(c, vals); err != nil {
			return nil, err
		}
	}
	return Single(out), nil
}

// funcNode runs the same function for fit and predict.
type funcNode struct {
	id string
	fn func(ctx Context, in Inputs) (Outputs, error)
}

func (n *funcNode) ID() string                                  { return n.id }
func (n *funcNode) Fit(ctx Context, in Inputs) (Outputs, error) { return n.fn(ctx, in) }
func (n *funcNode) Predict(ctx Context, in Inputs) (Outputs, error) {
	return n.fn(ctx, in)
}

func failingNode(id string, err error) *funcNode {
	return &funcNode{id: id, fn: func(Context, Inputs) (Outputs, error) { return nil, err }}
}

func panickingNode(id string) *funcNode {
	return &funcNode{id: id, fn: func(Context, Inputs) (Outputs, error) { panic(fmt.Sprintf("%s exploded", id)) }}
}

// mustDAG builds a DAG from nodes and "from->to" edges on default ports.
func mustDAG(nodes []Node, edges ...[2]string) *DAG {
	d := NewDAG("test")
	for _, n := range nodes {
		if err := d.AddNode(n); err != nil {
			panic(err)
		}
	}
	for _, e := range edges {
		if err := d.AddEdge(e[0], e[1]); err != nil {
			panic(err)
		}
	}
	return d
}
