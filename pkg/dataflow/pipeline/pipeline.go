// Package pipeline builds DAGs from declarative specs.
//
// A spec names the nodes by id, gives each a factory type and keyword
// arguments, and lists the edges between them:
//
//	name: returns
//	sink: ret
//	nodes:
//	  load_prices:
//	    type: real_time_synthetic
//	    kwargs:
//	      columns: [close, vol]
//	      start_date: "2010-01-04 09:30:00"
//	      end_date: "2010-01-04 11:30:00"
//	  ret:
//	    type: column_transformer
//	    kwargs: {cols: [close], transform: diff}
//	edges:
//	  - {from: load_prices, to: ret}
//
// Specs are plain config.Config values, so a template can be adjusted with
// key-path overrides such as "nodes.load_prices.kwargs.seed" before it is
// built. Node kwargs may also reference entries of a top-level vars
// mapping as ${name}:
//
//	vars: {session: "2010-01-04"}
//	nodes:
//	  load_prices:
//	    kwargs: {start_date: "${session} 09:30:00", ...}
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/factory"
)

// NodeSpec describes one node.
type NodeSpec struct {
	Type   string         `mapstructure:"type" validate:"required"`
	Kwargs map[string]any `mapstructure:"kwargs"`
}

// EdgeSpec describes one edge. Empty ports mean df_out and df_in.
type EdgeSpec struct {
	From     string `mapstructure:"from" validate:"required"`
	To       string `mapstructure:"to" validate:"required"`
	FromPort string `mapstructure:"from_port"`
	ToPort   string `mapstructure:"to_port"`
}

// Spec is a declarative DAG description.
type Spec struct {
	Name string `mapstructure:"name" validate:"required"`
	// Sink is the node Fit and Predict run. Empty means the DAG's unique
	// sink.
	Sink  string              `mapstructure:"sink"`
	Nodes map[string]NodeSpec `mapstructure:"nodes" validate:"required,min=1,dive"`
	Edges []EdgeSpec          `mapstructure:"edges" validate:"dive"`
	// Order fixes node insertion order, which breaks scheduling ties.
	// Nodes not listed follow in sorted id order.
	Order []string `mapstructure:"order"`
	// Vars holds the values substituted for ${name} in node kwargs.
	Vars map[string]any `mapstructure:"vars"`
}

// Override sets one key path of a spec config before decoding.
type Override struct {
	Path  string
	Value any
}

// Decode applies overrides to c, expands vars and decodes the result
// into a Spec. Overrides may target vars as well as node kwargs.
func Decode(c config.Config, overrides ...Override) (Spec, error) {
	for _, o := range overrides {
		c = c.With(o.Path, o.Value)
	}
	c, err := ExpandVars(c)
	if err != nil {
		return Spec{}, fmt.Errorf("decode pipeline spec: %w", err)
	}
	var s Spec
	if err := config.DecodeConfig(c, &s); err != nil {
		return Spec{}, fmt.Errorf("decode pipeline spec: %w", err)
	}
	return s, nil
}

// NodeIDs returns the node ids in insertion order.
func (s Spec) NodeIDs() []string {
	out := make([]string, 0, len(s.Nodes))
	for _, id := range s.Order {
		if _, ok := s.Nodes[id]; ok && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	rest := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		if !slices.Contains(out, id) {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Pipeline is a built DAG with a designated sink.
type Pipeline struct {
	spec Spec
	dag  *dataflow.DAG
	sink string
}

// Build constructs every node through f and connects the edges.
func Build(s Spec, f *factory.Factory) (*Pipeline, error) {
	d := dataflow.NewDAG(s.Name)
	for _, id := range s.NodeIDs() {
		ns := s.Nodes[id]
		n, err := f.New(id, ns.Type, ns.Kwargs)
		if err != nil {
			return nil, err
		}
		if err := d.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range s.Edges {
		err := d.Connect(
			dataflow.Endpoint{NodeID: e.From, Port: e.FromPort},
			dataflow.Endpoint{NodeID: e.To, Port: e.ToPort},
		)
		if err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	sink := s.Sink
	if sink == "" {
		var err error
		if sink, err = d.UniqueSink(); err != nil {
			return nil, err
		}
	} else if !d.HasNode(sink) {
		return nil, fmt.Errorf("%w: sink %s", dataflow.ErrUnknownNode, sink)
	}
	return &Pipeline{spec: s, dag: d, sink: sink}, nil
}

// Load decodes c with overrides and builds the result.
func Load(c config.Config, f *factory.Factory, overrides ...Override) (*Pipeline, error) {
	s, err := Decode(c, overrides...)
	if err != nil {
		return nil, err
	}
	return Build(s, f)
}

// LoadFile reads a YAML or JSON spec file and builds it.
func LoadFile(path string, f *factory.Factory, overrides ...Override) (*Pipeline, error) {
	c, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}
	return Load(c, f, overrides...)
}

// DAG returns the built graph.
func (p *Pipeline) DAG() *dataflow.DAG { return p.dag }

// Sink returns the node Fit and Predict run.
func (p *Pipeline) Sink() string { return p.sink }

// Spec returns the spec the pipeline was built from.
func (p *Pipeline) Spec() Spec { return p.spec }

// Node returns the node with the given id.
func (p *Pipeline) Node(id string) (dataflow.Node, error) { return p.dag.Node(id) }

// Fit runs the sink's ancestors in fit mode.
func (p *Pipeline) Fit(ctx context.Context, opts ...dataflow.RunOption) (dataflow.Outputs, error) {
	return p.dag.RunLeqNode(ctx, p.sink, dataflow.ModeFit, opts...)
}

// Predict runs the sink's ancestors in predict mode.
func (p *Pipeline) Predict(ctx context.Context, opts ...dataflow.RunOption) (dataflow.Outputs, error) {
	return p.dag.RunLeqNode(ctx, p.sink, dataflow.ModePredict, opts...)
}
