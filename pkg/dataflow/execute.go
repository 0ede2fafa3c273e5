package dataflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
	"go.opentelemetry.io/otel/trace"
)

// RunLeqNode executes nid and all of its ancestors in topological order,
// calling each node's lifecycle method for mode, and returns nid's outputs.
//
// Each node's inputs are gathered from the outputs its producers returned
// earlier in the same run. Predict runs reuse the state captured by the
// last Fit; they never re-fit.
//
// Example:
//
//	out, err := dataflow.RunLeqNode(ctx, dag, "pca", dataflow.ModeFit)
//	if err != nil {
//	    return err
//	}
//	df := out.Out()
func RunLeqNode(ctx context.Context, d *DAG, nid string, mode Mode, opts ...RunOption) (Outputs, error) {
	return d.RunLeqNode(ctx, nid, mode, opts...)
}

// RunLeqNode executes nid and all of its ancestors. See the package-level
// RunLeqNode.
func (d *DAG) RunLeqNode(ctx context.Context, nid string, mode Mode, opts ...RunOption) (result Outputs, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	base := d.baseContext(ctx, mode, &cfg)

	order, err := d.Ancestors(nid)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	observability.LogRunStart(base.logger, base.runID, nid, string(mode), len(order))

	var execCtx context.Context = ctx
	if cfg.tracingEnabled {
		var runSpan trace.Span
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, d.name, base.runID, nid, string(mode))
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	outputs, lastNode, runErr := d.execute(execCtx, base, order, mode, &cfg)

	duration := time.Since(startTime)
	cfg.metrics.RecordDAGRun(ctx, string(mode), runErr == nil, duration)
	if runErr != nil {
		observability.LogRunError(base.logger, base.runID, runErr, float64(duration.Milliseconds()), lastNode)
		return nil, runErr
	}
	observability.LogRunComplete(base.logger, base.runID, float64(duration.Milliseconds()), len(order))
	return outputs[nid], nil
}

// baseContext merges run options with any services carried by ctx.
func (d *DAG) baseContext(ctx context.Context, mode Mode, cfg *runConfig) *executionContext {
	base := &executionContext{
		Context: ctx,
		metrics: cfg.metrics,
		runID:   cfg.runID,
		mode:    mode,
	}
	if parent, ok := ctx.(Context); ok {
		base.logger = parent.Logger()
		if base.runID == "" {
			base.runID = parent.RunID()
		}
		if _, noop := cfg.metrics.(observability.NoopMetrics); noop {
			base.metrics = parent.Metrics()
			cfg.metrics = base.metrics
		}
	}
	if cfg.logger != nil {
		base.logger = cfg.logger
	}
	if base.logger == nil {
		base.logger = NewContext(ctx).Logger()
	}
	if base.runID == "" {
		base.runID = NewContext(ctx).RunID()
	}
	return base
}

// execute runs the sorted closure. It returns every node's outputs and the
// id of the last node attempted.
func (d *DAG) execute(tracingCtx context.Context, base *executionContext, order []string, mode Mode, cfg *runConfig) (map[string]Outputs, string, error) {
	outputs := make(map[string]Outputs, len(order))

	for i, id := range order {
		if err := base.Err(); err != nil {
			return nil, id, &CancellationError{
				NodeID:    id,
				Completed: order[:i],
				Cause:     err,
			}
		}

		in, err := d.gatherInputs(id, outputs)
		if err != nil {
			return nil, id, err
		}

		observability.LogNodeStart(base.logger, id, string(mode))

		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, id, string(mode))
		}

		nodeStart := time.Now()
		out, nodeErr := d.executeNode(base.forNode(nodeTracingCtx, id, mode), id, mode, in)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeTracingCtx, id, string(mode), nodeDuration, nodeErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}
		if nodeErr != nil {
			observability.LogNodeError(base.logger, id, nodeErr)
			return nil, id, nodeErr
		}
		observability.LogNodeComplete(base.logger, id, float64(nodeDuration.Milliseconds()), out.Out().Len())

		outputs[id] = out
		for _, h := range cfg.hooks {
			h(id, mode, out)
		}
	}

	return outputs, order[len(order)-1], nil
}

// gatherInputs builds a node's Inputs from the outputs of its producers.
func (d *DAG) gatherInputs(id string, outputs map[string]Outputs) (Inputs, error) {
	edges := d.incoming[id]
	in := make(Inputs, len(edges))
	for _, e := range edges {
		produced, ran := outputs[e.From.NodeID]
		if !ran {
			return nil, &NodeError{
				NodeID: id,
				Op:     "inputs",
				Err:    fmt.Errorf("%w: producer %s has not run", ErrMissingUpstreamOutput, e.From.NodeID),
			}
		}
		f, ok := produced[e.From.Port]
		if !ok {
			return nil, &NodeError{
				NodeID: id,
				Op:     "inputs",
				Err:    fmt.Errorf("%w: %s produced no port %q", ErrMissingUpstreamOutput, e.From.NodeID, e.From.Port),
			}
		}
		in[e.To.Port] = f
	}
	return in, nil
}

// executeNode calls the node's lifecycle method with panic recovery.
func (d *DAG) executeNode(ctx Context, id string, mode Mode, in Inputs) (out Outputs, err error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, &NodeError{NodeID: id, Op: "lookup", Err: ErrUnknownNode}
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &PanicError{
				NodeID: id,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	switch mode {
	case ModeFit:
		out, err = n.Fit(ctx, in)
	default:
		out, err = n.Predict(ctx, in)
	}
	if err != nil {
		var ne *NodeError
		if errors.As(err, &ne) && ne.NodeID == id {
			return nil, err
		}
		return nil, &NodeError{NodeID: id, Op: string(mode), Err: err}
	}
	return out, nil
}
