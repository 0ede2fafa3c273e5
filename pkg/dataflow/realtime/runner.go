package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
)

// ErrStop can be returned by a Handler to end a run early without error.
var ErrStop = errors.New("stop real-time run")

// ErrNoCursors indicates a Runner has no source nodes to move.
var ErrNoCursors = errors.New("no time cursors")

// Cursor is a node whose visible data is bounded by a time cursor.
// source.DataSource implements it.
type Cursor interface {
	SetCurrentTime(now time.Time)
	ResetCurrentTime()
}

// Execution is the result of one triggered scheduler run.
type Execution struct {
	Now     time.Time
	Outputs dataflow.Outputs
}

// Handler observes each execution as it happens.
type Handler func(Execution) error

// Runner executes a DAG on every tick of a Sequence for which its Trigger
// fires.
type Runner struct {
	dag     *dataflow.DAG
	sink    string
	mode    dataflow.Mode
	cursors []Cursor
	trigger Trigger
	handler Handler
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	runOpts []dataflow.RunOption
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink sets the node to run. Defaults to the DAG's unique sink.
func WithSink(nid string) Option {
	return func(r *Runner) { r.sink = nid }
}

// WithMode sets the lifecycle mode of each run. Defaults to predict.
func WithMode(m dataflow.Mode) Option {
	return func(r *Runner) { r.mode = m }
}

// WithCursors sets the nodes whose time cursor is moved on each firing.
// Defaults to every DAG source node implementing Cursor.
func WithCursors(c ...Cursor) Option {
	return func(r *Runner) { r.cursors = c }
}

// WithTrigger sets the firing rule. Defaults to Always.
func WithTrigger(t Trigger) Option {
	return func(r *Runner) { r.trigger = t }
}

// WithHandler sets a callback invoked after each execution.
func WithHandler(h Handler) Option {
	return func(r *Runner) { r.handler = h }
}

// WithLogger sets the logger for trigger events and scheduler runs.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
			r.runOpts = append(r.runOpts, dataflow.WithRunLogger(l))
		}
	}
}

// WithMetrics sets the recorder for trigger and scheduler metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
			r.runOpts = append(r.runOpts, dataflow.WithMetrics(m))
		}
	}
}

// WithRunOptions passes options to every scheduler run.
func WithRunOptions(opts ...dataflow.RunOption) Option {
	return func(r *Runner) { r.runOpts = append(r.runOpts, opts...) }
}

// NewRunner returns a Runner for d.
func NewRunner(d *dataflow.DAG, opts ...Option) (*Runner, error) {
	r := &Runner{
		dag:     d,
		mode:    dataflow.ModePredict,
		trigger: Always(),
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.mode.Validate(); err != nil {
		return nil, err
	}
	if r.sink == "" {
		sink, err := d.UniqueSink()
		if err != nil {
			return nil, err
		}
		r.sink = sink
	} else if !d.HasNode(r.sink) {
		return nil, fmt.Errorf("%w: %s", dataflow.ErrUnknownNode, r.sink)
	}
	if r.cursors == nil {
		for _, id := range d.Sources() {
			n, _ := d.Node(id)
			if c, ok := n.(Cursor); ok {
				r.cursors = append(r.cursors, c)
			}
		}
	}
	if len(r.cursors) == 0 {
		return nil, ErrNoCursors
	}
	return r, nil
}

// Sink returns the node the runner executes.
func (r *Runner) Sink() string { return r.sink }

// Run consumes seq. On each firing it resets every cursor, sets it to the
// tick, and runs the scheduler on the sink. It returns the executions in
// order. A scheduler error stops the run and is returned together with the
// executions completed so far. Cancellation is checked between ticks.
func (r *Runner) Run(ctx context.Context, seq *Sequence) ([]Execution, error) {
	for _, c := range r.cursors {
		c.ResetCurrentTime()
	}

	var execs []Execution
	for {
		if err := ctx.Err(); err != nil {
			return execs, err
		}
		now, ok, err := seq.Next(ctx)
		if err != nil {
			return execs, err
		}
		if !ok {
			return execs, nil
		}

		fired := r.trigger(now)
		r.metrics.RecordTrigger(ctx, fired)
		if !fired {
			continue
		}
		observability.LogTrigger(r.logger, now, r.sink)

		for _, c := range r.cursors {
			c.ResetCurrentTime()
			c.SetCurrentTime(now)
		}
		out, err := r.dag.RunLeqNode(ctx, r.sink, r.mode, r.runOpts...)
		if err != nil {
			return execs, fmt.Errorf("run at %s: %w", now.Format(time.RFC3339), err)
		}
		ex := Execution{Now: now, Outputs: out}
		execs = append(execs, ex)

		if r.handler != nil {
			if err := r.handler(ex); err != nil {
				if errors.Is(err, ErrStop) {
					return execs, nil
				}
				return execs, err
			}
		}
	}
}
