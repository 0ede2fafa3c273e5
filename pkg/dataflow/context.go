package dataflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
)

// Context provides execution context to nodes.
// It extends context.Context with run metadata and services.
//
// Context is immutable after creation. The scheduler derives a context for
// each node with the node id set and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil.
	Logger() *slog.Logger

	// Metrics returns the metrics recorder. Never returns nil.
	Metrics() observability.MetricsRecorder

	// RunID returns the identifier of the current scheduler run.
	RunID() string

	// NodeID returns the node being executed, or "" outside a node.
	NodeID() string

	// Mode returns the lifecycle mode of the current run.
	Mode() Mode
}

type executionContext struct {
	context.Context

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	runID   string
	nodeID  string
	mode    Mode
}

func (c *executionContext) Logger() *slog.Logger                   { return c.logger }
func (c *executionContext) Metrics() observability.MetricsRecorder { return c.metrics }
func (c *executionContext) RunID() string                          { return c.runID }
func (c *executionContext) NodeID() string                         { return c.nodeID }
func (c *executionContext) Mode() Mode                             { return c.mode }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextMetrics sets the metrics recorder for the context.
func WithContextMetrics(m observability.MetricsRecorder) ContextOption {
	return func(c *executionContext) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithContextRunID sets the run identifier. A UUID is generated otherwise.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// WithMode sets the lifecycle mode reported by the context.
func WithMode(m Mode) ContextOption {
	return func(c *executionContext) {
		c.mode = m
	}
}

// NewContext creates an execution context from a standard context. Useful
// for calling Fit or Predict on a node directly, outside the scheduler.
//
// Example:
//
//	ctx := dataflow.NewContext(context.Background(),
//	    dataflow.WithLogger(logger))
//	out, err := node.Fit(ctx, dataflow.Inputs{dataflow.PortIn: df})
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		runID:   uuid.New().String(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// forNode returns a context for executing one node.
func (c *executionContext) forNode(ctx context.Context, nodeID string, mode Mode) *executionContext {
	return &executionContext{
		Context: ctx,
		logger:  observability.EnrichLogger(c.logger, c.runID, nodeID, string(mode)),
		metrics: c.metrics,
		runID:   c.runID,
		nodeID:  nodeID,
		mode:    mode,
	}
}
