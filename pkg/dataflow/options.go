package dataflow

import (
	"log/slog"

	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
)

// RunHook observes every node the scheduler executes, in execution order.
type RunHook func(nodeID string, mode Mode, out Outputs)

// runConfig holds configuration for one scheduler run.
type runConfig struct {
	runID          string
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	hooks          []RunHook
}

func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures scheduler behavior.
type RunOption func(*runConfig)

// WithRunID sets the run identifier used in logs and spans.
// Defaults to the Context run id, or a fresh UUID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithRunLogger sets the logger for the run. Defaults to the Context logger,
// or slog.Default().
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables metrics recording.
//
// Example:
//
//	out, err := dag.RunLeqNode(ctx, "sink", dataflow.ModeFit,
//	    dataflow.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run and each node.
func WithTracing() RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = true
		c.spans = observability.NewSpanManager()
	}
}

// WithSpanManager enables tracing with a custom span manager.
func WithSpanManager(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm != nil {
			c.tracingEnabled = true
			c.spans = sm
		}
	}
}

// WithRunHook registers a hook called after each node executes.
func WithRunHook(h RunHook) RunOption {
	return func(c *runConfig) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}
