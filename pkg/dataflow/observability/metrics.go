package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records dataflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node lifecycle call with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID, mode string, duration time.Duration, err error)

	// RecordDAGRun records a scheduler run completion.
	RecordDAGRun(ctx context.Context, mode string, success bool, duration time.Duration)

	// RecordSourceLoad records a data source origin call.
	RecordSourceLoad(ctx context.Context, nodeID string, rows int, err error)

	// RecordTrigger records a real-time trigger evaluation.
	RecordTrigger(ctx context.Context, fired bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	dagRuns        metric.Int64Counter
	dagLatency     metric.Float64Histogram
	sourceLoads    metric.Int64Counter
	sourceRows     metric.Int64Histogram
	triggers       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("dataflow")

	nodeExecutions, err := meter.Int64Counter("dataflow.node.executions",
		metric.WithDescription("Number of node fit/predict calls"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("dataflow.node.latency_ms",
		metric.WithDescription("Node fit/predict latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("dataflow.node.errors",
		metric.WithDescription("Number of failed node fit/predict calls"),
	)
	if err != nil {
		return nil, err
	}

	dagRuns, err := meter.Int64Counter("dataflow.dag.runs",
		metric.WithDescription("Number of scheduler runs"),
	)
	if err != nil {
		return nil, err
	}

	dagLatency, err := meter.Float64Histogram("dataflow.dag.latency_ms",
		metric.WithDescription("Scheduler run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	sourceLoads, err := meter.Int64Counter("dataflow.source.loads",
		metric.WithDescription("Number of data source origin calls"),
	)
	if err != nil {
		return nil, err
	}

	sourceRows, err := meter.Int64Histogram("dataflow.source.rows",
		metric.WithDescription("Rows returned by data source origin calls"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	triggers, err := meter.Int64Counter("dataflow.realtime.triggers",
		metric.WithDescription("Number of real-time trigger evaluations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		dagRuns:        dagRuns,
		dagLatency:     dagLatency,
		sourceLoads:    sourceLoads,
		sourceRows:     sourceRows,
		triggers:       triggers,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID, mode string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("mode", mode),
	)

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordDAGRun(ctx context.Context, mode string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	)
	m.dagRuns.Add(ctx, 1, attrs)
	m.dagLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordSourceLoad(ctx context.Context, nodeID string, rows int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Bool("success", err == nil),
	)
	m.sourceLoads.Add(ctx, 1, attrs)
	if err == nil {
		m.sourceRows.Record(ctx, int64(rows), attrs)
	}
}

func (m *otelMetrics) RecordTrigger(ctx context.Context, fired bool) {
	m.triggers.Add(ctx, 1, metric.WithAttributes(attribute.Bool("fired", fired)))
}
