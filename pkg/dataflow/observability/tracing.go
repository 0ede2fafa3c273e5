package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Uses the global OTel tracer provider.
var tracer = otel.Tracer("dataflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span for an entire scheduler run.
	StartRunSpan(ctx context.Context, dagName, runID, target, mode string) (context.Context, trace.Span)

	// StartNodeSpan starts a span for one node lifecycle call.
	// The node span should be a child of the run span.
	StartNodeSpan(ctx context.Context, nodeID, mode string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// NewProviderSpanManager returns a SpanManager bound to tp instead of the
// global provider.
func NewProviderSpanManager(tp trace.TracerProvider) SpanManager {
	if tp == nil {
		return &otelSpanManager{}
	}
	return &otelSpanManager{tracer: tp.Tracer("dataflow")}
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, dagName, runID, target, mode string) (context.Context, trace.Span) {
	if m.tracer == nil {
		return StartRunSpan(ctx, dagName, runID, target, mode)
	}
	return startRunSpan(m.tracer, ctx, dagName, runID, target, mode)
}

func (m *otelSpanManager) StartNodeSpan(ctx context.Context, nodeID, mode string) (context.Context, trace.Span) {
	if m.tracer == nil {
		return StartNodeSpan(ctx, nodeID, mode)
	}
	return startNodeSpan(m.tracer, ctx, nodeID, mode)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartRunSpan starts a span for an entire scheduler run.
// Uses the global OTel tracer.
func StartRunSpan(ctx context.Context, dagName, runID, target, mode string) (context.Context, trace.Span) {
	return startRunSpan(tracer, ctx, dagName, runID, target, mode)
}

//nolint:revive // tracer first mirrors trace.Tracer.Start call sites
func startRunSpan(t trace.Tracer, ctx context.Context, dagName, runID, target, mode string) (context.Context, trace.Span) {
	return t.Start(ctx, "dataflow.run",
		trace.WithAttributes(
			attribute.String("dag.name", dagName),
			attribute.String("run.id", runID),
			attribute.String("run.target", target),
			attribute.String("run.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartNodeSpan starts a span for one node lifecycle call.
// Uses the global OTel tracer.
func StartNodeSpan(ctx context.Context, nodeID, mode string) (context.Context, trace.Span) {
	return startNodeSpan(tracer, ctx, nodeID, mode)
}

//nolint:revive // tracer first mirrors trace.Tracer.Start call sites
func startNodeSpan(t trace.Tracer, ctx context.Context, nodeID, mode string) (context.Context, trace.Span) {
	return t.Start(ctx, "dataflow.node."+nodeID,
		trace.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("node.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
