package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("eventbus")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartPublishSpan starts a span for one publish call.
	StartPublishSpan(ctx context.Context, typeTag, correlationID string) (context.Context, trace.Span)

	// StartDrainSpan starts a span for one drain pass over a type's queue.
	StartDrainSpan(ctx context.Context, typeTag string, queued int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// Configure the global tracer provider before calling this function:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartPublishSpan starts a publish span.
func (m *otelSpanManager) StartPublishSpan(ctx context.Context, typeTag, correlationID string) (context.Context, trace.Span) {
	return StartPublishSpan(ctx, typeTag, correlationID)
}

// StartDrainSpan starts a drain span.
func (m *otelSpanManager) StartDrainSpan(ctx context.Context, typeTag string, queued int) (context.Context, trace.Span) {
	return StartDrainSpan(ctx, typeTag, queued)
}

// EndSpanWithError completes a span.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartPublishSpan starts a span for a publish call on the global tracer.
func StartPublishSpan(ctx context.Context, typeTag, correlationID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventbus.publish",
		trace.WithAttributes(
			attribute.String("event.type_tag", typeTag),
			attribute.String("event.correlation_id", correlationID),
		),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

// StartDrainSpan starts a span for a drain pass on the global tracer.
func StartDrainSpan(ctx context.Context, typeTag string, queued int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventbus.drain",
		trace.WithAttributes(
			attribute.String("event.type_tag", typeTag),
			attribute.Int("queue.size", queued),
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
