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

// Drop reasons recorded with RecordDropped.
const (
	DropEvicted        = "evicted"
	DropExpired        = "expired"
	DropRetryExhausted = "retry_exhausted"
	DropCleared        = "cleared"
)

// MetricsRecorder records event bus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records a publish call with its outcome and duration.
	RecordPublish(ctx context.Context, typeTag string, handled bool, duration time.Duration, err error)

	// RecordSuppressed records a publish rejected as an in-flight duplicate.
	RecordSuppressed(ctx context.Context, typeTag string)

	// RecordQueued records an unhandled event entering the retry queue.
	RecordQueued(ctx context.Context, typeTag string)

	// RecordDropped records an event leaving the queue without delivery.
	RecordDropped(ctx context.Context, typeTag, reason string)

	// RecordHandlerError records a subscriber failure.
	RecordHandlerError(ctx context.Context, typeTag string, async bool)

	// RecordDrain records one drain pass.
	RecordDrain(ctx context.Context, typeTag string, delivered int, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	publishes      metric.Int64Counter
	publishLatency metric.Float64Histogram
	suppressed     metric.Int64Counter
	queued         metric.Int64Counter
	dropped        metric.Int64Counter
	handlerErrors  metric.Int64Counter
	drainDelivered metric.Int64Counter
	drainLatency   metric.Float64Histogram
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

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventbus")

	publishes, err := meter.Int64Counter("eventbus.publish.count",
		metric.WithDescription("Number of publish calls"),
	)
	if err != nil {
		return nil, err
	}

	publishLatency, err := meter.Float64Histogram("eventbus.publish.latency_ms",
		metric.WithDescription("Publish latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	suppressed, err := meter.Int64Counter("eventbus.publish.suppressed",
		metric.WithDescription("Publishes rejected as in-flight duplicates"),
	)
	if err != nil {
		return nil, err
	}

	queued, err := meter.Int64Counter("eventbus.queue.enqueued",
		metric.WithDescription("Unhandled events placed on the retry queue"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("eventbus.queue.dropped",
		metric.WithDescription("Events that left the retry queue without delivery"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("eventbus.handler.errors",
		metric.WithDescription("Number of handler failures"),
	)
	if err != nil {
		return nil, err
	}

	drainDelivered, err := meter.Int64Counter("eventbus.drain.delivered",
		metric.WithDescription("Queued events delivered by drain passes"),
	)
	if err != nil {
		return nil, err
	}

	drainLatency, err := meter.Float64Histogram("eventbus.drain.latency_ms",
		metric.WithDescription("Drain pass latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		publishes:      publishes,
		publishLatency: publishLatency,
		suppressed:     suppressed,
		queued:         queued,
		dropped:        dropped,
		handlerErrors:  handlerErrors,
		drainDelivered: drainDelivered,
		drainLatency:   drainLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
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

// RecordPublish records a publish call.
func (m *otelMetrics) RecordPublish(ctx context.Context, typeTag string, handled bool, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("type_tag", typeTag),
		attribute.Bool("handled", handled),
		attribute.Bool("success", err == nil),
	)
	m.publishes.Add(ctx, 1, attrs)
	m.publishLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordSuppressed records a suppressed duplicate.
func (m *otelMetrics) RecordSuppressed(ctx context.Context, typeTag string) {
	m.suppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("type_tag", typeTag)))
}

// RecordQueued records an enqueue.
func (m *otelMetrics) RecordQueued(ctx context.Context, typeTag string) {
	m.queued.Add(ctx, 1, metric.WithAttributes(attribute.String("type_tag", typeTag)))
}

// RecordDropped records a drop.
func (m *otelMetrics) RecordDropped(ctx context.Context, typeTag, reason string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type_tag", typeTag),
		attribute.String("reason", reason),
	))
}

// RecordHandlerError records a handler failure.
func (m *otelMetrics) RecordHandlerError(ctx context.Context, typeTag string, async bool) {
	m.handlerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type_tag", typeTag),
		attribute.Bool("async", async),
	))
}

// RecordDrain records a drain pass.
func (m *otelMetrics) RecordDrain(ctx context.Context, typeTag string, delivered int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("type_tag", typeTag))
	m.drainDelivered.Add(ctx, int64(delivered), attrs)
	m.drainLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}
