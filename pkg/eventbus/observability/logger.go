// Package observability provides structured logging, metrics and tracing
// for the event bus.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every log helper tolerates a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
func EnrichLogger(logger *slog.Logger, typeTag, correlationID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
	)
}

// LogQueueEvicted logs that a full queue dropped its oldest entry.
func LogQueueEvicted(logger *slog.Logger, typeTag, correlationID string, capacity int) {
	if logger == nil {
		return
	}
	logger.Warn("retry queue full, oldest event dropped",
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
		slog.Int("capacity", capacity),
	)
}

// LogEventExpired logs that a queued event outlived its TTL.
func LogEventExpired(logger *slog.Logger, typeTag, correlationID string, age time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("queued event expired",
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
		slog.Duration("age", age),
	)
}

// LogRetryExhausted logs that a queued event ran out of redelivery attempts.
func LogRetryExhausted(logger *slog.Logger, typeTag, correlationID string, attempts int, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
		slog.Int("attempts", attempts),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Warn("queued event dropped after retries", attrs...)
}

// LogHandlerError logs a subscriber failure surfaced to a publisher.
func LogHandlerError(logger *slog.Logger, typeTag, correlationID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("event handler failed",
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
		slog.String("error", err.Error()),
	)
}

// LogBackgroundFailure logs a fire-and-forget handler failure or timeout.
// Nobody is waiting on these, so the log is the only report.
func LogBackgroundFailure(logger *slog.Logger, typeTag, correlationID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("background event handler failed",
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
		slog.String("error", err.Error()),
	)
}

// LogQueueingError logs a failure to enqueue an unhandled event.
func LogQueueingError(logger *slog.Logger, typeTag, correlationID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("failed to queue unhandled event",
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
		slog.String("error", err.Error()),
	)
}

// LogClear logs that a bus holding live state was cleared.
func LogClear(logger *slog.Logger, subscribers, queued, inFlight int) {
	if logger == nil {
		return
	}
	logger.Warn("clearing event bus with live state",
		slog.Int("subscribers", subscribers),
		slog.Int("queued", queued),
		slog.Int("in_flight", inFlight),
	)
}

// LogDrainPass logs the outcome of one drain pass.
func LogDrainPass(logger *slog.Logger, typeTag string, delivered, retained, dropped int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("drain pass completed",
		slog.String("type_tag", typeTag),
		slog.Int("delivered", delivered),
		slog.Int("retained", retained),
		slog.Int("dropped", dropped),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogParkingError logs a failure to record a parked event (non-fatal).
func LogParkingError(logger *slog.Logger, typeTag, correlationID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("parking record failed",
		slog.String("type_tag", typeTag),
		slog.String("correlation_id", correlationID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
