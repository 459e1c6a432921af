package eventbus

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the structured logger. Default: slog.Default().
// Passing nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(b *Bus) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithSpanManager sets the tracing span manager.
// Default: observability.NoopSpanManager.
func WithSpanManager(s observability.SpanManager) Option {
	return func(b *Bus) {
		if s != nil {
			b.spans = s
		}
	}
}

// WithClock sets the clock used for queue TTL bookkeeping.
func WithClock(c Clock) Option {
	return func(b *Bus) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithParking records every event that leaves the queue undelivered.
func WithParking(store parking.Store) Option {
	return func(b *Bus) {
		b.parking = store
	}
}

// WithDrainInterval enables periodic drain passes once Start is called.
// Default: 0 (drains only run when a subscriber registers or Drain is called).
func WithDrainInterval(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.drainInterval = d
		}
	}
}

// PublishOption configures a single publish call.
type PublishOption func(*publishConfig)

type publishConfig struct {
	awaitAsync bool
	force      bool
	allowQueue bool
	redelivery bool
	timeout    time.Duration
}

func defaultPublishConfig() publishConfig {
	return publishConfig{allowQueue: true}
}

// AwaitAsync runs async handlers sequentially and waits for each one.
func AwaitAsync() PublishOption {
	return func(c *publishConfig) {
		c.awaitAsync = true
	}
}

// ForcePublish skips in-flight duplicate suppression.
func ForcePublish() PublishOption {
	return func(c *publishConfig) {
		c.force = true
	}
}

// WithoutQueue disposes an unhandled event instead of queuing it.
func WithoutQueue() PublishOption {
	return func(c *publishConfig) {
		c.allowQueue = false
	}
}

// WithPublishTimeout overrides the overall PublishAsync deadline.
// It has no effect on Publish.
func WithPublishTimeout(d time.Duration) PublishOption {
	return func(c *publishConfig) {
		c.timeout = d
	}
}
