package eventbus

import (
	"fmt"
	"time"
)

// Config holds the bus tuning parameters. Every field is required; the bus
// never substitutes a default behind the caller's back.
type Config struct {
	// QueueBatchSize is the number of queued events processed per drain batch.
	QueueBatchSize int `json:"queue_batch_size" yaml:"queue_batch_size"`

	// MaxRetryAttempts is how many failed redeliveries a queued event survives.
	// Zero drops an event on its first failed redelivery.
	MaxRetryAttempts int `json:"max_retry_attempts" yaml:"max_retry_attempts"`

	// QueueTimeout bounds each redelivery attempt during a drain.
	QueueTimeout time.Duration `json:"queue_timeout" yaml:"queue_timeout"`

	// MaxQueuedEvents caps the retry queue per type tag.
	MaxQueuedEvents int `json:"max_queued_events" yaml:"max_queued_events"`

	// EventTTL is the maximum age of a queued event before it expires.
	EventTTL time.Duration `json:"event_ttl" yaml:"event_ttl"`

	// AsyncTimeout bounds each awaited async handler and is the default
	// overall deadline for PublishAsync.
	AsyncTimeout time.Duration `json:"async_timeout" yaml:"async_timeout"`
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.QueueBatchSize <= 0:
		return fmt.Errorf("%w: queue batch size must be positive, got %d", ErrInvalidConfig, c.QueueBatchSize)
	case c.MaxRetryAttempts < 0:
		return fmt.Errorf("%w: max retry attempts must not be negative, got %d", ErrInvalidConfig, c.MaxRetryAttempts)
	case c.QueueTimeout <= 0:
		return fmt.Errorf("%w: queue timeout must be positive, got %s", ErrInvalidConfig, c.QueueTimeout)
	case c.MaxQueuedEvents <= 0:
		return fmt.Errorf("%w: max queued events must be positive, got %d", ErrInvalidConfig, c.MaxQueuedEvents)
	case c.EventTTL <= 0:
		return fmt.Errorf("%w: event TTL must be positive, got %s", ErrInvalidConfig, c.EventTTL)
	case c.AsyncTimeout <= 0:
		return fmt.Errorf("%w: async timeout must be positive, got %s", ErrInvalidConfig, c.AsyncTimeout)
	}
	return nil
}
