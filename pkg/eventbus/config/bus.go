package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
)

// Keys read by Bus.
const (
	KeyQueueBatchSize   = "queue_batch_size"
	KeyMaxRetryAttempts = "max_retry_attempts"
	KeyQueueTimeout     = "queue_timeout"
	KeyMaxQueuedEvents  = "max_queued_events"
	KeyEventTTL         = "event_ttl"
	KeyAsyncTimeout     = "async_timeout"

	// Optional.
	KeyDrainInterval = "drain_interval"
	KeyParkingDB     = "parking_db"
)

// Sentinel errors.
var (
	// ErrMissingKey indicates a required setting is absent.
	ErrMissingKey = errors.New("missing required config key")

	// ErrInvalidValue indicates a setting has the wrong type.
	ErrInvalidValue = errors.New("invalid config value")
)

// Bus extracts the bus settings. All six are required; nothing is
// defaulted. The result is validated with eventbus.Config.Validate.
// When the values came from FromFile, errors are prefixed with the path.
func (v Values) Bus() (eventbus.Config, error) {
	cfg, err := v.bus()
	if err != nil && v.source != "" {
		return eventbus.Config{}, fmt.Errorf("%s: %w", v.source, err)
	}
	return cfg, err
}

func (v Values) bus() (eventbus.Config, error) {
	var cfg eventbus.Config
	var err error

	if cfg.QueueBatchSize, err = v.requireInt(KeyQueueBatchSize); err != nil {
		return eventbus.Config{}, err
	}
	if cfg.MaxRetryAttempts, err = v.requireInt(KeyMaxRetryAttempts); err != nil {
		return eventbus.Config{}, err
	}
	if cfg.QueueTimeout, err = v.requireDuration(KeyQueueTimeout); err != nil {
		return eventbus.Config{}, err
	}
	if cfg.MaxQueuedEvents, err = v.requireInt(KeyMaxQueuedEvents); err != nil {
		return eventbus.Config{}, err
	}
	if cfg.EventTTL, err = v.requireDuration(KeyEventTTL); err != nil {
		return eventbus.Config{}, err
	}
	if cfg.AsyncTimeout, err = v.requireDuration(KeyAsyncTimeout); err != nil {
		return eventbus.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return eventbus.Config{}, err
	}
	return cfg, nil
}

func (v Values) requireInt(key string) (int, error) {
	if !v.Has(key) {
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	n, ok := v.int(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidValue, key, v.data[key])
	}
	return n, nil
}

func (v Values) requireDuration(key string) (time.Duration, error) {
	if !v.Has(key) {
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	d, ok := v.duration(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a duration or milliseconds, got %v", ErrInvalidValue, key, v.data[key])
	}
	return d, nil
}
