/*
Package config loads event bus settings from YAML or JSON.

# Overview

Values wraps a map[string]any and provides typed accessors that return a
default on missing keys or type mismatches. Bus extracts the required bus
settings and fails loudly instead of defaulting them.

	vals, err := config.FromFile("eventbus.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	cfg, err := vals.Bus()
	if err != nil {
	    log.Fatal(err) // e.g. "eventbus.yaml: missing required config key: event_ttl"
	}
	bus, err := eventbus.New(cfg)

A matching file:

	queue_batch_size: 50
	max_retry_attempts: 3
	queue_timeout: 2s
	max_queued_events: 1000
	event_ttl: 5m
	async_timeout: 10000   # milliseconds
	drain_interval: 30s    # optional
	parking_db: parked.db  # optional

# Durations

Duration accepts:
  - string: parsed with time.ParseDuration ("250ms", "1h30m")
  - int/int64/integral float64: milliseconds
  - time.Duration: used directly

# Thread Safety

Values is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
