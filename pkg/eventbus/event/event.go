// Package event defines the contract every payload published on the bus
// must satisfy, plus a generic envelope and kind declarations for building
// conforming events without an inheritance hierarchy.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is the structural contract for anything published on the bus.
type Event interface {
	// TypeTag is the stable per-kind tag used as the subscriber and queue key.
	TypeTag() string

	// CorrelationID is unique per constructed instance, not per kind.
	CorrelationID() string

	// RePublishable events skip in-flight duplicate suppression.
	RePublishable() bool

	// Dispose releases resources held by the event. The bus calls it once
	// when the event leaves the system.
	Dispose()
}

// Envelope is the generic Event implementation.
// T is the payload type for type-safe access.
type Envelope[T any] struct {
	tag           string
	correlationID string
	rePublishable bool
	createdAt     time.Time
	payload       T

	onDispose   func()
	disposeOnce sync.Once
	disposed    bool
	mu          sync.Mutex
}

// TypeTag returns the kind tag.
func (e *Envelope[T]) TypeTag() string {
	return e.tag
}

// CorrelationID returns the per-instance identifier.
func (e *Envelope[T]) CorrelationID() string {
	return e.correlationID
}

// RePublishable reports whether the envelope bypasses duplicate suppression.
func (e *Envelope[T]) RePublishable() bool {
	return e.rePublishable
}

// CreatedAt returns when the envelope was built.
func (e *Envelope[T]) CreatedAt() time.Time {
	return e.createdAt
}

// Payload returns the strongly-typed payload.
func (e *Envelope[T]) Payload() T {
	return e.payload
}

// Dispose runs the dispose hook. Repeated calls are no-ops.
func (e *Envelope[T]) Dispose() {
	e.disposeOnce.Do(func() {
		e.mu.Lock()
		e.disposed = true
		e.mu.Unlock()
		if e.onDispose != nil {
			e.onDispose()
		}
	})
}

// Disposed reports whether Dispose has run.
func (e *Envelope[T]) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// Option configures envelope creation.
type Option func(*envelopeConfig)

type envelopeConfig struct {
	correlationID string
	rePublishable bool
	createdAt     time.Time
	onDispose     func()
}

// WithCorrelationID sets a specific correlation ID (default: auto-generated UUID).
func WithCorrelationID(id string) Option {
	return func(cfg *envelopeConfig) {
		cfg.correlationID = id
	}
}

// RePublishable marks the envelope as safe to publish while already in flight.
func RePublishable() Option {
	return func(cfg *envelopeConfig) {
		cfg.rePublishable = true
	}
}

// OnDispose registers a hook run when the envelope is disposed.
func OnDispose(fn func()) Option {
	return func(cfg *envelopeConfig) {
		cfg.onDispose = fn
	}
}

// WithCreatedAt sets a specific creation time (default: time.Now()).
func WithCreatedAt(t time.Time) Option {
	return func(cfg *envelopeConfig) {
		cfg.createdAt = t
	}
}

// newEnvelope builds an envelope for the given tag.
func newEnvelope[T any](tag string, payload T, opts ...Option) *Envelope[T] {
	cfg := &envelopeConfig{
		correlationID: uuid.New().String(),
		createdAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Envelope[T]{
		tag:           tag,
		correlationID: cfg.correlationID,
		rePublishable: cfg.rePublishable,
		createdAt:     cfg.createdAt,
		payload:       payload,
		onDispose:     cfg.onDispose,
	}
}
