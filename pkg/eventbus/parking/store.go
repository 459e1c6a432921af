// Package parking records events that left the bus without being delivered.
//
// Only metadata is kept. Parked records are an audit trail for operators
// and are never replayed onto the bus.
package parking

import (
	"errors"
	"time"
)

// Reason explains why an event was parked.
type Reason string

const (
	// ReasonEvicted means the retry queue was full and dropped the entry.
	ReasonEvicted Reason = "evicted"

	// ReasonExpired means the entry outlived the event TTL.
	ReasonExpired Reason = "expired"

	// ReasonRetryExhausted means redelivery failed too many times.
	ReasonRetryExhausted Reason = "retry_exhausted"

	// ReasonCleared means the bus was cleared while the event was queued.
	ReasonCleared Reason = "cleared"
)

// Record describes one parked event.
type Record struct {
	CorrelationID string
	TypeTag       string
	Reason        Reason
	Attempts      int
	EnqueuedAt    time.Time
	ParkedAt      time.Time
	LastError     string
}

// Store persists parked records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Park stores a record. A record with the same correlation ID replaces
	// the previous one.
	Park(rec Record) error

	// List returns up to limit records, most recently parked first.
	// A limit <= 0 returns everything.
	List(limit int) ([]Record, error)

	// ListByTag is List filtered to one type tag.
	ListByTag(typeTag string, limit int) ([]Record, error)

	// Count returns the number of records.
	Count() (int, error)

	// Delete removes a record. Returns nil if it doesn't exist.
	Delete(correlationID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("parking store closed")
