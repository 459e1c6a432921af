// Package errors classifies failures raised while dispatching events.
//
// Every failure the bus reports carries one Category:
//   - Handler: a subscriber returned an error or panicked
//   - Queueing: the retry queue could not accept an event
//   - Timeout: an awaited handler or a drain item exceeded its deadline
//   - Capacity: the retry queue was full and evicted its oldest entry
//   - Cancelled: the caller's context ended before dispatch finished
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents which part of the bus produced an error.
type Category int

const (
	// CategoryHandler indicates a subscriber failed.
	CategoryHandler Category = iota

	// CategoryQueueing indicates enqueueing an unhandled event failed.
	CategoryQueueing

	// CategoryTimeout indicates a deadline fired before completion.
	CategoryTimeout

	// CategoryCapacity indicates the retry queue was at capacity.
	// It is logged only, never returned to a publisher.
	CategoryCapacity

	// CategoryCancelled indicates the caller's context was cancelled.
	CategoryCancelled

	// CategoryUnknown is returned for errors the bus did not produce.
	CategoryUnknown
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryHandler:
		return "handler"
	case CategoryQueueing:
		return "queueing"
	case CategoryTimeout:
		return "timeout"
	case CategoryCapacity:
		return "capacity"
	case CategoryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinel errors.
var (
	// ErrTimeout is wrapped by every timeout BusError.
	ErrTimeout = errors.New("operation timed out")

	// ErrQueueFull is wrapped by capacity errors.
	ErrQueueFull = errors.New("retry queue full")
)

// BusError wraps an error with its category and event context.
type BusError struct {
	// Category classifies the failure.
	Category Category

	// TypeTag of the event involved, if any.
	TypeTag string

	// CorrelationID of the event involved, if any.
	CorrelationID string

	// Op describes what was being attempted ("publish", "drain", "enqueue").
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BusError) Error() string {
	if e.TypeTag != "" {
		return fmt.Sprintf("%s %s [%s]: %v (category: %s)",
			e.Op, e.TypeTag, e.CorrelationID, e.Err, e.Category)
	}
	return fmt.Sprintf("%s: %v (category: %s)", e.Op, e.Err, e.Category)
}

// Unwrap returns the underlying error.
func (e *BusError) Unwrap() error {
	return e.Err
}

func newBusError(cat Category, op, tag, correlationID string, err error) *BusError {
	return &BusError{
		Category:      cat,
		TypeTag:       tag,
		CorrelationID: correlationID,
		Op:            op,
		Err:           err,
	}
}

// Handler creates a handler error.
func Handler(err error, op, tag, correlationID string) *BusError {
	return newBusError(CategoryHandler, op, tag, correlationID, err)
}

// Queueing creates a queueing error.
func Queueing(err error, tag, correlationID string) *BusError {
	return newBusError(CategoryQueueing, "enqueue", tag, correlationID, err)
}

// Timeout creates a timeout error wrapping ErrTimeout.
func Timeout(op, tag, correlationID string) *BusError {
	return newBusError(CategoryTimeout, op, tag, correlationID, ErrTimeout)
}

// Capacity creates a capacity error wrapping ErrQueueFull.
func Capacity(tag, correlationID string) *BusError {
	return newBusError(CategoryCapacity, "enqueue", tag, correlationID, ErrQueueFull)
}

// Cancelled creates a cancellation error from a context error.
func Cancelled(err error, op, tag, correlationID string) *BusError {
	return newBusError(CategoryCancelled, op, tag, correlationID, err)
}

// Categorize determines which category an error belongs to.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var busErr *BusError
	if errors.As(err, &busErr) {
		return busErr.Category
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return CategoryHandler
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, context.Canceled):
		return CategoryCancelled
	case errors.Is(err, ErrQueueFull):
		return CategoryCapacity
	}
	return CategoryUnknown
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	return Categorize(err) == CategoryTimeout
}

// IsHandler reports whether err came from a subscriber.
func IsHandler(err error) bool {
	return Categorize(err) == CategoryHandler
}
