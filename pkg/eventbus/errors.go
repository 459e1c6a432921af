package eventbus

import "errors"

// Sentinel errors.
var (
	// ErrInvalidConfig indicates a Config field is missing or out of range.
	ErrInvalidConfig = errors.New("invalid event bus config")

	// ErrNilEvent indicates Publish was called with a nil event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNoTypeTag indicates an event kind has no resolvable type tag.
	ErrNoTypeTag = errors.New("event has no type tag")

	// ErrNotDelivered indicates a redelivery found no subscriber.
	ErrNotDelivered = errors.New("no subscriber handled the event")

	// ErrKindMismatch indicates a typed handler received an event of another kind.
	ErrKindMismatch = errors.New("event does not match subscribed kind")
)
