package event

import "errors"

var (
	// ErrEmptyTag indicates a kind was declared without a type tag.
	ErrEmptyTag = errors.New("event type tag is empty")

	// ErrTagConflict indicates a tag is already bound to another payload type.
	ErrTagConflict = errors.New("event type tag already bound")
)
