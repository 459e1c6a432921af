package event

import (
	"fmt"
	"reflect"
)

// Kind binds one static type tag to a payload type.
// Declare kinds once at package level:
//
//	var ScreenChanged = event.Define[ScreenPayload]("ui.screen_changed")
//
//	evt := ScreenChanged.New(ScreenPayload{Name: "lobby"})
type Kind[T any] struct {
	tag string
}

// Define declares a kind with the given tag and records it in the
// default registry. It panics if the tag is empty or already bound to a
// different payload type, since both are programming errors caught at init.
func Define[T any](tag string) Kind[T] {
	if err := DefaultRegistry.Register(tag, payloadType[T](), ""); err != nil {
		panic(fmt.Sprintf("event: define %q: %v", tag, err))
	}
	return Kind[T]{tag: tag}
}

// Tag returns the kind's type tag.
func (k Kind[T]) Tag() string {
	return k.tag
}

// New builds an envelope of this kind with a fresh correlation ID.
func (k Kind[T]) New(payload T, opts ...Option) *Envelope[T] {
	return newEnvelope(k.tag, payload, opts...)
}

// Is reports whether evt belongs to this kind.
func (k Kind[T]) Is(evt Event) bool {
	if evt == nil {
		return false
	}
	_, ok := evt.(*Envelope[T])
	return ok && evt.TypeTag() == k.tag
}

// Cast returns evt as an envelope of this kind.
func (k Kind[T]) Cast(evt Event) (*Envelope[T], bool) {
	env, ok := evt.(*Envelope[T])
	if !ok || env.TypeTag() != k.tag {
		return nil, false
	}
	return env, true
}

func payloadType[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
