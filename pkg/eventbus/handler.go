package eventbus

import (
	"context"
	"fmt"

	"github.com/randalmurphal/eventbus/pkg/eventbus/event"
)

// Handler processes events delivered by the bus.
//
// Sync handlers run inline on the publishing goroutine. Async handlers run
// on their own goroutine and may be awaited or fire-and-forget depending on
// how the event was published. Returning an error or panicking counts as a
// handler failure.
type Handler interface {
	Handle(ctx context.Context, evt event.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt event.Event) error {
	return f(ctx, evt)
}

// Subscription is the opaque token returned by Subscribe and SubscribeAsync.
type Subscription struct {
	id    uint64
	tag   string
	async bool
	bus   *Bus
}

// ID returns the subscription's unique identifier.
func (s Subscription) ID() uint64 { return s.id }

// TypeTag returns the subscribed type tag.
func (s Subscription) TypeTag() string { return s.tag }

// Async reports whether the subscription is on the async list.
func (s Subscription) Async() bool { return s.async }

// Valid reports whether the token refers to a subscription at all.
func (s Subscription) Valid() bool { return s.bus != nil && s.id != 0 }

// Unsubscribe removes the subscription from whichever list holds it.
func (s Subscription) Unsubscribe() {
	if !s.Valid() {
		return
	}
	if s.async {
		s.bus.UnsubscribeAsync(s)
		return
	}
	s.bus.Unsubscribe(s)
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	key   any
	force bool
}

// WithKey names the handler's identity for duplicate suppression.
// Subscribing a second handler with the same key on the same tag and list
// is a no-op unless Force is also given.
func WithKey(key any) SubscribeOption {
	return func(c *subscribeConfig) {
		c.key = key
	}
}

// Force registers the handler even if an identical one is already present.
func Force() SubscribeOption {
	return func(c *subscribeConfig) {
		c.force = true
	}
}

// SubscribeKind registers a sync handler for a typed kind.
func SubscribeKind[T any](b *Bus, kind event.Kind[T], fn func(ctx context.Context, evt *event.Envelope[T]) error, opts ...SubscribeOption) Subscription {
	return b.Subscribe(kind.Tag(), kindHandler(kind, fn), opts...)
}

// SubscribeKindAsync registers an async handler for a typed kind.
func SubscribeKindAsync[T any](b *Bus, kind event.Kind[T], fn func(ctx context.Context, evt *event.Envelope[T]) error, opts ...SubscribeOption) Subscription {
	return b.SubscribeAsync(kind.Tag(), kindHandler(kind, fn), opts...)
}

func kindHandler[T any](kind event.Kind[T], fn func(ctx context.Context, evt *event.Envelope[T]) error) Handler {
	return HandlerFunc(func(ctx context.Context, evt event.Event) error {
		env, ok := kind.Cast(evt)
		if !ok {
			return fmt.Errorf("%w: want %s, got %T", ErrKindMismatch, kind.Tag(), evt)
		}
		return fn(ctx, env)
	})
}
