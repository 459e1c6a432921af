// Package eventbus provides an in-process typed publish/subscribe bus.
//
// # Overview
//
// Producers publish events; the bus delivers each event to the handlers
// registered for its type tag. Events nobody handled are kept on a bounded
// per-tag retry queue and redelivered when a subscriber arrives.
//
//   - Sync and async handlers, delivered in registration order
//   - Awaited or fire-and-forget async delivery
//   - In-flight duplicate suppression keyed by correlation ID
//   - Bounded retry queue with TTL expiry and retry limits
//   - Deadline guard for awaited work
//   - Exactly-once disposal of every event that enters the bus
//
// # Construction
//
// A Bus is an explicit instance. Build one at startup and pass it to the
// components that need it:
//
//	bus, err := eventbus.New(eventbus.Config{
//	    QueueBatchSize:   50,
//	    MaxRetryAttempts: 3,
//	    QueueTimeout:     2 * time.Second,
//	    MaxQueuedEvents:  1000,
//	    EventTTL:         5 * time.Minute,
//	    AsyncTimeout:     10 * time.Second,
//	}, eventbus.WithLogger(logger))
//
// Every Config field is required. The config package loads one from YAML
// or JSON.
//
// # Events
//
// Define a kind once per payload type, then construct instances from it:
//
//	var OrderPlaced = event.Define[Order]("order.placed")
//
//	evt := OrderPlaced.New(order)
//	res := bus.Publish(ctx, evt)
//
// Any type implementing event.Event can be published.
//
// # Subscribing
//
// Subscribe returns a token that Unsubscribe accepts:
//
//	sub := eventbus.SubscribeKind(bus, OrderPlaced, func(ctx context.Context, evt *event.Envelope[Order]) error {
//	    return ship(ctx, evt.Payload())
//	})
//	defer sub.Unsubscribe()
//
// Registering the same pointer handler, or the same WithKey key, twice on a
// tag is a no-op that returns the existing token. Force overrides this.
// Function handlers have no identity and are never treated as duplicates.
//
// # Results
//
// Publish and PublishAsync never panic on handler failure. They return a
// Result[bool] whose Value reports whether any subscriber existed and whose
// Err carries the first handler failure or timeout as an *errors.BusError.
//
// # Timeouts
//
// Deadlines bound how long the caller waits, not how long a handler runs.
// A handler reported as timed out is not cancelled and may keep running.
// Handlers that must stop early should watch their context.
//
// # Retry Queue
//
// Drain runs automatically when a subscriber registers for a tag with
// queued events. Call Drain or DrainAll directly, or configure
// WithDrainInterval and call Start, to redeliver on a schedule. Events that
// leave the queue undelivered can be recorded with WithParking.
//
// # Thread Safety
//
// All Bus methods are safe for concurrent use. Handlers may publish and
// subscribe re-entrantly; the bus holds no lock while a handler runs.
package eventbus
