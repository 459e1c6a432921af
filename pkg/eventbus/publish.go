package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	buserrors "github.com/randalmurphal/eventbus/pkg/eventbus/errors"
	"github.com/randalmurphal/eventbus/pkg/eventbus/event"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

// Publish delivers evt to every subscriber registered for its type tag.
//
// Sync handlers run first, in registration order, on the caller's
// goroutine. Async handlers run afterwards: fire-and-forget by default, or
// one at a time in registration order with AwaitAsync. The first handler
// failure aborts the rest of the chain and is returned as a failed result.
//
// The result value reports whether any subscriber existed. An event nobody
// handled is queued for redelivery unless WithoutQueue is given. Publishing
// an event whose correlation ID is already in flight returns false without
// dispatching, unless the event is re-publishable or ForcePublish is given.
//
// Publish never panics on handler failure; every outcome is a Result.
func (b *Bus) Publish(ctx context.Context, evt event.Event, opts ...PublishOption) Result[bool] {
	cfg := defaultPublishConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return b.publish(ctx, evt, cfg)
}

// PublishAsync is Publish with AwaitAsync, bounded by an overall deadline
// of Config.AsyncTimeout (or WithPublishTimeout). On timeout it returns a
// failed result; the handlers are not cancelled and may still be running.
func (b *Bus) PublishAsync(ctx context.Context, evt event.Event, opts ...PublishOption) Result[bool] {
	cfg := defaultPublishConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.awaitAsync = true

	if evt == nil {
		return failed[bool](ErrNilEvent)
	}
	tag, id, err := describe(evt)
	if err != nil {
		return failed[bool](err)
	}

	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = b.cfg.AsyncTimeout
	}
	return guard(ctx, timeout, "publish_async", tag, id, func(ctx context.Context) (bool, error) {
		res := b.publish(ctx, evt, cfg)
		return res.Value, res.Err
	})
}

// describe reads the event's tag and correlation ID, converting a panic in
// either accessor into an error.
func describe(evt event.Event) (tag, id string, err error) {
	defer func() {
		if perr := buserrors.Recover(recover()); perr != nil {
			err = perr
		}
	}()
	return evt.TypeTag(), evt.CorrelationID(), nil
}

func (b *Bus) publish(ctx context.Context, evt event.Event, cfg publishConfig) (res Result[bool]) {
	defer func() {
		if err := buserrors.Recover(recover()); err != nil {
			res = failed[bool](err)
		}
	}()

	if evt == nil {
		return failed[bool](ErrNilEvent)
	}
	tag, id := evt.TypeTag(), evt.CorrelationID()
	if tag == "" {
		return failed[bool](fmt.Errorf("%w: correlation id %q", ErrNoTypeTag, id))
	}

	start := time.Now()
	ctx, span := b.spans.StartPublishSpan(ctx, tag, id)

	b.mu.Lock()
	if !cfg.force && !evt.RePublishable() && b.inflight.active(id) {
		b.stats.suppressed++
		b.mu.Unlock()

		b.metrics.RecordSuppressed(ctx, tag)
		b.spans.AddSpanEvent(ctx, "suppressed")
		b.spans.EndSpanWithError(span, nil)
		return succeeded(false)
	}
	b.inflight.acquire(id)
	gen := b.generation
	b.stats.published++
	syncSubs, asyncSubs := b.registry.snapshot(tag)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.generation == gen {
			b.inflight.release(id)
		}
		b.mu.Unlock()
	}()

	handled := len(syncSubs)+len(asyncSubs) > 0

	// Redeliveries leave disposal to the drainer.
	var hold *lease
	if handled && !cfg.redelivery {
		hold = newLease(b, evt)
	}

	err := b.dispatch(ctx, evt, syncSubs, asyncSubs, cfg.awaitAsync, hold)
	hold.release()

	b.mu.Lock()
	if handled {
		b.stats.handled++
	} else {
		b.stats.unhandled++
	}
	if err != nil {
		b.stats.failed++
	}
	b.mu.Unlock()

	if !handled && !cfg.redelivery {
		if cfg.allowQueue {
			b.enqueue(ctx, evt)
		} else if derr := dispose(evt); derr != nil {
			observability.LogQueueingError(b.logger, tag, id, buserrors.Queueing(derr, tag, id))
		}
	}

	b.metrics.RecordPublish(ctx, tag, handled, time.Since(start), err)
	b.spans.EndSpanWithError(span, err)

	if err != nil {
		return failed[bool](err)
	}
	return succeeded(handled)
}

// dispatch runs the handler chain. It returns the first failure.
func (b *Bus) dispatch(ctx context.Context, evt event.Event, syncSubs, asyncSubs []*subscriber, awaitAsync bool, hold *lease) error {
	tag, id := evt.TypeTag(), evt.CorrelationID()

	for _, s := range syncSubs {
		if err := invoke(ctx, s, evt); err != nil {
			err = buserrors.Handler(err, "handle", tag, id)
			observability.LogHandlerError(b.logger, tag, id, err)
			b.metrics.RecordHandlerError(ctx, tag, false)
			return err
		}
	}

	for _, s := range asyncSubs {
		if !awaitAsync {
			b.fireAndForget(ctx, s, evt, hold)
			continue
		}

		hold.acquire()
		res := guard(ctx, b.cfg.AsyncTimeout, "handle", tag, id, func(ctx context.Context) (struct{}, error) {
			defer hold.release()
			return struct{}{}, invoke(ctx, s, evt)
		})
		if res.Err != nil {
			err := res.Err
			var busErr *buserrors.BusError
			if !errors.As(err, &busErr) {
				err = buserrors.Handler(err, "handle", tag, id)
			}
			observability.LogHandlerError(b.logger, tag, id, err)
			b.metrics.RecordHandlerError(ctx, tag, true)
			return err
		}
	}
	return nil
}

// fireAndForget runs an async handler in the background. Its deadline
// bounds the supervising task; failures are logged.
func (b *Bus) fireAndForget(ctx context.Context, s *subscriber, evt event.Event, hold *lease) {
	tag, id := evt.TypeTag(), evt.CorrelationID()
	ctx = context.WithoutCancel(ctx)

	hold.acquire()
	b.spawn(func() {
		res := guard(ctx, b.cfg.AsyncTimeout, "handle", tag, id, func(ctx context.Context) (struct{}, error) {
			defer hold.release()
			return struct{}{}, invoke(ctx, s, evt)
		})
		if res.Err != nil {
			observability.LogBackgroundFailure(b.logger, tag, id, res.Err)
			b.metrics.RecordHandlerError(ctx, tag, true)
		}
	})
}

// invoke calls one handler, converting a panic into an error.
func invoke(ctx context.Context, s *subscriber, evt event.Event) (err error) {
	defer func() {
		if perr := buserrors.Recover(recover()); perr != nil {
			err = perr
		}
	}()
	return s.handler.Handle(ctx, evt)
}

// enqueue puts an unhandled event on the retry queue, evicting the oldest
// entry of its tag when full.
func (b *Bus) enqueue(ctx context.Context, evt event.Event) {
	tag := evt.TypeTag()
	q := &queuedEvent{evt: evt, enqueuedAt: b.clock.Now()}

	b.mu.Lock()
	evicted := b.queue.push(q)
	b.stats.enqueued++
	if evicted != nil {
		b.stats.evicted++
	}
	// A subscriber may have registered, and drained, between dispatch and
	// the push above.
	syncSubs, asyncSubs := b.registry.snapshot(tag)
	late := false
	if len(syncSubs)+len(asyncSubs) > 0 {
		if _, busy := b.draining[tag]; busy {
			// The running pass has taken its snapshot; make it go again.
			b.draining[tag] = true
		} else {
			late = true
		}
	}
	b.mu.Unlock()

	b.metrics.RecordQueued(ctx, tag)

	if evicted != nil {
		etag, eid := evicted.evt.TypeTag(), evicted.evt.CorrelationID()
		observability.LogQueueEvicted(b.logger, etag, eid, b.cfg.MaxQueuedEvents)
		b.drop(ctx, evicted, parking.ReasonEvicted, buserrors.Capacity(etag, eid))
	}

	if late {
		b.spawn(func() {
			b.Drain(context.Background(), tag)
		})
	}
}

// lease disposes an event once the publish call and every handler it
// started have finished. A nil lease is a no-op.
type lease struct {
	bus *Bus
	evt event.Event

	mu   sync.Mutex
	refs int
}

func newLease(b *Bus, evt event.Event) *lease {
	return &lease{bus: b, evt: evt, refs: 1}
}

func (l *lease) acquire() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()
}

func (l *lease) release() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.refs--
	last := l.refs == 0
	l.mu.Unlock()

	if !last {
		return
	}
	if err := dispose(l.evt); err != nil {
		tag, id := l.evt.TypeTag(), l.evt.CorrelationID()
		observability.LogQueueingError(l.bus.logger, tag, id, buserrors.Queueing(err, tag, id))
	}
}
