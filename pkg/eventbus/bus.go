package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	buserrors "github.com/randalmurphal/eventbus/pkg/eventbus/errors"
	"github.com/randalmurphal/eventbus/pkg/eventbus/event"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

// Bus is an in-process typed event bus.
//
// A Bus is safe for concurrent use. Its registry, retry queue, in-flight
// counters and drain guards are private to the instance; construct one at
// application start and pass it to the components that need it.
type Bus struct {
	cfg Config

	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
	clock         Clock
	parking       parking.Store
	drainInterval time.Duration

	// mu guards everything below. It is never held while a handler runs.
	mu       sync.Mutex
	registry *registry
	inflight *inFlight
	queue    *retryQueue
	draining map[string]bool // tag -> rerun requested
	nextID   uint64
	stats    counters

	// generation increments on Clear so work started before the wipe
	// cannot write stale state back.
	generation uint64

	background *tasks

	loopMu   sync.Mutex
	loopStop chan struct{}
}

// counters are lifetime totals reported by Stats.
type counters struct {
	published   int64
	handled     int64
	unhandled   int64
	suppressed  int64
	failed      int64
	enqueued    int64
	redelivered int64
	expired     int64
	evicted     int64
	exhausted   int64
}

// New creates a bus. The config is validated; see Config.
func New(cfg Config, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bus{
		cfg:        cfg,
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		clock:      systemClock{},
		registry:   newRegistry(),
		inflight:   newInFlight(),
		queue:      newRetryQueue(cfg.MaxQueuedEvents),
		draining:   make(map[string]bool),
		background: newTasks(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config returns the bus configuration.
func (b *Bus) Config() Config {
	return b.cfg
}

// Subscribe registers a sync handler for tag and returns its token.
// If an identical handler is already registered (see WithKey) and Force is
// not given, nothing changes and the existing token is returned.
// Registering triggers a background drain of tag's retry queue.
func (b *Bus) Subscribe(tag string, h Handler, opts ...SubscribeOption) Subscription {
	return b.subscribe(tag, h, false, opts)
}

// SubscribeAsync registers an async handler for tag. Same contract as
// Subscribe.
func (b *Bus) SubscribeAsync(tag string, h Handler, opts ...SubscribeOption) Subscription {
	return b.subscribe(tag, h, true, opts)
}

func (b *Bus) subscribe(tag string, h Handler, async bool, opts []SubscribeOption) Subscription {
	if h == nil {
		return Subscription{}
	}

	cfg := subscribeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	b.nextID++
	s, _ := b.registry.add(tag, &subscriber{
		id:       b.nextID,
		identity: handlerIdentity(h, cfg.key),
		handler:  h,
		async:    async,
	}, cfg.force)
	backlog := b.queue.len(tag) > 0
	b.mu.Unlock()

	if backlog {
		b.spawn(func() {
			b.Drain(context.Background(), tag)
		})
	}

	return Subscription{id: s.id, tag: tag, async: async, bus: b}
}

// Unsubscribe removes a sync subscription. Unknown tokens are a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry.remove(sub.tag, sub.id, false)
}

// UnsubscribeAsync removes an async subscription. Unknown tokens are a no-op.
func (b *Bus) UnsubscribeAsync(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry.remove(sub.tag, sub.id, true)
}

// Clear removes all subscribers, disposes all queued events, and resets
// in-flight counters and drain guards. Clearing a bus that holds live
// state is logged as a warning.
func (b *Bus) Clear() {
	b.mu.Lock()
	subs := b.registry.count()
	inFlight := b.inflight.len()
	draining := len(b.draining)
	queued := b.queue.reset()

	b.registry.reset()
	b.inflight.reset()
	b.draining = make(map[string]bool)
	b.generation++
	b.mu.Unlock()

	if subs > 0 || len(queued) > 0 || inFlight > 0 || draining > 0 {
		observability.LogClear(b.logger, subs, len(queued), inFlight)
	}

	for _, q := range queued {
		b.drop(context.Background(), q, parking.ReasonCleared, nil)
	}
}

// Wait blocks until no background work is running: fire-and-forget
// handlers, subscribe-triggered drains, and any work those start while
// Wait is blocked.
func (b *Bus) Wait() {
	b.background.wait()
}

// spawn runs fn as a supervised background task. Panics are logged.
func (b *Bus) spawn(fn func()) {
	b.background.add()
	go func() {
		defer b.background.done()
		defer func() {
			if err := buserrors.Recover(recover()); err != nil {
				observability.LogBackgroundFailure(b.logger, "", "", err)
			}
		}()
		fn()
	}()
}

// tasks counts running background work. Tasks may start while wait is
// blocked, which sync.WaitGroup does not allow once its count hits zero.
type tasks struct {
	mu   sync.Mutex
	idle *sync.Cond
	n    int
}

func newTasks() *tasks {
	t := &tasks{}
	t.idle = sync.NewCond(&t.mu)
	return t
}

func (t *tasks) add() {
	t.mu.Lock()
	t.n++
	t.mu.Unlock()
}

func (t *tasks) done() {
	t.mu.Lock()
	t.n--
	if t.n == 0 {
		t.idle.Broadcast()
	}
	t.mu.Unlock()
}

func (t *tasks) wait() {
	t.mu.Lock()
	for t.n > 0 {
		t.idle.Wait()
	}
	t.mu.Unlock()
}

// Stats is a point-in-time snapshot of bus state and lifetime counters.
type Stats struct {
	Subscribers      map[string]int
	AsyncSubscribers map[string]int
	Queued           map[string]int
	InFlight         int
	Draining         int

	Published   int64 // publish calls that dispatched
	Handled     int64 // dispatches that found at least one subscriber
	Unhandled   int64 // dispatches that found none
	Suppressed  int64 // in-flight duplicates rejected
	Failed      int64 // dispatches that returned a failure result
	Enqueued    int64 // events placed on the retry queue
	Redelivered int64 // queued events delivered by a drain
	Expired     int64 // queued events dropped for age
	Evicted     int64 // queued events dropped for capacity
	Exhausted   int64 // queued events dropped after retries
}

// TotalQueued sums Queued across tags.
func (s Stats) TotalQueued() int {
	n := 0
	for _, c := range s.Queued {
		n += c
	}
	return n
}

// Stats returns a snapshot.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Subscribers:      b.registry.counts(false),
		AsyncSubscribers: b.registry.counts(true),
		Queued:           b.queue.counts(),
		InFlight:         b.inflight.len(),
		Draining:         len(b.draining),
		Published:        b.stats.published,
		Handled:          b.stats.handled,
		Unhandled:        b.stats.unhandled,
		Suppressed:       b.stats.suppressed,
		Failed:           b.stats.failed,
		Enqueued:         b.stats.enqueued,
		Redelivered:      b.stats.redelivered,
		Expired:          b.stats.expired,
		Evicted:          b.stats.evicted,
		Exhausted:        b.stats.exhausted,
	}
}

// dispose calls evt.Dispose, converting a panic into an error.
func dispose(evt event.Event) (err error) {
	defer func() {
		err = buserrors.Recover(recover())
	}()
	evt.Dispose()
	return nil
}

// drop disposes a queued event that leaves without delivery and records why.
func (b *Bus) drop(ctx context.Context, q *queuedEvent, reason parking.Reason, cause error) {
	tag, id := q.evt.TypeTag(), q.evt.CorrelationID()

	if err := dispose(q.evt); err != nil {
		observability.LogQueueingError(b.logger, tag, id, buserrors.Queueing(err, tag, id))
	}
	b.metrics.RecordDropped(ctx, tag, string(reason))

	if b.parking == nil {
		return
	}
	rec := parking.Record{
		CorrelationID: id,
		TypeTag:       tag,
		Reason:        reason,
		Attempts:      q.attempts,
		EnqueuedAt:    q.enqueuedAt,
		ParkedAt:      b.clock.Now(),
	}
	if cause != nil {
		rec.LastError = cause.Error()
	}
	if err := b.parking.Park(rec); err != nil {
		observability.LogParkingError(b.logger, tag, id, err)
	}
}
