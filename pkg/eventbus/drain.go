package eventbus

import (
	"context"
	"runtime"
	"time"

	buserrors "github.com/randalmurphal/eventbus/pkg/eventbus/errors"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

// DrainReport summarizes one drain pass over a type tag's retry queue.
type DrainReport struct {
	TypeTag string

	// Skipped is true when another drain of the tag was already running.
	Skipped bool

	Delivered int
	Retained  int
	Expired   int
	Exhausted int
	Evicted   int
}

// Dropped is the number of entries that left the queue undelivered.
func (r DrainReport) Dropped() int {
	return r.Expired + r.Exhausted + r.Evicted
}

// Drain retries delivery of tag's queued events.
//
// At most one drain per tag runs at a time; a concurrent call returns a
// report with Skipped set and asks the running pass to go again once it
// finishes. Events enqueued for a subscribed tag while a pass runs do the
// same, so they are not left waiting for the next Subscribe or tick.
//
// Entries older than Config.EventTTL are dropped. The rest are redelivered
// in batches of Config.QueueBatchSize, each bounded by Config.QueueTimeout.
// A failed entry stays queued until it has failed more than
// Config.MaxRetryAttempts times.
//
// Cancelling ctx stops the pass between batches; unprocessed entries stay
// queued.
func (b *Bus) Drain(ctx context.Context, tag string) DrainReport {
	report := DrainReport{TypeTag: tag}

	b.mu.Lock()
	if _, busy := b.draining[tag]; busy {
		b.draining[tag] = true
		b.mu.Unlock()
		report.Skipped = true
		return report
	}
	entries := b.queue.take(tag)
	if len(entries) == 0 {
		b.mu.Unlock()
		return report
	}
	b.draining[tag] = false
	gen := b.generation
	b.mu.Unlock()

	ctx, span := b.spans.StartDrainSpan(ctx, tag, len(entries))
	start := time.Now()
	elapsed := observability.TimedOperation()

	var kept []*queuedEvent
	next := 0
	for next < len(entries) {
		if next > 0 && !b.yield(ctx, gen) {
			break
		}
		end := min(next+b.cfg.QueueBatchSize, len(entries))
		for ; next < end && ctx.Err() == nil; next++ {
			if q := entries[next]; b.redeliver(ctx, q, &report) {
				kept = append(kept, q)
			}
		}
		if next < end {
			break
		}
	}
	kept = append(kept, entries[next:]...)

	b.mu.Lock()
	stale := b.generation != gen
	var evicted []*queuedEvent
	rerun := false
	if !stale {
		evicted = b.queue.restore(tag, kept)
		b.stats.evicted += int64(len(evicted))
		syncSubs, asyncSubs := b.registry.snapshot(tag)
		rerun = b.draining[tag] && b.queue.len(tag) > 0 && len(syncSubs)+len(asyncSubs) > 0
		delete(b.draining, tag)
	}
	b.mu.Unlock()

	if stale {
		// Clear ran mid-pass and already reset the drain guard.
		for _, q := range kept {
			b.drop(ctx, q, parking.ReasonCleared, q.lastErr)
		}
		kept = nil
	}
	for _, q := range evicted {
		observability.LogQueueEvicted(b.logger, tag, q.evt.CorrelationID(), b.cfg.MaxQueuedEvents)
		b.drop(ctx, q, parking.ReasonEvicted, q.lastErr)
	}

	report.Evicted = len(evicted)
	report.Retained = max(len(kept)-len(evicted), 0)

	b.metrics.RecordDrain(ctx, tag, report.Delivered, time.Since(start))
	observability.LogDrainPass(b.logger, tag, report.Delivered, report.Retained, report.Dropped(), elapsed())
	b.spans.EndSpanWithError(span, nil)

	if rerun {
		b.spawn(func() {
			b.Drain(context.Background(), tag)
		})
	}
	return report
}

// DrainAll drains every tag that has queued events, one tag at a time.
func (b *Bus) DrainAll(ctx context.Context) []DrainReport {
	b.mu.Lock()
	tags := b.queue.tags()
	b.mu.Unlock()

	reports := make([]DrainReport, 0, len(tags))
	for _, tag := range tags {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, b.Drain(ctx, tag))
	}
	return reports
}

// yield gives other goroutines a turn between batches. It reports false
// when the pass should stop.
func (b *Bus) yield(ctx context.Context, gen uint64) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	runtime.Gosched()

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation == gen
}

// redeliver handles one queued entry and reports whether it stays queued.
func (b *Bus) redeliver(ctx context.Context, q *queuedEvent, report *DrainReport) bool {
	tag, id := q.evt.TypeTag(), q.evt.CorrelationID()

	if age := b.clock.Now().Sub(q.enqueuedAt); age > b.cfg.EventTTL {
		observability.LogEventExpired(b.logger, tag, id, age)
		b.bump(&b.stats.expired)
		report.Expired++
		b.drop(ctx, q, parking.ReasonExpired, q.lastErr)
		return false
	}

	cfg := publishConfig{force: true, awaitAsync: true, redelivery: true}
	res := guard(ctx, b.cfg.QueueTimeout, "redeliver", tag, id, func(ctx context.Context) (bool, error) {
		r := b.publish(ctx, q.evt, cfg)
		return r.Value, r.Err
	})

	err := res.Err
	if err == nil && !res.Value {
		err = ErrNotDelivered
	}
	if err == nil {
		b.bump(&b.stats.redelivered)
		report.Delivered++
		if derr := dispose(q.evt); derr != nil {
			observability.LogQueueingError(b.logger, tag, id, buserrors.Queueing(derr, tag, id))
		}
		return false
	}

	q.attempts++
	q.lastErr = err
	if q.attempts <= b.cfg.MaxRetryAttempts {
		return true
	}

	observability.LogRetryExhausted(b.logger, tag, id, q.attempts, err)
	b.bump(&b.stats.exhausted)
	report.Exhausted++
	b.drop(ctx, q, parking.ReasonRetryExhausted, err)
	return false
}

func (b *Bus) bump(counter *int64) {
	b.mu.Lock()
	*counter++
	b.mu.Unlock()
}

// Start runs a drain pass over every queued tag each drain interval
// (see WithDrainInterval) until Stop is called or ctx is done. Without an
// interval, or when already running, Start does nothing.
func (b *Bus) Start(ctx context.Context) {
	if b.drainInterval <= 0 {
		return
	}

	b.loopMu.Lock()
	if b.loopStop != nil {
		b.loopMu.Unlock()
		return
	}
	stop := make(chan struct{})
	b.loopStop = stop
	b.loopMu.Unlock()

	go b.run(ctx, stop)
}

// Stop halts periodic draining. A pass already underway finishes.
func (b *Bus) Stop() {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()

	if b.loopStop == nil {
		return
	}
	close(b.loopStop)
	b.loopStop = nil
}

func (b *Bus) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(b.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.loopMu.Lock()
			if b.loopStop == stop {
				b.loopStop = nil
			}
			b.loopMu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			b.DrainAll(ctx)
		}
	}
}
