package eventbus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
	"github.com/randalmurphal/eventbus/pkg/eventbus/event"
	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

func TestQueue_BoundKeepsNewest(t *testing.T) {
	logger, logs := newTestLogger()
	bus := newTestBus(t, eventbus.WithLogger(logger))

	var evts []*event.Envelope[testPayload]
	for i := range 5 {
		evt := testEvent.New(testPayload{N: i})
		evts = append(evts, evt)
		res := bus.Publish(context.Background(), evt)
		require.True(t, res.Ok(), "capacity drops are never surfaced to the publisher")
	}

	stats := bus.Stats()
	assert.Equal(t, 3, stats.Queued[testEvent.Tag()])
	assert.Equal(t, int64(2), stats.Evicted)
	assert.True(t, evts[0].Disposed())
	assert.True(t, evts[1].Disposed())
	assert.False(t, evts[2].Disposed())
	assert.Contains(t, logs.String(), "retry queue full")

	rec := &recorder{}
	bus.Subscribe(testEvent.Tag(), rec)
	bus.Wait()

	assert.Equal(t, []string{
		evts[2].CorrelationID(),
		evts[3].CorrelationID(),
		evts[4].CorrelationID(),
	}, rec.ids())
	for _, evt := range evts {
		assert.True(t, evt.Disposed())
	}
}

func TestDrain_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	store := parking.NewMemoryStore()
	bus := newTestBus(t, eventbus.WithClock(clock), eventbus.WithParking(store))

	evt := testEvent.New(testPayload{})
	bus.Publish(context.Background(), evt)

	clock.Advance(testConfig().EventTTL + time.Second)

	rec := &recorder{}
	bus.Subscribe(testEvent.Tag(), rec)
	bus.Wait()

	assert.Zero(t, rec.calls(), "expired event must never be delivered")
	assert.True(t, evt.Disposed())
	assert.Zero(t, bus.Stats().TotalQueued())
	assert.Equal(t, int64(1), bus.Stats().Expired)

	records, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, parking.ReasonExpired, records[0].Reason)
}

func TestDrain_TTLBoundaryIsInclusive(t *testing.T) {
	clock := newFakeClock()
	bus := newTestBus(t, eventbus.WithClock(clock))

	evt := testEvent.New(testPayload{})
	bus.Publish(context.Background(), evt)
	clock.Advance(testConfig().EventTTL)

	rec := &recorder{}
	bus.Subscribe(testEvent.Tag(), rec)
	bus.Wait()

	assert.Equal(t, 1, rec.calls(), "an event exactly TTL old is still deliverable")
}

func TestDrain_RetryExhaustion(t *testing.T) {
	store := parking.NewMemoryStore()
	bus := newTestBus(t, eventbus.WithParking(store))

	evt := testEvent.New(testPayload{})
	bus.Publish(context.Background(), evt)

	rec := &recorder{err: errors.New("nope")}
	bus.Subscribe(testEvent.Tag(), rec)
	bus.Wait()
	require.Equal(t, 1, rec.calls())
	assert.Equal(t, 1, bus.Stats().Queued[testEvent.Tag()])

	report := bus.Drain(context.Background(), testEvent.Tag())
	assert.Equal(t, 1, report.Retained)
	assert.False(t, evt.Disposed())

	report = bus.Drain(context.Background(), testEvent.Tag())
	assert.Equal(t, 1, report.Exhausted)
	assert.Zero(t, report.Retained)
	assert.Equal(t, 1, report.Dropped())

	assert.Equal(t, 3, rec.calls())
	assert.True(t, evt.Disposed())
	assert.Zero(t, bus.Stats().TotalQueued())
	assert.Equal(t, int64(1), bus.Stats().Exhausted)

	records, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, parking.ReasonRetryExhausted, records[0].Reason)
	assert.Equal(t, 3, records[0].Attempts)
	assert.Contains(t, records[0].LastError, "nope")
}

func TestDrain_NoSubscriberCountsAsFailure(t *testing.T) {
	store := parking.NewMemoryStore()
	bus := newTestBus(t, eventbus.WithParking(store))

	evt := testEvent.New(testPayload{})
	bus.Publish(context.Background(), evt)

	for range 2 {
		report := bus.Drain(context.Background(), testEvent.Tag())
		assert.Equal(t, 1, report.Retained)
	}
	report := bus.Drain(context.Background(), testEvent.Tag())
	assert.Equal(t, 1, report.Exhausted)
	assert.True(t, evt.Disposed())

	records, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].LastError, eventbus.ErrNotDelivered.Error())
}

func TestDrain_EmptyQueue(t *testing.T) {
	bus := newTestBus(t)

	report := bus.Drain(context.Background(), testEvent.Tag())
	assert.Equal(t, eventbus.DrainReport{TypeTag: testEvent.Tag()}, report)
}

func TestDrain_ConcurrentPassSkipped(t *testing.T) {
	bus := newTestBus(t)

	evt := testEvent.New(testPayload{})
	bus.Publish(context.Background(), evt)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	bus.Subscribe(testEvent.Tag(), eventbus.HandlerFunc(func(context.Context, event.Event) error {
		entered <- struct{}{}
		<-release
		return nil
	}))
	<-entered

	assert.Equal(t, 1, bus.Stats().Draining)
	report := bus.Drain(context.Background(), testEvent.Tag())
	assert.True(t, report.Skipped)

	close(release)
	bus.Wait()
	assert.True(t, evt.Disposed())
	assert.Zero(t, bus.Stats().Draining)
}

func TestDrain_CancelledKeepsEntries(t *testing.T) {
	bus := newTestBus(t)

	for i := range 3 {
		bus.Publish(context.Background(), testEvent.New(testPayload{N: i}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := bus.Drain(ctx, testEvent.Tag())
	assert.Zero(t, report.Delivered)
	assert.Equal(t, 3, report.Retained)
	assert.Equal(t, 3, bus.Stats().Queued[testEvent.Tag()])
}

func TestDrain_BatchesAcrossWholeQueue(t *testing.T) {
	bus := newTestBus(t)

	for i := range 3 {
		bus.Publish(context.Background(), testEvent.New(testPayload{N: i}))
	}

	rec := &recorder{}
	bus.Subscribe(testEvent.Tag(), rec)
	bus.Wait()

	assert.Equal(t, 3, rec.calls(), "batch size 2 must still cover all 3 entries")
	assert.Zero(t, bus.Stats().TotalQueued())
}

func TestDrain_QueueTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.QueueTimeout = 20 * time.Millisecond
	bus, err := eventbus.New(cfg, eventbus.WithLogger(nil))
	require.NoError(t, err)

	evt := testEvent.New(testPayload{})
	bus.Publish(context.Background(), evt)

	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int32
	bus.Subscribe(testEvent.Tag(), eventbus.HandlerFunc(func(context.Context, event.Event) error {
		if calls.Add(1) == 1 {
			<-release
		}
		return nil
	}))
	bus.Wait()

	stats := bus.Stats()
	assert.Equal(t, 1, stats.Queued[testEvent.Tag()], "timed-out redelivery stays queued")
	assert.False(t, evt.Disposed())
}

func TestDrainAll(t *testing.T) {
	bus := newTestBus(t)
	bus.Publish(context.Background(), testEvent.New(testPayload{}))
	bus.Publish(context.Background(), otherEvent.New(testPayload{}))

	reports := bus.DrainAll(context.Background())
	require.Len(t, reports, 2)
	assert.Equal(t, testEvent.Tag(), reports[0].TypeTag)
	assert.Equal(t, otherEvent.Tag(), reports[1].TypeTag)
	for _, r := range reports {
		assert.Equal(t, 1, r.Retained)
	}
}

func TestClear_DuringDrainDisposesLeftovers(t *testing.T) {
	bus := newTestBus(t)

	first := testEvent.New(testPayload{N: 1})
	second := testEvent.New(testPayload{N: 2})
	third := testEvent.New(testPayload{N: 3})
	bus.Publish(context.Background(), first)
	bus.Publish(context.Background(), second)
	bus.Publish(context.Background(), third)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	bus.Subscribe(testEvent.Tag(), eventbus.HandlerFunc(func(_ context.Context, evt event.Event) error {
		if evt.CorrelationID() == first.CorrelationID() {
			entered <- struct{}{}
			<-release
		}
		return errors.New("not yet")
	}))
	<-entered

	bus.Clear()
	close(release)
	bus.Wait()

	assert.True(t, first.Disposed())
	assert.True(t, second.Disposed())
	assert.True(t, third.Disposed())
	assert.Zero(t, bus.Stats().TotalQueued())
}

func TestStartStop_PeriodicDrain(t *testing.T) {
	bus := newTestBus(t, eventbus.WithDrainInterval(10*time.Millisecond))

	evt := testEvent.New(testPayload{})
	bus.Publish(context.Background(), evt)

	var calls atomic.Int32
	bus.Subscribe(testEvent.Tag(), eventbus.HandlerFunc(func(context.Context, event.Event) error {
		if calls.Add(1) == 1 {
			return errors.New("not ready")
		}
		return nil
	}))
	bus.Wait()
	require.False(t, evt.Disposed())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	bus.Start(ctx)
	defer bus.Stop()

	assert.Eventually(t, evt.Disposed, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())

	bus.Stop()
	bus.Stop()
}

func TestDrain_EnqueueDuringPassIsRedrained(t *testing.T) {
	clock := newGatedClock()
	bus := newTestBus(t, eventbus.WithClock(clock))

	first := testEvent.New(testPayload{N: 1})
	second := testEvent.New(testPayload{N: 2})
	bus.Publish(context.Background(), first)

	// second finds no subscriber, then stalls just before it is queued.
	clock.arm()
	published := make(chan struct{})
	go func() {
		defer close(published)
		bus.Publish(context.Background(), second)
	}()
	<-clock.entered

	entered := make(chan struct{})
	release := make(chan struct{})
	var gotSecond atomic.Bool
	bus.Subscribe(testEvent.Tag(), eventbus.HandlerFunc(func(_ context.Context, evt event.Event) error {
		switch evt.CorrelationID() {
		case first.CorrelationID():
			close(entered)
			<-release
		case second.CorrelationID():
			gotSecond.Store(true)
		}
		return nil
	}))
	<-entered

	// The pass delivering first has already taken its snapshot.
	close(clock.release)
	<-published
	assert.Equal(t, 1, bus.Stats().Queued[testEvent.Tag()])

	close(release)
	bus.Wait()

	assert.True(t, gotSecond.Load(), "event queued mid-pass must still reach the subscriber")
	assert.Zero(t, bus.Stats().TotalQueued())
	assert.True(t, first.Disposed())
	assert.True(t, second.Disposed())
}

func TestDrain_SkippedCallRerunsPass(t *testing.T) {
	bus := newTestBus(t)

	first := testEvent.New(testPayload{N: 1})
	bus.Publish(context.Background(), first)

	entered := make(chan struct{})
	release := make(chan struct{})
	sub := bus.Subscribe(testEvent.Tag(), eventbus.HandlerFunc(func(_ context.Context, evt event.Event) error {
		if evt.CorrelationID() == first.CorrelationID() {
			close(entered)
			<-release
		}
		return nil
	}))
	<-entered

	// Queued while nobody is subscribed, so enqueue alone requests nothing.
	sub.Unsubscribe()
	second := testEvent.New(testPayload{N: 2})
	bus.Publish(context.Background(), second)

	rec := &recorder{}
	bus.Subscribe(testEvent.Tag(), rec)
	assert.True(t, bus.Drain(context.Background(), testEvent.Tag()).Skipped)

	close(release)
	bus.Wait()

	assert.Equal(t, []string{second.CorrelationID()}, rec.ids())
	assert.Zero(t, bus.Stats().TotalQueued())
}
