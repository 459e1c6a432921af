package eventbus_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
	"github.com/randalmurphal/eventbus/pkg/eventbus/event"
)

type testPayload struct {
	N int
}

var (
	testEvent  = event.Define[testPayload]("test.event")
	otherEvent = event.Define[testPayload]("test.other")
)

// testConfig is small enough to exercise eviction and retry limits.
func testConfig() eventbus.Config {
	return eventbus.Config{
		QueueBatchSize:   2,
		MaxRetryAttempts: 2,
		QueueTimeout:     time.Second,
		MaxQueuedEvents:  3,
		EventTTL:         time.Minute,
		AsyncTimeout:     time.Second,
	}
}

func newTestBus(t *testing.T, opts ...eventbus.Option) *eventbus.Bus {
	t.Helper()
	opts = append([]eventbus.Option{eventbus.WithLogger(nil)}, opts...)
	bus, err := eventbus.New(testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(bus.Wait)
	return bus
}

// logBuffer is a concurrency-safe sink for a text slog handler.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// fakeClock is a Clock the test advances by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedClock blocks the first Now call made after arm until release is
// closed, pausing whoever asked for the time.
type gatedClock struct {
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedClock() *gatedClock {
	return &gatedClock{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *gatedClock) arm() { c.armed.Store(true) }

func (c *gatedClock) Now() time.Time {
	if c.armed.CompareAndSwap(true, false) {
		close(c.entered)
		<-c.release
	}
	return time.Now()
}

// recorder collects delivered correlation IDs.
type recorder struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (r *recorder) Handle(_ context.Context, evt event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, evt.CorrelationID())
	return r.err
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

// countingMetrics counts recorder calls.
type countingMetrics struct {
	mu         sync.Mutex
	published  int
	suppressed int
	queued     int
	dropped    map[string]int
	errors     int
	drains     int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dropped: make(map[string]int)}
}

func (m *countingMetrics) RecordPublish(_ context.Context, _ string, _ bool, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
}

func (m *countingMetrics) RecordSuppressed(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed++
}

func (m *countingMetrics) RecordQueued(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued++
}

func (m *countingMetrics) RecordDropped(_ context.Context, _, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *countingMetrics) RecordHandlerError(_ context.Context, _ string, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

func (m *countingMetrics) RecordDrain(_ context.Context, _ string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
}
