package eventbus

import (
	"sort"
	"time"

	"github.com/randalmurphal/eventbus/pkg/eventbus/event"
)

// queuedEvent is an unhandled event waiting for a subscriber.
type queuedEvent struct {
	evt        event.Event
	attempts   int
	enqueuedAt time.Time
	lastErr    error
}

// retryQueue is a bounded per-tag FIFO. Callers hold Bus.mu.
type retryQueue struct {
	byTag    map[string][]*queuedEvent
	capacity int
}

func newRetryQueue(capacity int) *retryQueue {
	return &retryQueue{
		byTag:    make(map[string][]*queuedEvent),
		capacity: capacity,
	}
}

// push appends q to its tag's queue. If the queue is full the oldest
// entry is removed first and returned so the caller can dispose it.
func (rq *retryQueue) push(q *queuedEvent) (evicted *queuedEvent) {
	tag := q.evt.TypeTag()
	entries := rq.byTag[tag]
	if len(entries) >= rq.capacity {
		evicted = entries[0]
		entries = entries[1:]
	}
	rq.byTag[tag] = append(entries, q)
	return evicted
}

// take detaches and returns tag's whole queue.
func (rq *retryQueue) take(tag string) []*queuedEvent {
	entries := rq.byTag[tag]
	delete(rq.byTag, tag)
	return entries
}

// restore puts drain leftovers back ahead of anything enqueued while the
// drain ran, then trims from the front to capacity. Trimmed entries are
// returned for disposal.
func (rq *retryQueue) restore(tag string, leftovers []*queuedEvent) (evicted []*queuedEvent) {
	merged := make([]*queuedEvent, 0, len(leftovers)+len(rq.byTag[tag]))
	merged = append(merged, leftovers...)
	merged = append(merged, rq.byTag[tag]...)

	if over := len(merged) - rq.capacity; over > 0 {
		evicted = merged[:over]
		merged = merged[over:]
	}

	if len(merged) == 0 {
		delete(rq.byTag, tag)
	} else {
		rq.byTag[tag] = merged
	}
	return evicted
}

func (rq *retryQueue) len(tag string) int {
	return len(rq.byTag[tag])
}

func (rq *retryQueue) total() int {
	n := 0
	for _, entries := range rq.byTag {
		n += len(entries)
	}
	return n
}

// tags returns the tags with queued events, sorted.
func (rq *retryQueue) tags() []string {
	tags := make([]string, 0, len(rq.byTag))
	for tag := range rq.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (rq *retryQueue) counts() map[string]int {
	out := make(map[string]int, len(rq.byTag))
	for tag, entries := range rq.byTag {
		out[tag] = len(entries)
	}
	return out
}

// reset empties the queue and returns everything that was in it.
func (rq *retryQueue) reset() []*queuedEvent {
	var all []*queuedEvent
	for _, entries := range rq.byTag {
		all = append(all, entries...)
	}
	rq.byTag = make(map[string][]*queuedEvent)
	return all
}
