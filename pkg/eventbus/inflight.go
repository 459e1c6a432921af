package eventbus

// inFlight reference-counts events being dispatched, keyed by correlation ID.
// Callers hold Bus.mu.
type inFlight struct {
	counts map[string]int
}

func newInFlight() *inFlight {
	return &inFlight{counts: make(map[string]int)}
}

func (f *inFlight) active(id string) bool {
	return f.counts[id] > 0
}

func (f *inFlight) acquire(id string) {
	f.counts[id]++
}

// release decrements id's count, removing the entry at zero. Releasing an
// unknown id is a no-op so counts never go negative.
func (f *inFlight) release(id string) {
	n, ok := f.counts[id]
	if !ok {
		return
	}
	if n <= 1 {
		delete(f.counts, id)
		return
	}
	f.counts[id] = n - 1
}

func (f *inFlight) len() int {
	return len(f.counts)
}

func (f *inFlight) reset() {
	f.counts = make(map[string]int)
}
