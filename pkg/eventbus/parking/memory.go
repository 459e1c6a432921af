package parking

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory parking store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]storedRecord
	seq     int64
	closed  bool
}

// storedRecord keeps insertion order so List is stable for equal timestamps.
type storedRecord struct {
	rec Record
	seq int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]storedRecord),
	}
}

// Park implements Store.
func (m *MemoryStore) Park(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if rec.ParkedAt.IsZero() {
		rec.ParkedAt = time.Now().UTC()
	}

	m.seq++
	m.records[rec.CorrelationID] = storedRecord{rec: rec, seq: m.seq}
	return nil
}

// List implements Store.
func (m *MemoryStore) List(limit int) ([]Record, error) {
	return m.list("", limit)
}

// ListByTag implements Store.
func (m *MemoryStore) ListByTag(typeTag string, limit int) ([]Record, error) {
	return m.list(typeTag, limit)
}

func (m *MemoryStore) list(typeTag string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	stored := make([]storedRecord, 0, len(m.records))
	for _, s := range m.records {
		if typeTag != "" && s.rec.TypeTag != typeTag {
			continue
		}
		stored = append(stored, s)
	}

	// Most recent first
	sort.Slice(stored, func(i, j int) bool {
		return stored[i].seq > stored[j].seq
	})

	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}

	out := make([]Record, len(stored))
	for i, s := range stored {
		out[i] = s.rec
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.records), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(correlationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.records, correlationID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}
