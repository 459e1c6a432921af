package parking

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists parked records to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a parking database.
// The path should be a file path or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS parked_events (
			correlation_id TEXT PRIMARY KEY,
			type_tag TEXT NOT NULL,
			reason TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			enqueued_at TEXT NOT NULL,
			parked_at TEXT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_parked_events_type_tag
		ON parked_events(type_tag)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Park implements Store.
func (s *SQLiteStore) Park(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if rec.ParkedAt.IsZero() {
		rec.ParkedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO parked_events
			(correlation_id, type_tag, reason, attempts, enqueued_at, parked_at, last_error, seq)
		VALUES (
			?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT MAX(seq) FROM parked_events), 0) + 1
		)
		ON CONFLICT(correlation_id) DO UPDATE SET
			type_tag = excluded.type_tag,
			reason = excluded.reason,
			attempts = excluded.attempts,
			enqueued_at = excluded.enqueued_at,
			parked_at = excluded.parked_at,
			last_error = excluded.last_error,
			seq = excluded.seq
	`,
		rec.CorrelationID,
		rec.TypeTag,
		string(rec.Reason),
		rec.Attempts,
		formatTime(rec.EnqueuedAt),
		formatTime(rec.ParkedAt),
		rec.LastError,
	)
	if err != nil {
		return fmt.Errorf("park event: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(limit int) ([]Record, error) {
	return s.query(`
		SELECT correlation_id, type_tag, reason, attempts, enqueued_at, parked_at, last_error
		FROM parked_events
		ORDER BY seq DESC
		LIMIT ?
	`, sqlLimit(limit))
}

// ListByTag implements Store.
func (s *SQLiteStore) ListByTag(typeTag string, limit int) ([]Record, error) {
	return s.query(`
		SELECT correlation_id, type_tag, reason, attempts, enqueued_at, parked_at, last_error
		FROM parked_events
		WHERE type_tag = ?
		ORDER BY seq DESC
		LIMIT ?
	`, typeTag, sqlLimit(limit))
}

func (s *SQLiteStore) query(q string, args ...any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list parked events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var reason, enqueuedAt, parkedAt string
		if err := rows.Scan(&rec.CorrelationID, &rec.TypeTag, &reason, &rec.Attempts,
			&enqueuedAt, &parkedAt, &rec.LastError); err != nil {
			return nil, fmt.Errorf("scan parked event: %w", err)
		}
		rec.Reason = Reason(reason)
		rec.EnqueuedAt = parseTime(enqueuedAt)
		rec.ParkedAt = parseTime(parkedAt)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parked events: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *SQLiteStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM parked_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count parked events: %w", err)
	}
	return n, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM parked_events WHERE correlation_id = ?`, correlationID); err != nil {
		return fmt.Errorf("delete parked event: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
