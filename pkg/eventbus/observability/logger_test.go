package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCaptureLogger returns a debug-level JSON logger writing into buf.
func newCaptureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// records decodes every JSON log line written to buf.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogQueueEvicted(nil, "t", "c", 1)
		LogEventExpired(nil, "t", "c", time.Second)
		LogRetryExhausted(nil, "t", "c", 3, errors.New("x"))
		LogHandlerError(nil, "t", "c", errors.New("x"))
		LogBackgroundFailure(nil, "t", "c", errors.New("x"))
		LogQueueingError(nil, "t", "c", errors.New("x"))
		LogClear(nil, 1, 2, 3)
		LogDrainPass(nil, "t", 1, 2, 3, 4.5)
		LogParkingError(nil, "t", "c", errors.New("x"))
	})
	assert.Nil(t, EnrichLogger(nil, "t", "c"))
}

func TestLogHelpers_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
		msg   string
		attrs map[string]any
	}{
		{
			name:  "evicted",
			log:   func(l *slog.Logger) { LogQueueEvicted(l, "ui.nav", "c-1", 10) },
			level: "WARN",
			msg:   "retry queue full, oldest event dropped",
			attrs: map[string]any{"type_tag": "ui.nav", "correlation_id": "c-1", "capacity": float64(10)},
		},
		{
			name:  "expired",
			log:   func(l *slog.Logger) { LogEventExpired(l, "ui.nav", "c-2", time.Minute) },
			level: "WARN",
			msg:   "queued event expired",
			attrs: map[string]any{"correlation_id": "c-2"},
		},
		{
			name:  "retry exhausted",
			log:   func(l *slog.Logger) { LogRetryExhausted(l, "game.move", "c-3", 4, errors.New("still failing")) },
			level: "WARN",
			msg:   "queued event dropped after retries",
			attrs: map[string]any{"attempts": float64(4), "error": "still failing"},
		},
		{
			name:  "handler error",
			log:   func(l *slog.Logger) { LogHandlerError(l, "game.move", "c-4", errors.New("boom")) },
			level: "ERROR",
			msg:   "event handler failed",
			attrs: map[string]any{"error": "boom"},
		},
		{
			name:  "background failure",
			log:   func(l *slog.Logger) { LogBackgroundFailure(l, "game.move", "c-5", errors.New("late")) },
			level: "ERROR",
			msg:   "background event handler failed",
			attrs: map[string]any{"error": "late"},
		},
		{
			name:  "clear",
			log:   func(l *slog.Logger) { LogClear(l, 2, 3, 1) },
			level: "WARN",
			msg:   "clearing event bus with live state",
			attrs: map[string]any{"subscribers": float64(2), "queued": float64(3), "in_flight": float64(1)},
		},
		{
			name:  "drain pass",
			log:   func(l *slog.Logger) { LogDrainPass(l, "lobby.join", 3, 1, 0, 2.5) },
			level: "DEBUG",
			msg:   "drain pass completed",
			attrs: map[string]any{"delivered": float64(3), "retained": float64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(newCaptureLogger(&buf))

			recs := records(t, &buf)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.level, recs[0]["level"])
			assert.Equal(t, tt.msg, recs[0]["msg"])
			for k, v := range tt.attrs {
				assert.Equal(t, v, recs[0][k], "attribute %s", k)
			}
		})
	}
}

func TestEnrichLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := EnrichLogger(newCaptureLogger(&buf), "ui.nav", "c-7")
	logger.Info("hello")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "ui.nav", recs[0]["type_tag"])
	assert.Equal(t, "c-7", recs[0]["correlation_id"])
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 4.0)
}
