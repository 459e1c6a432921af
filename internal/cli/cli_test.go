package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
)

const demoConfig = `
queue_batch_size: 10
max_retry_attempts: 0
queue_timeout: 1s
max_queued_events: 100
event_ttl: 1m
async_timeout: 1s
`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demoConfig), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(viper.New())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDemo(t *testing.T) {
	out, err := run(t, "demo", "--config", writeConfig(t), "--events", "4", "--log-level", "error")
	require.NoError(t, err)

	assert.Equal(t, 4, strings.Count(out, "handled\n"))
	assert.Contains(t, out, "sync handler saw 4, async handler saw 4")
	assert.Contains(t, out, "retry queue empty")
}

func TestDemo_LateSubscriberDrainsQueue(t *testing.T) {
	out, err := run(t, "demo", "--config", writeConfig(t), "--events", "3", "--late", "--log-level", "error")
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "queued\n"))
	assert.Contains(t, out, "sync handler saw 3")
	assert.Contains(t, out, "redelivered 3")
}

func TestDemo_FailuresAreParked(t *testing.T) {
	db := filepath.Join(t.TempDir(), "parked.db")

	_, err := run(t, "demo", "--config", writeConfig(t), "--events", "4", "--late",
		"--fail-every", "2", "--parking-db", db, "--log-level", "error")
	require.NoError(t, err)

	out, err := run(t, "parked", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2 parked event(s)")
	assert.Equal(t, 2, strings.Count(out, "retry_exhausted"))
	assert.Contains(t, out, "rejected")

	out, err = run(t, "parked", "--db", db, "--tag", "demo.tick", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 parked event(s), showing 1")

	out, err = run(t, "parked", "--db", db, "--tag", "other.tag")
	require.NoError(t, err)
	assert.Contains(t, out, "0 parked event(s)")
}

func TestDemo_EnvOverride(t *testing.T) {
	t.Setenv("EVENTBUS_EVENTS", "2")

	out, err := run(t, "demo", "--config", writeConfig(t), "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "handled\n"))
}

func TestDemo_Errors(t *testing.T) {
	_, err := run(t, "demo")
	assert.ErrorContains(t, err, "--config is required")

	path := filepath.Join(t.TempDir(), "bus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue_batch_size: 1\n"), 0o600))
	_, err = run(t, "demo", "--config", path)
	assert.ErrorContains(t, err, "missing required config key")

	_, err = run(t, "demo", "--config", writeConfig(t), "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestParked_Errors(t *testing.T) {
	_, err := run(t, "parked")
	assert.ErrorContains(t, err, "--db is required")

	_, err = run(t, "parked", "--db", filepath.Join(t.TempDir(), "absent.db"))
	assert.ErrorContains(t, err, "open parking database")
}

func TestStatsCollector(t *testing.T) {
	bus, err := eventbus.New(eventbus.Config{
		QueueBatchSize:   1,
		MaxRetryAttempts: 1,
		QueueTimeout:     1e9,
		MaxQueuedEvents:  10,
		EventTTL:         60e9,
		AsyncTimeout:     1e9,
	}, eventbus.WithLogger(nil))
	require.NoError(t, err)

	bus.Publish(context.Background(), tickKind.New(tick{Seq: 1}))

	expected := `
# HELP eventbus_in_flight Correlation IDs currently being dispatched.
# TYPE eventbus_in_flight gauge
eventbus_in_flight 0
# HELP eventbus_queued_events Events waiting on the retry queue per type tag.
# TYPE eventbus_queued_events gauge
eventbus_queued_events{type_tag="demo.tick"} 1
`
	c := newStatsCollector(bus)
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"eventbus_in_flight", "eventbus_queued_events"))

	// Two fixed gauges, one queued tag, ten lifetime totals.
	assert.Equal(t, 13, testutil.CollectAndCount(c))
}
