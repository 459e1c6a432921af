package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
	"github.com/randalmurphal/eventbus/pkg/eventbus/config"
	"github.com/randalmurphal/eventbus/pkg/eventbus/event"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

// tick is the demo payload.
type tick struct {
	Seq int
}

var tickKind = event.Define[tick]("demo.tick")

func newDemoCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Publish synthetic events through a configured bus",
		Long: `demo builds a bus from a config file, subscribes a sync and an async
handler, publishes a run of events and prints each outcome and the final
bus stats.

With --late the events are published before anything subscribes, so they
wait on the retry queue and reach the handlers through a drain.`,
		Example: `  eventbus demo --config bus.yaml --events 10 --late
  eventbus demo --config bus.yaml --fail-every 3 --parking-db parked.db
  EVENTBUS_METRICS_ADDR=:9090 eventbus demo --config bus.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Bus config file (.yaml, .yml or .json)")
	flags.Int("events", 5, "Number of events to publish")
	flags.Bool("late", false, "Publish before subscribing")
	flags.Int("fail-every", 0, "Make every Nth event fail in the sync handler (0 disables)")
	flags.String("parking-db", "", "SQLite file recording undelivered events (overrides parking_db)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address until interrupted")
	for _, name := range []string{"config", "events", "late", "fail-every", "parking-db", "metrics-addr"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	return cmd
}

func runDemo(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"))
	if err != nil {
		return err
	}

	path := v.GetString("config")
	if path == "" {
		return errors.New("--config is required")
	}
	vals, err := config.FromFile(path)
	if err != nil {
		return err
	}
	cfg, err := vals.Bus()
	if err != nil {
		return err
	}

	opts := []eventbus.Option{
		eventbus.WithLogger(logger),
		eventbus.WithMetrics(observability.NewMetricsRecorder()),
		eventbus.WithSpanManager(observability.NewSpanManager()),
		eventbus.WithDrainInterval(vals.Duration(config.KeyDrainInterval, 0)),
	}

	dbPath := v.GetString("parking-db")
	if dbPath == "" {
		dbPath = vals.String(config.KeyParkingDB, "")
	}
	if dbPath != "" {
		store, err := parking.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, eventbus.WithParking(store))
	}

	bus, err := eventbus.New(cfg, opts...)
	if err != nil {
		return err
	}
	bus.Start(ctx)
	defer bus.Stop()

	d := &demo{bus: bus, out: out, failEvery: v.GetInt("fail-every")}
	n := v.GetInt("events")
	if v.GetBool("late") {
		d.publishAll(ctx, n)
		d.subscribe()
	} else {
		d.subscribe()
		d.publishAll(ctx, n)
	}
	bus.Wait()

	fmt.Fprintf(out, "\nsync handler saw %d, async handler saw %d\n", d.syncSeen.Load(), d.asyncSeen.Load())
	printStats(out, bus.Stats())

	addr := v.GetString("metrics-addr")
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(newStatsCollector(bus))
	fmt.Fprintf(out, "\nserving metrics on %s/metrics, interrupt to exit\n", addr)
	return newMetricsServer(addr, reg, logger).Run(ctx)
}

// demo drives one run of synthetic traffic.
type demo struct {
	bus       *eventbus.Bus
	out       io.Writer
	failEvery int

	syncSeen  atomic.Int64
	asyncSeen atomic.Int64
}

func (d *demo) subscribe() {
	eventbus.SubscribeKind(d.bus, tickKind, func(_ context.Context, evt *event.Envelope[tick]) error {
		d.syncSeen.Add(1)
		if seq := evt.Payload().Seq; d.failEvery > 0 && seq%d.failEvery == 0 {
			return fmt.Errorf("tick %d rejected", seq)
		}
		return nil
	})
	eventbus.SubscribeKindAsync(d.bus, tickKind, func(context.Context, *event.Envelope[tick]) error {
		d.asyncSeen.Add(1)
		return nil
	})
}

// publishAll alternates fire-and-forget and awaited publishes.
func (d *demo) publishAll(ctx context.Context, n int) {
	for seq := 1; seq <= n; seq++ {
		evt := tickKind.New(tick{Seq: seq})
		if seq%2 == 0 {
			printResult(d.out, seq, "publishAsync", d.bus.PublishAsync(ctx, evt))
			continue
		}
		printResult(d.out, seq, "publish", d.bus.Publish(ctx, evt))
	}
}
