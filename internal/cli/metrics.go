package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
)

// statsSource is the part of the bus the collector reads.
type statsSource interface {
	Stats() eventbus.Stats
}

// statsCollector exports a bus Stats snapshot on every scrape.
type statsCollector struct {
	bus statsSource

	subscribers *prometheus.Desc
	queued      *prometheus.Desc
	inFlight    *prometheus.Desc
	draining    *prometheus.Desc
	totals      *prometheus.Desc
}

func newStatsCollector(bus statsSource) *statsCollector {
	return &statsCollector{
		bus: bus,
		subscribers: prometheus.NewDesc("eventbus_subscribers",
			"Registered handlers per type tag.", []string{"type_tag", "mode"}, nil),
		queued: prometheus.NewDesc("eventbus_queued_events",
			"Events waiting on the retry queue per type tag.", []string{"type_tag"}, nil),
		inFlight: prometheus.NewDesc("eventbus_in_flight",
			"Correlation IDs currently being dispatched.", nil, nil),
		draining: prometheus.NewDesc("eventbus_draining",
			"Type tags with a drain pass underway.", nil, nil),
		totals: prometheus.NewDesc("eventbus_events_total",
			"Lifetime event outcomes.", []string{"outcome"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.subscribers
	ch <- c.queued
	ch <- c.inFlight
	ch <- c.draining
	ch <- c.totals
}

// Collect implements prometheus.Collector.
func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.bus.Stats()

	for tag, n := range s.Subscribers {
		ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(n), tag, "sync")
	}
	for tag, n := range s.AsyncSubscribers {
		ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(n), tag, "async")
	}
	for tag, n := range s.Queued {
		ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(n), tag)
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(s.InFlight))
	ch <- prometheus.MustNewConstMetric(c.draining, prometheus.GaugeValue, float64(s.Draining))

	outcomes := map[string]int64{
		"published":   s.Published,
		"handled":     s.Handled,
		"unhandled":   s.Unhandled,
		"suppressed":  s.Suppressed,
		"failed":      s.Failed,
		"enqueued":    s.Enqueued,
		"redelivered": s.Redelivered,
		"expired":     s.Expired,
		"evicted":     s.Evicted,
		"exhausted":   s.Exhausted,
	}
	for outcome, n := range outcomes {
		ch <- prometheus.MustNewConstMetric(c.totals, prometheus.CounterValue, float64(n), outcome)
	}
}

// metricsServer exposes a registry on /metrics and a /health probe.
type metricsServer struct {
	server *http.Server
	logger *slog.Logger
}

func newMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &metricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With(slog.String("component", "metrics_server")),
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *metricsServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down metrics server")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("serving metrics", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
