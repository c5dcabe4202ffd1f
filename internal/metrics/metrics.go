// Package metrics provides Prometheus metrics for zet.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Entity kinds used as the "kind" label of RealtimeEntities.
const (
	KindTripUpdate = "trip_update"
	KindVehicle    = "vehicle"
	KindAlert      = "alert"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// Realtime feed metrics
	RealtimeFetchesTotal  *prometheus.CounterVec
	RealtimeFetchDuration prometheus.Histogram
	RealtimeEntities      *prometheus.GaugeVec
	RealtimeGPSVehicles   prometheus.Gauge
	RealtimeLastSuccess   prometheus.Gauge
	StaticImportDuration  prometheus.Histogram

	// HTTP metrics for the watch server
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	// cancel stops the DB stats collector goroutine
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		RealtimeFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zet_realtime_fetches_total",
			Help: "Realtime feed fetches by outcome (ok, cached, error)",
		}, []string{"status"}),
		RealtimeFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zet_realtime_fetch_duration_seconds",
			Help:    "Time to download and parse the realtime feed",
			Buckets: prometheus.DefBuckets,
		}),
		RealtimeEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zet_realtime_entities",
			Help: "Entities in the latest realtime snapshot by kind",
		}, []string{"kind"}),
		RealtimeGPSVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zet_realtime_gps_vehicles",
			Help: "Vehicles reporting a position in the latest realtime snapshot",
		}),
		RealtimeLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zet_realtime_last_success_timestamp_seconds",
			Help: "Unix time of the last successful realtime fetch",
		}),
		StaticImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zet_static_import_duration_seconds",
			Help:    "Time to load the static feed and mirror it into SQLite",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zet_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zet_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zet_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zet_db_connections_in_use",
			Help: "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zet_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zet_db_wait_seconds_total",
			Help: "Total time blocked waiting for a database connection",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.RealtimeFetchesTotal,
		m.RealtimeFetchDuration,
		m.RealtimeEntities,
		m.RealtimeGPSVehicles,
		m.RealtimeLastSuccess,
		m.StaticImportDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
	)

	return m
}

// ObserveFetch records one realtime fetch. status is "ok", "cached" or "error".
// Nil-safe so callers can run without metrics.
func (m *Metrics) ObserveFetch(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RealtimeFetchesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.RealtimeFetchDuration.Observe(duration.Seconds())
		m.RealtimeLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// SetSnapshot publishes the entity counts of the latest realtime snapshot.
func (m *Metrics) SetSnapshot(tripUpdates, vehicles, alerts, gpsVehicles int) {
	if m == nil {
		return
	}
	m.RealtimeEntities.WithLabelValues(KindTripUpdate).Set(float64(tripUpdates))
	m.RealtimeEntities.WithLabelValues(KindVehicle).Set(float64(vehicles))
	m.RealtimeEntities.WithLabelValues(KindAlert).Set(float64(alerts))
	m.RealtimeGPSVehicles.Set(float64(gpsVehicles))
}

// ObserveStaticImport records how long a static load took.
func (m *Metrics) ObserveStaticImport(duration time.Duration) {
	if m == nil {
		return
	}
	m.StaticImportDuration.Observe(duration.Seconds())
}

// StartDBStatsCollector starts a goroutine that periodically copies the
// connection pool statistics of db into the DB gauges.
// Calling it again after the first call has no effect. Call Shutdown to stop it.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}

	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup before exposing cancel to avoid a race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if m.logger != nil {
					m.logger.Error("panic in DB stats collector", "error", r)
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				waitDelta := stats.WaitDuration - lastWaitDuration
				if waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// It is safe to call multiple times.
func (m *Metrics) Shutdown() {
	if m == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
