package gtfs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"github.com/ficojok/ZETdev/gtfsdb"
	"github.com/ficojok/ZETdev/internal/clock"
	"github.com/ficojok/ZETdev/internal/logging"
	"github.com/ficojok/ZETdev/internal/metrics"
)

// Manager owns the static feed, its SQLite mirror and the latest realtime
// snapshot. Static state is guarded by staticMutex and realtime state by
// realTimeMutex so that a realtime refresh never blocks schedule lookups.
type Manager struct {
	config  Config
	GtfsDB  *gtfsdb.Client
	metrics *metrics.Metrics
	clock   clock.Clock
	fetcher *Fetcher

	fetcherOpts []FetcherOption

	staticMutex      sync.RWMutex
	static           *StaticFeed
	staticErr        error
	stopSpatialIndex *stopIndex
	regionBounds     *RegionBounds

	realTimeMutex    sync.RWMutex
	snapshot         *Snapshot
	lastRealtimeErr  error
	lastRealtimeTime time.Time
	isHealthy        bool

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

type ManagerOption func(*Manager)

func WithManagerMetrics(m *metrics.Metrics) ManagerOption {
	return func(manager *Manager) { manager.metrics = m }
}

func WithClock(c clock.Clock) ManagerOption {
	return func(manager *Manager) { manager.clock = c }
}

// WithFetcherOptions passes options through to the realtime Fetcher.
func WithFetcherOptions(opts ...FetcherOption) ManagerOption {
	return func(manager *Manager) { manager.fetcherOpts = append(manager.fetcherOpts, opts...) }
}

// InitManager loads the static feed from config.DataDir, mirrors it into the
// schedule store and prepares the realtime fetcher.
//
// A missing or unreadable static feed does not fail initialization: the manager
// then serves realtime only, and StaticErr reports why.
func InitManager(ctx context.Context, config Config, opts ...ManagerOption) (*Manager, error) {
	manager := &Manager{
		config:       config,
		clock:        clock.RealClock{},
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(manager)
	}
	fetcherOpts := append([]FetcherOption{WithMetrics(manager.metrics), WithNow(manager.clock.Now)}, manager.fetcherOpts...)
	manager.fetcher = NewFetcher(config, fetcherOpts...)

	logger := slog.Default().With(slog.String("component", "gtfs_manager"))

	start := time.Now()
	feed, err := LoadStatic(config.DataDir)
	if err != nil {
		if errors.Is(err, ErrNoStaticData) {
			logging.LogOperation(logger, "gtfs_static_missing_running_realtime_only",
				slog.String("data_dir", config.DataDir))
		} else {
			logging.LogError(logger, "Failed to load GTFS static data", err,
				slog.String("data_dir", config.DataDir))
		}
		manager.staticErr = err
		return manager, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if config.DBPath != "" {
		db, err := buildGtfsDB(ctx, config, feed)
		if err != nil {
			logging.LogError(logger, "Schedule store unavailable, departures fall back to in-memory scan", err,
				slog.String("db_path", config.DBPath))
		} else {
			manager.GtfsDB = db
		}
	}
	manager.metrics.ObserveStaticImport(time.Since(start))

	manager.setStaticGTFS(feed)
	return manager, nil
}

func buildGtfsDB(ctx context.Context, config Config, feed *StaticFeed) (*gtfsdb.Client, error) {
	client, err := gtfsdb.NewClient(gtfsdb.NewConfig(config.DBPath, config.Env, config.Verbose))
	if err != nil {
		return nil, err
	}
	if _, err := client.Import(ctx, feed.Data, feed.Source, feed.Hash); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// setStaticGTFS swaps in a new static feed and rebuilds the derived indices.
func (manager *Manager) setStaticGTFS(feed *StaticFeed) {
	manager.staticMutex.Lock()
	defer manager.staticMutex.Unlock()

	manager.static = feed
	manager.staticErr = nil
	manager.stopSpatialIndex = buildStopSpatialIndex(feed.Data.Stops)
	manager.regionBounds = ComputeRegionBounds(feed.Data.Shapes, feed.Data.Stops)

	if manager.config.Verbose {
		logging.LogOperation(slog.Default().With(slog.String("component", "gtfs_manager")),
			"gtfs_data_set_successfully",
			slog.String("source", feed.Source),
			slog.Int("indexed_stops", manager.stopSpatialIndex.size))
	}
}

// Static returns the loaded static feed, or nil.
func (manager *Manager) Static() *StaticFeed {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.static
}

// StaticErr is the reason no static feed is loaded.
func (manager *Manager) StaticErr() error {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.staticErr
}

func (manager *Manager) RegionBounds() *RegionBounds {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.regionBounds
}

// NearestStop finds the closest stop within radius meters.
func (manager *Manager) NearestStop(lat, lon, radius float64) (*gtfs.Stop, float64, bool) {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.stopSpatialIndex.nearest(lat, lon, radius)
}

func (manager *Manager) Location() *time.Location {
	return manager.config.location()
}

// Now is the manager clock's current time in the feed's zone.
func (manager *Manager) Now() time.Time {
	return manager.clock.Now().In(manager.config.location())
}

func (manager *Manager) Fetcher() *Fetcher {
	return manager.fetcher
}

// Realtime fetches a snapshot (possibly cached) and records it as the latest.
func (manager *Manager) Realtime(ctx context.Context) (*Snapshot, error) {
	snap, err := manager.fetcher.Fetch(ctx)

	manager.realTimeMutex.Lock()
	defer manager.realTimeMutex.Unlock()

	// A fetch the caller abandoned says nothing about the feed.
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil, err
	}
	manager.lastRealtimeErr = err
	if err != nil {
		manager.isHealthy = false
		return nil, err
	}
	manager.snapshot = snap
	manager.lastRealtimeTime = snap.FetchedAt
	manager.isHealthy = true
	return snap, nil
}

// LatestSnapshot returns the last successfully fetched snapshot, or nil.
func (manager *Manager) LatestSnapshot() *Snapshot {
	manager.realTimeMutex.RLock()
	defer manager.realTimeMutex.RUnlock()
	return manager.snapshot
}

// Correlate runs Correlate against the loaded static feed.
func (manager *Manager) Correlate(snap *Snapshot, filter Filter) []Match {
	return Correlate(snap, manager.Static(), filter)
}

// HealthStatus is what the watch server reports.
type HealthStatus struct {
	Healthy      bool      `json:"healthy"`
	StaticLoaded bool      `json:"static_loaded"`
	LastUpdate   time.Time `json:"last_update"`
	Vehicles     int       `json:"vehicles"`
	TripUpdates  int       `json:"trip_updates"`
	LastError    string    `json:"last_error,omitempty"`
}

func (manager *Manager) Health() HealthStatus {
	status := HealthStatus{StaticLoaded: manager.Static() != nil}

	manager.realTimeMutex.RLock()
	defer manager.realTimeMutex.RUnlock()

	status.Healthy = manager.isHealthy
	status.LastUpdate = manager.lastRealtimeTime
	if manager.lastRealtimeErr != nil {
		status.LastError = manager.lastRealtimeErr.Error()
	}
	if manager.snapshot != nil {
		status.Vehicles = manager.snapshot.Header.Vehicles
		status.TripUpdates = manager.snapshot.Header.TripUpdates
	}
	return status
}

func (manager *Manager) IsHealthy() bool {
	manager.realTimeMutex.RLock()
	defer manager.realTimeMutex.RUnlock()
	return manager.isHealthy
}

func (manager *Manager) MarkHealthy() {
	manager.realTimeMutex.Lock()
	defer manager.realTimeMutex.Unlock()
	manager.isHealthy = true
}

func (manager *Manager) MarkUnhealthy() {
	manager.realTimeMutex.Lock()
	defer manager.realTimeMutex.Unlock()
	manager.isHealthy = false
}

// StartRealtimeUpdates polls the realtime feed every interval until Shutdown.
// The first fetch happens immediately.
func (manager *Manager) StartRealtimeUpdates(interval time.Duration) {
	if interval <= 0 {
		interval = manager.config.WatchInterval
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	manager.wg.Add(1)
	go manager.updateGTFSRealtimePeriodically(interval)
}

func (manager *Manager) updateGTFSRealtimePeriodically(interval time.Duration) {
	defer manager.wg.Done()

	logger := slog.Default().With(slog.String("component", "gtfs_realtime_updater"))

	refresh := func() {
		timeout := manager.config.RealtimeTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		go func() {
			select {
			case <-manager.shutdownChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		ctx = logging.WithLogger(ctx, logger)
		logger.Debug("updating_gtfs_realtime_data")

		// the watch loop always wants a fresh feed
		manager.fetcher.Invalidate()
		snap, err := manager.Realtime(ctx)
		if err != nil {
			return
		}
		logging.LogOperation(logger, "gtfs_realtime_updated",
			slog.Int("trip_updates", snap.Header.TripUpdates),
			slog.Int("vehicles", snap.Header.Vehicles))
	}

	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			refresh()
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_realtime_updates")
			return
		}
	}
}

// Shutdown stops background updates and closes the schedule store. It is safe
// to call more than once.
func (manager *Manager) Shutdown() {
	manager.shutdownOnce.Do(func() {
		close(manager.shutdownChan)
		manager.wg.Wait()

		manager.staticMutex.Lock()
		defer manager.staticMutex.Unlock()
		if manager.GtfsDB != nil {
			logging.SafeCloseWithLogging(manager.GtfsDB,
				slog.Default().With(slog.String("component", "gtfs_manager")),
				"gtfs_db")
			manager.GtfsDB = nil
		}
	})
}
