package gtfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ficojok/ZETdev/internal/appconf"
	"github.com/ficojok/ZETdev/internal/clock"
	"github.com/ficojok/ZETdev/internal/testfixtures"
)

func TestInitManager(t *testing.T) {
	manager := newScheduleManager(t, ":memory:")

	require.NotNil(t, manager.Static())
	assert.NoError(t, manager.StaticErr())
	require.NotNil(t, manager.GtfsDB)
	require.NotNil(t, manager.RegionBounds())

	counts, err := manager.GtfsDB.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 17, counts["stop_times"])

	stop, dist, ok := manager.NearestStop(45.8047, 15.9786, DefaultNearestStopRadius)
	require.True(t, ok)
	assert.Equal(t, "100_1", stop.Id)
	assert.Less(t, dist, 20.0)
}

func TestInitManager_RealtimeOnly(t *testing.T) {
	manager, err := InitManager(context.Background(), Config{DataDir: t.TempDir(), DBPath: ":memory:", Env: appconf.Test})
	require.NoError(t, err)
	defer manager.Shutdown()

	assert.Nil(t, manager.Static())
	assert.ErrorIs(t, manager.StaticErr(), ErrNoStaticData)
	assert.Nil(t, manager.GtfsDB)
	assert.Nil(t, manager.RegionBounds())

	_, _, ok := manager.NearestStop(45.8047, 15.9786, DefaultNearestStopRadius)
	assert.False(t, ok)
}

func TestInitManager_BadDBPathFallsBack(t *testing.T) {
	manager, err := InitManager(context.Background(), Config{
		DataDir: testfixtures.MiniFeedDir(t),
		DBPath:  "/tmp/zet.db",
		Env:     appconf.Test,
	})
	require.NoError(t, err)
	defer manager.Shutdown()

	assert.Nil(t, manager.GtfsDB, "test env refuses on-disk databases")
	assert.NotNil(t, manager.Static())
}

func TestManager_Now(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 5, 5, 6, 8, 0, 0, time.UTC))
	manager, err := InitManager(context.Background(), Config{DataDir: t.TempDir(), Location: zagreb}, WithClock(mock))
	require.NoError(t, err)
	defer manager.Shutdown()

	now := manager.Now()
	assert.Equal(t, 8, now.Hour())
	assert.Equal(t, zagreb, now.Location())
}

func TestManager_Realtime(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	srv := testfixtures.ServeFeed(t, body)

	manager, err := InitManager(context.Background(), Config{
		DataDir:     testfixtures.MiniFeedDir(t),
		RealtimeURL: srv.URL,
		Location:    zagreb,
	}, WithFetcherOptions(unlimited()))
	require.NoError(t, err)
	defer manager.Shutdown()

	assert.False(t, manager.IsHealthy())
	assert.Nil(t, manager.LatestSnapshot())

	snap, err := manager.Realtime(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, manager.LatestSnapshot())
	assert.True(t, manager.IsHealthy())

	health := manager.Health()
	assert.True(t, health.Healthy)
	assert.True(t, health.StaticLoaded)
	assert.Equal(t, 3, health.Vehicles)
	assert.Equal(t, 2, health.TripUpdates)
	assert.Empty(t, health.LastError)

	matches := manager.Correlate(snap, ByRoute("6"))
	assert.Len(t, matches, 2)
	assert.Nil(t, manager.Correlate(nil, ByRoute("6")))
}

func TestManager_RealtimeFailureKeepsLastSnapshot(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	var mu sync.Mutex
	failing := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	manager, err := InitManager(context.Background(), Config{DataDir: t.TempDir(), RealtimeURL: srv.URL}, WithFetcherOptions(unlimited()))
	require.NoError(t, err)
	defer manager.Shutdown()

	good, err := manager.Realtime(context.Background())
	require.NoError(t, err)

	mu.Lock()
	failing = true
	mu.Unlock()

	_, err = manager.Realtime(context.Background())
	require.Error(t, err)
	assert.False(t, manager.IsHealthy())
	assert.Same(t, good, manager.LatestSnapshot())
	assert.Contains(t, manager.Health().LastError, "502")
}

func TestManager_RealtimeCanceledKeepsHealth(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	srv := testfixtures.ServeFeed(t, body)

	manager, err := InitManager(context.Background(), Config{DataDir: t.TempDir(), RealtimeURL: srv.URL}, WithFetcherOptions(unlimited()))
	require.NoError(t, err)
	defer manager.Shutdown()

	good, err := manager.Realtime(context.Background())
	require.NoError(t, err)
	require.True(t, manager.IsHealthy())

	manager.Fetcher().Invalidate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = manager.Realtime(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, manager.IsHealthy())
	assert.Empty(t, manager.Health().LastError)
	assert.Same(t, good, manager.LatestSnapshot())
}

func TestManager_HealthState(t *testing.T) {
	manager := &Manager{}

	assert.False(t, manager.IsHealthy(), "Manager should be unhealthy initially")
	manager.MarkHealthy()
	assert.True(t, manager.IsHealthy())
	manager.MarkUnhealthy()
	assert.False(t, manager.IsHealthy())
}

func TestManager_HealthConcurrency(t *testing.T) {
	manager := &Manager{}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				manager.MarkHealthy()
				manager.MarkUnhealthy()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = manager.IsHealthy()
				_ = manager.Health()
			}
		}()
	}
	wg.Wait()
}

func TestManager_StartRealtimeUpdates(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	srv := testfixtures.ServeFeed(t, body)

	manager, err := InitManager(context.Background(), Config{
		DataDir:          t.TempDir(),
		RealtimeURL:      srv.URL,
		RealtimeCacheTTL: time.Hour,
	}, WithFetcherOptions(unlimited()))
	require.NoError(t, err)

	manager.StartRealtimeUpdates(10 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return manager.LatestSnapshot() != nil
	}, 2*time.Second, 10*time.Millisecond)

	manager.Shutdown()
	manager.Shutdown()
	assert.True(t, manager.IsHealthy())
}
