package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ficojok/ZETdev/internal/appconf"
	"github.com/ficojok/ZETdev/internal/clock"
	"github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/testfixtures"
)

func testConfig(t *testing.T, dataDir string) appconf.Config {
	t.Helper()
	cfg := appconf.Default(dataDir)
	cfg.Env = appconf.Test
	cfg.DBPath = ":memory:"
	return cfg
}

func TestNewWithMemoryDB(t *testing.T) {
	cfg := testConfig(t, testfixtures.MiniFeedDir(t))
	loc, err := cfg.Location()
	require.NoError(t, err)
	now := testfixtures.ServiceDay(loc).Add(8*time.Hour + 9*time.Minute)

	a, err := New(context.Background(), cfg, WithClock(clock.NewMockClock(now)))
	require.NoError(t, err, "New should not return an error")
	defer a.Close()

	assert.NotNil(t, a.Logger, "Logger should be initialized")
	assert.NotNil(t, a.Metrics, "Metrics should be initialized")
	assert.NotNil(t, a.Detector)
	assert.Equal(t, cfg, a.Config, "Config should match input")
	assert.Equal(t, loc, a.GtfsConfig.Location)

	require.NotNil(t, a.GtfsManager.Static(), "static feed should be loaded")
	assert.NotNil(t, a.GtfsManager.GtfsDB, "schedule store should be open")
	assert.Equal(t, 5, a.Fleet.Len())

	assert.True(t, now.Equal(a.Now()))
	assert.Equal(t, loc, a.Location())
}

func TestNewWithoutStaticData(t *testing.T) {
	dir := t.TempDir()
	a, err := New(context.Background(), testConfig(t, dir))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.GtfsManager.Static())
	assert.ErrorIs(t, a.GtfsManager.StaticErr(), gtfs.ErrNoStaticData)
	assert.Zero(t, a.Fleet.Len(), "missing voznipark.txt is an empty registry")
}

func TestNewRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Timezone = "Mars/Olympus"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewFleetFileIsDirectory(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.FleetFile = filepath.Dir(cfg.FleetFile)

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestFetcherOptionsReachTheFetcher(t *testing.T) {
	cfg := testConfig(t, testfixtures.MiniFeedDir(t))
	loc, err := cfg.Location()
	require.NoError(t, err)
	srv := testfixtures.ServeFeed(t, testfixtures.Marshal(t, testfixtures.ZETFeed(loc)))
	cfg.RealtimeURL = srv.URL

	a, err := New(context.Background(), cfg,
		WithFetcherOptions(gtfs.WithLimiter(rate.NewLimiter(rate.Inf, 1))))
	require.NoError(t, err)
	defer a.Close()

	snap, err := a.GtfsManager.Realtime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Header.Entities)
}

func TestCloseNil(t *testing.T) {
	var a *Application
	assert.NotPanics(t, a.Close)
}
