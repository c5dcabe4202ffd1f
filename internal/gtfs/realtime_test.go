package gtfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ficojok/ZETdev/internal/metrics"
	"github.com/ficojok/ZETdev/internal/testfixtures"
)

func unlimited() FetcherOption {
	return WithLimiter(rate.NewLimiter(rate.Inf, 1))
}

// countingServer serves body and counts requests.
func countingServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetcher_Fetch(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	srv := testfixtures.ServeFeed(t, body)

	fetchedAt := time.Date(2025, 5, 5, 8, 9, 30, 0, zagreb)
	fetcher := NewFetcher(Config{RealtimeURL: srv.URL}, unlimited(), WithNow(func() time.Time { return fetchedAt }))

	snap, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fetchedAt, snap.FetchedAt)
	assert.False(t, snap.FromCache)
	assert.Equal(t, body, snap.Raw)
	assert.Equal(t, 2, snap.Header.TripUpdates)
	assert.Equal(t, 3, snap.Header.Vehicles)
	assert.Equal(t, 5, snap.Header.Entities)
	assert.Len(t, snap.Realtime.Vehicles, 3)
	assert.Equal(t, 3, countGPSVehicles(snap.Realtime))
}

func TestFetcher_SendsConfiguredHeaders(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	fetcher := NewFetcher(Config{
		RealtimeURL:     srv.URL,
		RealtimeHeaders: map[string]string{"X-Api-Key": "tajna"},
	}, unlimited())

	_, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tajna", gotKey)
}

func TestFetcher_CachesSnapshots(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	srv, hits := countingServer(t, body)

	m := metrics.New()
	fetcher := NewFetcher(Config{RealtimeURL: srv.URL, RealtimeCacheTTL: time.Minute}, unlimited(), WithMetrics(m))

	first, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	second, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.False(t, first.FromCache)
	assert.True(t, second.FromCache)
	assert.False(t, first.FromCache, "the cached copy must not be mutated")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimeFetchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimeFetchesTotal.WithLabelValues("cached")))

	fetcher.Invalidate()
	_, err = fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcher_NoCacheWithoutTTL(t *testing.T) {
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(zagreb))
	srv, hits := countingServer(t, body)

	fetcher := NewFetcher(Config{RealtimeURL: srv.URL}, unlimited())
	for i := 0; i < 3; i++ {
		_, err := fetcher.Fetch(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_Errors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		_, err := NewFetcher(Config{}).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrRealtimeDisabled)
	})

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewFetcher(Config{RealtimeURL: srv.URL}, unlimited()).Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("not protobuf", func(t *testing.T) {
		srv := testfixtures.ServeFeed(t, []byte{0xff, 0xff, 0xff})
		_, err := NewFetcher(Config{RealtimeURL: srv.URL}, unlimited()).Fetch(context.Background())
		assert.Error(t, err)
	})

	t.Run("oversized body", func(t *testing.T) {
		big := []byte(strings.Repeat("x", maxRealtimeBodySize+1))
		srv := testfixtures.ServeFeed(t, big)
		_, err := NewFetcher(Config{RealtimeURL: srv.URL}, unlimited()).FetchRaw(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "size limit")
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := testfixtures.ServeFeed(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewFetcher(Config{RealtimeURL: srv.URL}, unlimited()).Fetch(ctx)
		assert.Error(t, err)
	})
}
