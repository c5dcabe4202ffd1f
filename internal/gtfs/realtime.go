package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/OneBusAway/go-gtfs"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/ficojok/ZETdev/internal/logging"
	"github.com/ficojok/ZETdev/internal/metrics"
)

const maxRealtimeBodySize = 25 * 1024 * 1024

// ErrRealtimeDisabled is returned when no realtime URL is configured.
var ErrRealtimeDisabled = errors.New("realtime feed URL not configured")

// newRealtimeHTTPClient is a dedicated client for GTFS-RT fetching with explicit
// timeouts, cloned from http.DefaultTransport to keep proxy and HTTP/2 defaults.
func newRealtimeHTTPClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 10
	transport.MaxIdleConnsPerHost = 2
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second

	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Snapshot is one decoded realtime feed.
type Snapshot struct {
	Realtime  *gtfs.Realtime
	Header    FeedHeaderSummary
	Raw       []byte
	Order     FeedOrder
	FetchedAt time.Time
	// FromCache is set when the snapshot was served from the fetcher cache.
	FromCache bool
}

// Fetcher downloads and decodes the realtime feed. Snapshots are cached per URL
// for the configured TTL and network requests are paced by a rate limiter.
type Fetcher struct {
	url     string
	headers map[string]string
	client  *http.Client
	cache   *cache.Cache
	limiter *rate.Limiter
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithLimiter replaces the default limiter of one request per second.
func WithLimiter(l *rate.Limiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

func WithNow(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

func NewFetcher(config Config, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		url:     config.RealtimeURL,
		headers: config.RealtimeHeaders,
		client:  newRealtimeHTTPClient(config.RealtimeTimeout),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		now:     time.Now,
		logger:  slog.Default().With(slog.String("component", "gtfs_realtime")),
	}
	if config.RealtimeCacheTTL > 0 {
		f.cache = cache.New(config.RealtimeCacheTTL, 2*config.RealtimeCacheTTL)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) URL() string {
	return f.url
}

// Invalidate drops the cached snapshot so the next Fetch goes to the network.
func (f *Fetcher) Invalidate() {
	if f.cache != nil {
		f.cache.Delete(f.url)
	}
}

// Fetch returns the current realtime snapshot, from cache when fresh.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	if f.url == "" {
		return nil, ErrRealtimeDisabled
	}

	if f.cache != nil {
		if cached, ok := f.cache.Get(f.url); ok {
			if snap, ok := cached.(*Snapshot); ok {
				f.metrics.ObserveFetch("cached", 0)
				hit := *snap
				hit.FromCache = true
				return &hit, nil
			}
		}
	}

	start := time.Now()
	snap, err := f.fetch(ctx)
	if err != nil {
		f.metrics.ObserveFetch("error", time.Since(start))
		logging.LogError(f.logger, "Error loading GTFS-RT data", err, slog.String("url", f.url))
		return nil, err
	}
	f.metrics.ObserveFetch("ok", time.Since(start))
	f.metrics.SetSnapshot(snap.Header.TripUpdates, snap.Header.Vehicles, snap.Header.Alerts, countGPSVehicles(snap.Realtime))

	if f.cache != nil {
		f.cache.SetDefault(f.url, snap)
	}
	return snap, nil
}

func (f *Fetcher) fetch(ctx context.Context) (*Snapshot, error) {
	body, err := f.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}

	return DecodeSnapshot(body, f.now())
}

// DecodeSnapshot decodes a feed body into a snapshot fetched at fetchedAt.
func DecodeSnapshot(body []byte, fetchedAt time.Time) (*Snapshot, error) {
	msg, err := DecodeFeed(body)
	if err != nil {
		return nil, err
	}

	rt, err := gtfs.ParseRealtime(body, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GTFS-RT feed: %w", err)
	}

	return &Snapshot{
		Realtime:  rt,
		Header:    summarizeFeed(msg, len(body)),
		Raw:       body,
		Order:     NewFeedOrder(msg),
		FetchedAt: fetchedAt,
	}, nil
}

// FetchRaw downloads the feed body without decoding or caching it.
func (f *Fetcher) FetchRaw(ctx context.Context) ([]byte, error) {
	if f.url == "" {
		return nil, ErrRealtimeDisabled
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("realtime fetch not started: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range f.headers {
		req.Header.Add(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute GTFS-RT request: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_realtime_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfs-rt fetch failed: %s returned %s", f.url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRealtimeBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > maxRealtimeBodySize {
		return nil, fmt.Errorf("GTFS-RT response exceeds size limit of %d bytes", maxRealtimeBodySize)
	}
	return body, nil
}

func countGPSVehicles(rt *gtfs.Realtime) int {
	if rt == nil {
		return 0
	}
	n := 0
	for i := range rt.Vehicles {
		if hasPosition(&rt.Vehicles[i]) {
			n++
		}
	}
	return n
}

func hasPosition(v *gtfs.Vehicle) bool {
	return v != nil && v.Position != nil && v.Position.Latitude != nil && v.Position.Longitude != nil
}
