// Package watch serves Prometheus metrics and a health check while the realtime
// feed is polled in the background.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/logging"
	"github.com/ficojok/ZETdev/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Poller is the part of the gtfs Manager the watch loop drives.
type Poller interface {
	HealthSource
	StartRealtimeUpdates(interval time.Duration)
	Shutdown()
}

var _ Poller = (*gtfs.Manager)(nil)

// NewHandler routes /metrics and /healthz through the logging and metrics
// middleware.
func NewHandler(source HealthSource, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	if m != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	}
	mux.Handle("GET /healthz", healthHandler(source))

	var handler http.Handler = mux
	handler = MetricsHandler(m)(handler)
	handler = NewRequestLoggingMiddleware(logger)(handler)
	return handler
}

// Server polls the realtime feed and serves the watch endpoints.
type Server struct {
	poller   Poller
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *slog.Logger
	http     *http.Server
}

func NewServer(addr string, poller Poller, m *metrics.Metrics, interval time.Duration) *Server {
	logger := slog.Default().With(slog.String("component", "watch_server"))
	return &Server{
		poller:   poller,
		metrics:  m,
		interval: interval,
		logger:   logger,
		http: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(poller, m, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Run starts polling and serving until ctx is cancelled, then shuts both down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("watch server cannot listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.poller.StartRealtimeUpdates(s.interval)

	errCh := make(chan error, 1)
	go func() {
		logging.LogOperation(s.logger, "watch_server_listening",
			slog.String("addr", ln.Addr().String()),
			slog.Duration("interval", s.interval))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logging.LogOperation(s.logger, "shutdown_signal_received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logging.LogError(s.logger, "watch server shutdown error", err)
	}
	s.poller.Shutdown()
	s.metrics.Shutdown()

	if serveErr != nil {
		return fmt.Errorf("watch server failed: %w", serveErr)
	}
	return nil
}
