// Package app wires configuration, the GTFS manager, the fleet registry and
// the clock into one Application shared by every command.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ficojok/ZETdev/internal/appconf"
	"github.com/ficojok/ZETdev/internal/clock"
	"github.com/ficojok/ZETdev/internal/fleet"
	"github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/metrics"
)

// Application holds the dependencies of the CLI commands.
type Application struct {
	Config      appconf.Config
	GtfsConfig  gtfs.Config
	Logger      *slog.Logger
	GtfsManager *gtfs.Manager
	Fleet       *fleet.Registry
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	Detector    *gtfs.StaleDetector
}

type Option func(*options)

type options struct {
	clock       clock.Clock
	metrics     *metrics.Metrics
	fetcherOpts []gtfs.FetcherOption
	logger      *slog.Logger
}

// WithClock overrides the environment clock (ZET_NOW, else system time).
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithFetcherOptions(opts ...gtfs.FetcherOption) Option {
	return func(o *options) { o.fetcherOpts = append(o.fetcherOpts, opts...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New loads the static feed, the schedule store and the fleet registry.
// Missing static files or a missing fleet file are not errors.
func New(ctx context.Context, cfg appconf.Config, opts ...Option) (*Application, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	gtfsCfg, err := gtfs.NewConfig(cfg)
	if err != nil {
		return nil, err
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = clock.NewEnvironmentClock(clock.EnvVar, gtfsCfg.Location)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewWithLogger(o.logger)
	}

	manager, err := gtfs.InitManager(ctx, gtfsCfg,
		gtfs.WithManagerMetrics(o.metrics),
		gtfs.WithClock(o.clock),
		gtfs.WithFetcherOptions(o.fetcherOpts...))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GTFS manager: %w", err)
	}

	registry, err := fleet.Load(cfg.FleetFile)
	if err != nil {
		manager.Shutdown()
		return nil, err
	}

	return &Application{
		Config:      cfg,
		GtfsConfig:  gtfsCfg,
		Logger:      o.logger,
		GtfsManager: manager,
		Fleet:       registry,
		Clock:       o.clock,
		Metrics:     o.metrics,
		Detector:    gtfs.NewStaleDetector(),
	}, nil
}

// Now is the application clock in the feed's time zone.
func (a *Application) Now() time.Time {
	return a.GtfsManager.Now()
}

func (a *Application) Location() *time.Location {
	return a.GtfsManager.Location()
}

// Close stops background work and closes the schedule store.
func (a *Application) Close() {
	if a == nil {
		return
	}
	a.GtfsManager.Shutdown()
	a.Metrics.Shutdown()
}
