package gtfs

import (
	"time"

	"github.com/ficojok/ZETdev/internal/appconf"
)

// Config holds the settings the Manager and Fetcher need, resolved from
// appconf.Config.
type Config struct {
	DataDir string
	DBPath  string
	Env     appconf.Environment
	Verbose bool

	RealtimeURL      string
	RealtimeHeaders  map[string]string
	RealtimeTimeout  time.Duration
	RealtimeCacheTTL time.Duration
	WatchInterval    time.Duration

	Location *time.Location
}

// NewConfig resolves cfg into a gtfs Config. It fails only when the configured
// time zone cannot be loaded.
func NewConfig(cfg appconf.Config) (Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Config{}, err
	}
	return Config{
		DataDir:          cfg.DataDir,
		DBPath:           cfg.DBPath,
		Env:              cfg.Env,
		Verbose:          cfg.Verbose,
		RealtimeURL:      cfg.RealtimeURL,
		RealtimeHeaders:  cfg.RealtimeHeaders,
		RealtimeTimeout:  cfg.RealtimeTimeout,
		RealtimeCacheTTL: cfg.RealtimeCacheTTL,
		WatchInterval:    cfg.WatchInterval,
		Location:         loc,
	}, nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}
