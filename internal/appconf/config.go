package appconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // Europe/Zagreb must resolve on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

const (
	DefaultRealtimeURL = "https://www.zet.hr/gtfs-rt-protobuf"
	DefaultTimezone    = "Europe/Zagreb"
	DefaultConfigFile  = "zet.yml"
	DefaultDBFile      = "zet.db"
	DefaultFleetFile   = "voznipark.txt"
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// ParseEnvironment maps a config string to an Environment. Empty means Development.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", "development":
		return Development, nil
	case "test":
		return Test, nil
	case "prod", "production":
		return Production, nil
	default:
		return Development, fmt.Errorf("unknown environment %q", s)
	}
}

// Config is the resolved runtime configuration.
type Config struct {
	Env              Environment       `yaml:"-"`
	EnvName          string            `yaml:"env" validate:"omitempty,oneof=dev development test prod production"`
	DataDir          string            `yaml:"data_dir" validate:"required"`
	DBPath           string            `yaml:"db_path" validate:"required"`
	RealtimeURL      string            `yaml:"realtime_url" validate:"required,url"`
	RealtimeHeaders  map[string]string `yaml:"realtime_headers"`
	RealtimeTimeout  time.Duration     `yaml:"realtime_timeout" validate:"gt=0"`
	RealtimeCacheTTL time.Duration     `yaml:"realtime_cache_ttl" validate:"gte=0"`
	FleetFile        string            `yaml:"fleet_file" validate:"required"`
	Timezone         string            `yaml:"timezone" validate:"required"`
	WatchInterval    time.Duration     `yaml:"watch_interval" validate:"gt=0"`
	MetricsAddr      string            `yaml:"metrics_addr" validate:"required"`
	Verbose          bool              `yaml:"verbose"`
}

// Default returns a Config rooted at dataDir with every optional field filled in.
func Default(dataDir string) Config {
	if dataDir == "" {
		dataDir = "."
	}
	return Config{
		Env:              Development,
		DataDir:          dataDir,
		DBPath:           filepath.Join(dataDir, DefaultDBFile),
		RealtimeURL:      DefaultRealtimeURL,
		RealtimeTimeout:  15 * time.Second,
		RealtimeCacheTTL: 20 * time.Second,
		FleetFile:        filepath.Join(dataDir, DefaultFleetFile),
		Timezone:         DefaultTimezone,
		WatchInterval:    30 * time.Second,
		MetricsAddr:      ":9090",
	}
}

// Load reads the YAML file at path on top of Default(dataDir). A missing file is
// only an error when required is true.
func Load(path, dataDir string, required bool) (Config, error) {
	cfg := Default(dataDir)
	if path == "" {
		path = filepath.Join(cfg.DataDir, DefaultConfigFile)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !required:
		return cfg, cfg.Validate()
	case err != nil:
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	env, err := ParseEnvironment(cfg.EnvName)
	if err != nil {
		return cfg, err
	}
	cfg.Env = env

	return cfg, cfg.Validate()
}

// Validate checks struct tags and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Env == Test && c.DBPath != ":memory:" {
		return fmt.Errorf("test environment must use in-memory storage, got path: %s", c.DBPath)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
