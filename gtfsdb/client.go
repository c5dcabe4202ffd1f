package gtfsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OneBusAway/go-gtfs"
	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"github.com/ficojok/ZETdev/internal/logging"
)

// Client is the main entry point for the schedule store.
type Client struct {
	config        Config
	DB            *sql.DB
	Queries       *Queries
	importRuntime time.Duration
}

// NewClient opens (or creates) the SQLite store described by config and applies
// the schema.
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	}
	if config.verbose {
		logging.LogOperation(slog.Default().With(slog.String("component", "gtfsdb")),
			"schedule_store_opened", slog.String("db_path", config.DBPath))
	}

	return &Client{
		config:  config,
		DB:      db,
		Queries: New(db),
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) GetDBPath() string {
	return c.config.DBPath
}

// ImportRuntime is the wall time of the last import that actually wrote rows.
func (c *Client) ImportRuntime() time.Duration {
	return c.importRuntime
}

// Import mirrors the schedule tables of staticData into the store. When the
// stored import metadata already carries the same hash and source the import is
// skipped and Import reports false.
func (c *Client) Import(ctx context.Context, staticData *gtfs.Static, source, hash string) (bool, error) {
	if staticData == nil {
		return false, errors.New("nil static data")
	}
	logger := slog.Default().With(slog.String("component", "gtfs_importer"))

	existing, err := c.Queries.GetImportMetadata(ctx)
	switch {
	case err == nil:
		if existing.FileHash == hash && existing.FileSource == source {
			logging.LogOperation(logger, "gtfs_data_unchanged_skipping_import",
				slog.String("hash", shortHash(hash)))
			return false, nil
		}
		logging.LogOperation(logger, "gtfs_data_changed_reimporting",
			slog.String("old_hash", shortHash(existing.FileHash)),
			slog.String("new_hash", shortHash(hash)))
		if err := c.clearAllGTFSData(ctx); err != nil {
			return false, fmt.Errorf("error clearing existing GTFS data: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// first import into this store
	default:
		return false, fmt.Errorf("error checking import metadata: %w", err)
	}

	if err := c.storeStaticData(ctx, staticData, source, hash); err != nil {
		return false, err
	}
	return true, nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
