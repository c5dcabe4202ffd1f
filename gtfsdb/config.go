package gtfsdb

import "github.com/ficojok/ZETdev/internal/appconf"

const defaultBulkInsertBatchSize = 500

// Config controls where the schedule store lives and how it is loaded.
type Config struct {
	DBPath string
	Env    appconf.Environment

	// BulkInsertBatchSize is the number of stop_times rows per multi-row INSERT.
	// SQLite caps bound parameters at 32766, and each row binds 7.
	BulkInsertBatchSize int

	verbose bool
}

func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		DBPath:  dbPath,
		Env:     env,
		verbose: verbose,
	}
}

func (c Config) GetBulkInsertBatchSize() int {
	if c.BulkInsertBatchSize <= 0 {
		return defaultBulkInsertBatchSize
	}
	if c.BulkInsertBatchSize > 4000 {
		return 4000
	}
	return c.BulkInsertBatchSize
}
