package gtfsdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OneBusAway/go-gtfs"
	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"github.com/ficojok/ZETdev/internal/appconf"
	"github.com/ficojok/ZETdev/internal/logging"
)

//go:embed schema.sql
var ddl string

const gtfsDateLayout = "20060102"

// createDB opens the SQLite database and brings its schema up to date.
func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, err
	}

	// :memory: gives every connection its own database, so the pool is pinned
	// before anything touches the schema.
	configureConnectionPool(db, config)

	ctx := context.Background()
	if err := configureSQLitePerformance(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite performance: %w", err)
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return db, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

func (c *Client) storeStaticData(ctx context.Context, staticData *gtfs.Static, source, hash string) error {
	logger := slog.Default().With(slog.String("component", "gtfs_importer"))

	startTime := time.Now()
	defer func() {
		c.importRuntime = time.Since(startTime)
		logging.LogOperation(logger, "gtfs_data_import_completed",
			slog.Duration("duration", c.importRuntime),
			slog.String("source", source))
	}()

	logging.LogOperation(logger, "starting_database_import",
		slog.Int("stops", len(staticData.Stops)),
		slog.Int("trips", len(staticData.Trips)),
		slog.Int("services", len(staticData.Services)))

	stops := make([]CreateStopParams, 0, len(staticData.Stops))
	for _, s := range staticData.Stops {
		params := CreateStopParams{
			ID:           s.Id,
			Code:         toNullString(s.Code),
			Name:         toNullString(s.Name),
			LocationType: sql.NullInt64{Int64: int64(s.Type), Valid: true},
		}
		// Generic nodes and boarding areas may omit coordinates.
		if s.Latitude != nil && s.Longitude != nil {
			params.Lat = sql.NullFloat64{Float64: *s.Latitude, Valid: true}
			params.Lon = sql.NullFloat64{Float64: *s.Longitude, Valid: true}
		}
		stops = append(stops, params)
	}
	if err := c.bulkInsertStops(ctx, stops); err != nil {
		return fmt.Errorf("unable to create stops: %w", err)
	}

	calendars := make([]CreateCalendarParams, 0, len(staticData.Services))
	var calendarDates []CreateCalendarDateParams
	for _, s := range staticData.Services {
		calendars = append(calendars, CreateCalendarParams{
			ID:        s.Id,
			Monday:    boolToInt(s.Monday),
			Tuesday:   boolToInt(s.Tuesday),
			Wednesday: boolToInt(s.Wednesday),
			Thursday:  boolToInt(s.Thursday),
			Friday:    boolToInt(s.Friday),
			Saturday:  boolToInt(s.Saturday),
			Sunday:    boolToInt(s.Sunday),
			StartDate: formatDate(s.StartDate),
			EndDate:   formatDate(s.EndDate),
		})
		for _, date := range s.AddedDates {
			calendarDates = append(calendarDates, CreateCalendarDateParams{
				ServiceID: s.Id, Date: date.Format(gtfsDateLayout), ExceptionType: 1,
			})
		}
		for _, date := range s.RemovedDates {
			calendarDates = append(calendarDates, CreateCalendarDateParams{
				ServiceID: s.Id, Date: date.Format(gtfsDateLayout), ExceptionType: 2,
			})
		}
	}
	if err := c.bulkInsertCalendar(ctx, calendars, calendarDates); err != nil {
		return fmt.Errorf("unable to create calendar: %w", err)
	}

	trips := make([]CreateTripParams, 0, len(staticData.Trips))
	var stopTimes []CreateStopTimeParams
	for _, t := range staticData.Trips {
		// shapes.txt is optional
		var shapeID string
		if t.Shape != nil {
			shapeID = t.Shape.ID
		}
		var routeID, serviceID string
		if t.Route != nil {
			routeID = t.Route.Id
		}
		if t.Service != nil {
			serviceID = t.Service.Id
		}
		trips = append(trips, CreateTripParams{
			ID:            t.ID,
			RouteID:       routeID,
			ServiceID:     serviceID,
			TripHeadsign:  toNullString(t.Headsign),
			TripShortName: toNullString(t.ShortName),
			DirectionID:   sql.NullInt64{Int64: int64(t.DirectionId), Valid: true},
			BlockID:       toNullString(t.BlockID),
			ShapeID:       toNullString(shapeID),
		})

		for _, st := range t.StopTimes {
			if st.Stop == nil {
				continue
			}
			params := CreateStopTimeParams{
				TripID:        t.ID,
				ArrivalTime:   int64(st.ArrivalTime / time.Second),
				DepartureTime: int64(st.DepartureTime / time.Second),
				StopID:        st.Stop.Id,
				StopSequence:  int64(st.StopSequence),
				StopHeadsign:  toNullString(st.Headsign),
			}
			if st.ShapeDistanceTraveled != nil {
				params.ShapeDistTraveled = sql.NullFloat64{Float64: *st.ShapeDistanceTraveled, Valid: true}
			}
			stopTimes = append(stopTimes, params)
		}
	}
	if err := c.bulkInsertTrips(ctx, trips); err != nil {
		return fmt.Errorf("unable to create trips: %w", err)
	}
	if err := c.bulkInsertStopTimes(ctx, stopTimes); err != nil {
		return fmt.Errorf("unable to create stop times: %w", err)
	}

	logging.LogOperation(logger, "updating_import_metadata",
		slog.String("hash", shortHash(hash)),
		slog.String("source", source))

	err := c.Queries.UpsertImportMetadata(ctx, UpsertImportMetadataParams{
		FileHash:   hash,
		ImportTime: time.Now().Unix(),
		FileSource: source,
	})
	if err != nil {
		logging.LogError(logger, "Error updating import metadata", err)
		return fmt.Errorf("error updating import metadata: %w", err)
	}

	return nil
}

// clearAllGTFSData removes every imported row, dependents first.
func (c *Client) clearAllGTFSData(ctx context.Context) error {
	logger := slog.Default().With(slog.String("component", "gtfs_importer"))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "clear_gtfs_data")

	qtx := c.Queries.WithTx(tx)
	steps := []struct {
		table string
		clear func(context.Context) error
	}{
		{"stop_times", qtx.ClearStopTimes},
		{"trips", qtx.ClearTrips},
		{"calendar_dates", qtx.ClearCalendarDates},
		{"calendar", qtx.ClearCalendar},
		{"stops", qtx.ClearStops},
	}
	for _, step := range steps {
		if err := step.clear(ctx); err != nil {
			return fmt.Errorf("error clearing %s: %w", step.table, err)
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}

// ToNullString is the exported form of toNullString.
func ToNullString(s string) sql.NullString {
	return toNullString(s)
}

// formatDate renders a calendar bound; an unset bound is stored as "".
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(gtfsDateLayout)
}

func (c *Client) bulkInsertStops(ctx context.Context, stops []CreateStopParams) error {
	logger := slog.Default().With(slog.String("component", "bulk_insert"))

	logging.LogOperation(logger, "inserting_stops", slog.Int("count", len(stops)))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "bulk_insert_stops")

	qtx := c.Queries.WithTx(tx)
	for _, params := range stops {
		if err := qtx.CreateStop(ctx, params); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *Client) bulkInsertCalendar(ctx context.Context, calendars []CreateCalendarParams, dates []CreateCalendarDateParams) error {
	logger := slog.Default().With(slog.String("component", "bulk_insert"))

	logging.LogOperation(logger, "inserting_calendar",
		slog.Int("services", len(calendars)),
		slog.Int("calendar_dates", len(dates)))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "bulk_insert_calendar")

	qtx := c.Queries.WithTx(tx)
	for _, params := range calendars {
		if err := qtx.CreateCalendar(ctx, params); err != nil {
			return err
		}
	}
	for _, params := range dates {
		if err := qtx.CreateCalendarDate(ctx, params); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *Client) bulkInsertTrips(ctx context.Context, trips []CreateTripParams) error {
	logger := slog.Default().With(slog.String("component", "bulk_insert"))

	logging.LogOperation(logger, "inserting_trips", slog.Int("count", len(trips)))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "bulk_insert_trips")

	qtx := c.Queries.WithTx(tx)
	for _, params := range trips {
		if err := qtx.CreateTrip(ctx, params); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// preparedStopTimeBatch holds a prepared multi-row INSERT with its arguments
type preparedStopTimeBatch struct {
	query string
	args  []interface{}
	index int
	end   int
}

// bulkInsertStopTimes builds multi-row INSERTs on a worker pool and executes
// them in order inside a single transaction.
func (c *Client) bulkInsertStopTimes(ctx context.Context, stopTimes []CreateStopTimeParams) error {
	logger := slog.Default().With(slog.String("component", "bulk_insert"))

	logging.LogOperation(logger, "inserting_stop_times", slog.Int("count", len(stopTimes)))
	if len(stopTimes) == 0 {
		return nil
	}

	batchSize := c.config.GetBulkInsertBatchSize()
	const baseQuery = `INSERT INTO stop_times (
		trip_id, arrival_time, departure_time, stop_id, stop_sequence, stop_headsign, shape_dist_traveled
	) VALUES `
	numBatches := (len(stopTimes) + batchSize - 1) / batchSize

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "bulk_insert_stop_times")

	numWorkers := runtime.NumCPU()
	batchChan := make(chan int, numWorkers)
	resultsChan := make(chan preparedStopTimeBatch, numWorkers*4)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batchIndex := range batchChan {
				start := batchIndex * batchSize
				end := min(start+batchSize, len(stopTimes))
				batch := stopTimes[start:end]

				// Values are always bound as placeholders.
				var query strings.Builder
				query.WriteString(baseQuery)
				args := make([]interface{}, 0, len(batch)*7)
				for j, params := range batch {
					if j > 0 {
						query.WriteString(", ")
					}
					query.WriteString("(?, ?, ?, ?, ?, ?, ?)")
					args = append(args,
						params.TripID,
						params.ArrivalTime,
						params.DepartureTime,
						params.StopID,
						params.StopSequence,
						params.StopHeadsign,
						params.ShapeDistTraveled,
					)
				}
				resultsChan <- preparedStopTimeBatch{query: query.String(), args: args, index: batchIndex, end: end}
			}
		}()
	}

	go func() {
		defer close(batchChan)
		for i := 0; i < numBatches; i++ {
			select {
			case <-ctx.Done():
				return
			case batchChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	prepared := make([]preparedStopTimeBatch, 0, numBatches)
	for batch := range resultsChan {
		prepared = append(prepared, batch)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	sort.Slice(prepared, func(i, j int) bool {
		return prepared[i].index < prepared[j].index
	})

	for _, batch := range prepared {
		if _, err := tx.ExecContext(ctx, batch.query, batch.args...); err != nil {
			return fmt.Errorf("failed to insert stop_times batch: %w", err)
		}
		if batch.end%100000 == 0 || batch.end == len(stopTimes) {
			logging.LogOperation(logger, "stop_times_progress",
				slog.Int("inserted", batch.end),
				slog.Int("total", len(stopTimes)))
		}
	}

	return tx.Commit()
}

// configureSQLitePerformance applies PRAGMA settings for bulk imports and reads.
func configureSQLitePerformance(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name        string
		description string
	}{
		{"PRAGMA cache_size=-64000", "Set cache size to 64MB"},
		{"PRAGMA temp_store=MEMORY", "Store temporary data in memory"},
		{"PRAGMA synchronous=NORMAL", "Relax fsync during imports"},
	}

	logger := slog.Default().With(slog.String("component", "sqlite_performance"))

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma.name); err != nil {
			logging.LogError(logger, fmt.Sprintf("Failed to set %s", pragma.description), err)
			return fmt.Errorf("failed to execute %s: %w", pragma.name, err)
		}
	}

	logger.Debug("sqlite_performance_settings_applied", slog.Int("pragma_count", len(pragmas)))
	return nil
}

// configureConnectionPool limits :memory: databases to one connection, since
// each connection would otherwise see its own empty database.
func configureConnectionPool(db *sql.DB, config Config) {
	if config.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}
