package gtfsdb

import (
	"context"
	"database/sql"
)

const createStop = `
INSERT INTO stops (id, code, name, lat, lon, location_type)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateStopParams struct {
	ID           string
	Code         sql.NullString
	Name         sql.NullString
	Lat          sql.NullFloat64
	Lon          sql.NullFloat64
	LocationType sql.NullInt64
}

func (q *Queries) CreateStop(ctx context.Context, arg CreateStopParams) error {
	_, err := q.db.ExecContext(ctx, createStop,
		arg.ID,
		arg.Code,
		arg.Name,
		arg.Lat,
		arg.Lon,
		arg.LocationType,
	)
	return err
}

const createCalendar = `
INSERT INTO calendar (id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateCalendarParams struct {
	ID        string
	Monday    int64
	Tuesday   int64
	Wednesday int64
	Thursday  int64
	Friday    int64
	Saturday  int64
	Sunday    int64
	StartDate string
	EndDate   string
}

func (q *Queries) CreateCalendar(ctx context.Context, arg CreateCalendarParams) error {
	_, err := q.db.ExecContext(ctx, createCalendar,
		arg.ID,
		arg.Monday,
		arg.Tuesday,
		arg.Wednesday,
		arg.Thursday,
		arg.Friday,
		arg.Saturday,
		arg.Sunday,
		arg.StartDate,
		arg.EndDate,
	)
	return err
}

const createCalendarDate = `
INSERT OR REPLACE INTO calendar_dates (service_id, date, exception_type)
VALUES (?, ?, ?)
`

type CreateCalendarDateParams struct {
	ServiceID     string
	Date          string
	ExceptionType int64
}

func (q *Queries) CreateCalendarDate(ctx context.Context, arg CreateCalendarDateParams) error {
	_, err := q.db.ExecContext(ctx, createCalendarDate, arg.ServiceID, arg.Date, arg.ExceptionType)
	return err
}

const createTrip = `
INSERT INTO trips (id, route_id, service_id, trip_headsign, trip_short_name, direction_id, block_id, shape_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateTripParams struct {
	ID            string
	RouteID       string
	ServiceID     string
	TripHeadsign  sql.NullString
	TripShortName sql.NullString
	DirectionID   sql.NullInt64
	BlockID       sql.NullString
	ShapeID       sql.NullString
}

func (q *Queries) CreateTrip(ctx context.Context, arg CreateTripParams) error {
	_, err := q.db.ExecContext(ctx, createTrip,
		arg.ID,
		arg.RouteID,
		arg.ServiceID,
		arg.TripHeadsign,
		arg.TripShortName,
		arg.DirectionID,
		arg.BlockID,
		arg.ShapeID,
	)
	return err
}

// CreateStopTimeParams mirrors a stop_times row. Bulk imports bypass this
// type's single-row insert and batch rows directly.
type CreateStopTimeParams struct {
	TripID            string
	ArrivalTime       int64
	DepartureTime     int64
	StopID            string
	StopSequence      int64
	StopHeadsign      sql.NullString
	ShapeDistTraveled sql.NullFloat64
}

const getTrip = `
SELECT id, route_id, service_id, trip_headsign, trip_short_name, direction_id, block_id, shape_id
FROM trips
WHERE id = ?
`

func (q *Queries) GetTrip(ctx context.Context, id string) (Trip, error) {
	row := q.db.QueryRowContext(ctx, getTrip, id)
	var i Trip
	err := row.Scan(
		&i.ID,
		&i.RouteID,
		&i.ServiceID,
		&i.TripHeadsign,
		&i.TripShortName,
		&i.DirectionID,
		&i.BlockID,
		&i.ShapeID,
	)
	return i, err
}

const getStopTimesForTrip = `
SELECT trip_id, arrival_time, departure_time, stop_id, stop_sequence, stop_headsign, shape_dist_traveled
FROM stop_times
WHERE trip_id = ?
ORDER BY stop_sequence
`

func (q *Queries) GetStopTimesForTrip(ctx context.Context, tripID string) ([]StopTime, error) {
	rows, err := q.db.QueryContext(ctx, getStopTimesForTrip, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []StopTime
	for rows.Next() {
		var i StopTime
		if err := rows.Scan(
			&i.TripID,
			&i.ArrivalTime,
			&i.DepartureTime,
			&i.StopID,
			&i.StopSequence,
			&i.StopHeadsign,
			&i.ShapeDistTraveled,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getImportMetadata = `
SELECT id, file_hash, import_time, file_source
FROM import_metadata
WHERE id = 1
`

func (q *Queries) GetImportMetadata(ctx context.Context) (ImportMetadatum, error) {
	row := q.db.QueryRowContext(ctx, getImportMetadata)
	var i ImportMetadatum
	err := row.Scan(&i.ID, &i.FileHash, &i.ImportTime, &i.FileSource)
	return i, err
}

const upsertImportMetadata = `
INSERT INTO import_metadata (id, file_hash, import_time, file_source)
VALUES (1, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    file_hash = excluded.file_hash,
    import_time = excluded.import_time,
    file_source = excluded.file_source
`

type UpsertImportMetadataParams struct {
	FileHash   string
	ImportTime int64
	FileSource string
}

func (q *Queries) UpsertImportMetadata(ctx context.Context, arg UpsertImportMetadataParams) error {
	_, err := q.db.ExecContext(ctx, upsertImportMetadata, arg.FileHash, arg.ImportTime, arg.FileSource)
	return err
}

const clearStopTimes = `DELETE FROM stop_times`

func (q *Queries) ClearStopTimes(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearStopTimes)
	return err
}

const clearTrips = `DELETE FROM trips`

func (q *Queries) ClearTrips(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearTrips)
	return err
}

const clearCalendarDates = `DELETE FROM calendar_dates`

func (q *Queries) ClearCalendarDates(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearCalendarDates)
	return err
}

const clearCalendar = `DELETE FROM calendar`

func (q *Queries) ClearCalendar(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearCalendar)
	return err
}

const clearStops = `DELETE FROM stops`

func (q *Queries) ClearStops(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearStops)
	return err
}
