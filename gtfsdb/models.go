package gtfsdb

import "database/sql"

type Stop struct {
	ID           string
	Code         sql.NullString
	Name         sql.NullString
	Lat          sql.NullFloat64
	Lon          sql.NullFloat64
	LocationType sql.NullInt64
}

type Calendar struct {
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

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType int64
}

type Trip struct {
	ID            string
	RouteID       string
	ServiceID     string
	TripHeadsign  sql.NullString
	TripShortName sql.NullString
	DirectionID   sql.NullInt64
	BlockID       sql.NullString
	ShapeID       sql.NullString
}

// StopTime times are seconds since the start of the service day and may exceed 86400.
type StopTime struct {
	TripID            string
	ArrivalTime       int64
	DepartureTime     int64
	StopID            string
	StopSequence      int64
	StopHeadsign      sql.NullString
	ShapeDistTraveled sql.NullFloat64
}

type ImportMetadatum struct {
	ID         int64
	FileHash   string
	ImportTime int64
	FileSource string
}
