package gtfsdb

// Hand-written departure board query.
// The service ID filter is a variable-length IN list, which is built at call time
// instead of being kept as a fixed statement next to the other queries.
//
// IMPORTANT: If the 'trips' or 'stop_times' schemas change, the SQL and Go types in
// this file must be updated manually to match.

import (
	"context"
	"database/sql"
	"strings"
)

const departuresForStopPrefix = `
SELECT
    st.trip_id,
    t.route_id,
    t.service_id,
    t.trip_headsign,
    st.stop_headsign,
    st.stop_sequence,
    st.arrival_time,
    st.departure_time
FROM
    stop_times st
    JOIN trips t ON t.id = st.trip_id
WHERE
    st.stop_id = ?
    AND st.departure_time >= ?
    AND t.service_id IN (`

const departuresForStopSuffix = `)
ORDER BY
    st.departure_time,
    t.route_id,
    st.trip_id
LIMIT
    ?
`

type DeparturesForStopParams struct {
	StopID string
	// ServiceIDs restricts results to these services. An empty list matches nothing.
	ServiceIDs []string
	// FromSeconds is the earliest departure, in service-day seconds.
	FromSeconds int64
	Limit       int64
}

type DeparturesForStopRow struct {
	TripID        string
	RouteID       string
	ServiceID     string
	TripHeadsign  sql.NullString
	StopHeadsign  sql.NullString
	StopSequence  int64
	ArrivalTime   int64
	DepartureTime int64
}

// DeparturesForStop lists scheduled departures from a stop ordered by departure time.
func (q *Queries) DeparturesForStop(ctx context.Context, arg DeparturesForStopParams) ([]DeparturesForStopRow, error) {
	if len(arg.ServiceIDs) == 0 || arg.Limit <= 0 {
		return []DeparturesForStopRow{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(arg.ServiceIDs)), ", ")
	query := departuresForStopPrefix + placeholders + departuresForStopSuffix

	args := make([]interface{}, 0, len(arg.ServiceIDs)+3)
	args = append(args, arg.StopID, arg.FromSeconds)
	for _, id := range arg.ServiceIDs {
		args = append(args, id)
	}
	args = append(args, arg.Limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	items := []DeparturesForStopRow{}
	for rows.Next() {
		var i DeparturesForStopRow
		if err := rows.Scan(
			&i.TripID,
			&i.RouteID,
			&i.ServiceID,
			&i.TripHeadsign,
			&i.StopHeadsign,
			&i.StopSequence,
			&i.ArrivalTime,
			&i.DepartureTime,
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
