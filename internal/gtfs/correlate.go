package gtfs

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/OneBusAway/go-gtfs"
)

type FilterKind int

const (
	FilterRoute FilterKind = iota
	FilterVehicle
	FilterStop
)

func (k FilterKind) String() string {
	switch k {
	case FilterVehicle:
		return "vehicle"
	case FilterStop:
		return "stop"
	default:
		return "route"
	}
}

// Filter selects realtime trips by exactly one criterion.
type Filter struct {
	Kind  FilterKind
	Value string
}

func ByRoute(routeID string) Filter     { return Filter{Kind: FilterRoute, Value: routeID} }
func ByVehicle(vehicleID string) Filter { return Filter{Kind: FilterVehicle, Value: vehicleID} }
func ByStop(stopID string) Filter       { return Filter{Kind: FilterStop, Value: stopID} }

// Match joins the trip update and vehicle position the feed reports for one
// trip. Either side may be nil. A vehicle without a trip is its own match with
// an empty TripID.
type Match struct {
	TripID     string
	RouteID    string
	TripUpdate *gtfs.Trip
	Vehicle    *gtfs.Vehicle
}

// HasGPS reports whether the match carries a vehicle position.
func (m Match) HasGPS() bool {
	return hasPosition(m.Vehicle)
}

// VehicleID is the vehicle descriptor ID from the position, else from the trip update.
func (m Match) VehicleID() string {
	if m.Vehicle != nil && m.Vehicle.ID != nil && m.Vehicle.ID.ID != "" {
		return m.Vehicle.ID.ID
	}
	if m.TripUpdate != nil && m.TripUpdate.Vehicle != nil && m.TripUpdate.Vehicle.ID != nil {
		return m.TripUpdate.Vehicle.ID.ID
	}
	return ""
}

// Correlate groups the snapshot by trip and keeps the matches selected by filter,
// in the order their first entity appears in the feed message.
//
// Route filters resolve a trip's route through the static schedule and fall back
// to the route ID carried by the feed for trips the schedule does not know.
// Vehicle filters compare IDs case-insensitively. Stop filters keep trips with a
// stop time update for that stop.
func Correlate(snap *Snapshot, static *StaticFeed, filter Filter) []Match {
	if snap == nil || snap.Realtime == nil {
		return nil
	}
	rt := snap.Realtime
	value := strings.TrimSpace(filter.Value)
	if value == "" {
		return nil
	}

	var matches []*Match
	byTrip := make(map[string]*Match)
	entry := func(tripID string) *Match {
		if tripID != "" {
			if m, ok := byTrip[tripID]; ok {
				return m
			}
		}
		m := &Match{TripID: tripID}
		matches = append(matches, m)
		if tripID != "" {
			byTrip[tripID] = m
		}
		return m
	}

	for i := range rt.Trips {
		t := &rt.Trips[i]
		// Trips that only come from a vehicle position are joined below.
		if !t.IsEntityInMessage {
			continue
		}
		m := entry(t.ID.ID)
		m.TripUpdate = t
		if m.RouteID == "" {
			m.RouteID = t.ID.RouteID
		}
	}
	for i := range rt.Vehicles {
		v := &rt.Vehicles[i]
		var tripID, routeID string
		if v.Trip != nil {
			tripID, routeID = v.Trip.ID.ID, v.Trip.ID.RouteID
		}
		m := entry(tripID)
		m.Vehicle = v
		if m.RouteID == "" {
			m.RouteID = routeID
		}
	}

	slices.SortStableFunc(matches, func(a, b *Match) int {
		ra, rb := snap.Order.rank(a), snap.Order.rank(b)
		if ra != rb {
			if ra < 0 {
				return 1
			}
			if rb < 0 {
				return -1
			}
			return cmp.Compare(ra, rb)
		}
		return cmp.Or(cmp.Compare(a.TripID, b.TripID), cmp.Compare(a.VehicleID(), b.VehicleID()))
	})

	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.TripID != "" {
			if routeID, ok := static.RouteIDForTrip(m.TripID); ok {
				m.RouteID = routeID
			}
		}
		if filter.matches(m, value) {
			out = append(out, *m)
		}
	}
	return out
}

func (filter Filter) matches(m *Match, value string) bool {
	switch filter.Kind {
	case FilterVehicle:
		return strings.EqualFold(m.VehicleID(), value)
	case FilterStop:
		if m.TripUpdate == nil {
			return false
		}
		for _, stu := range m.TripUpdate.StopTimeUpdates {
			if stu.StopID != nil && *stu.StopID == value {
				return true
			}
		}
		return false
	default:
		return m.RouteID == value
	}
}

// Summary counts what a set of matches carries.
type Summary struct {
	Matches int
	// WithGPS is the number of matches with a vehicle position.
	WithGPS int
	// ScheduledWithoutGPS is the number of trip updates with no position.
	ScheduledWithoutGPS int
	Stale               int
}

// Summarize counts GPS coverage. With a detector, vehicles whose last report
// is older than its threshold at now are also counted as stale.
func Summarize(matches []Match, detector *StaleDetector, now time.Time) Summary {
	s := Summary{Matches: len(matches)}
	for _, m := range matches {
		switch {
		case m.HasGPS():
			s.WithGPS++
		case m.TripUpdate != nil:
			s.ScheduledWithoutGPS++
		}
		if detector != nil && m.Vehicle != nil && detector.Check(m.Vehicle, now) {
			s.Stale++
		}
	}
	return s
}
