package gtfs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"github.com/ficojok/ZETdev/gtfsdb"
	"github.com/ficojok/ZETdev/internal/utils"
)

const (
	// DepartureLookBack keeps departures that left up to five minutes ago.
	DepartureLookBack = 5 * time.Minute
	// DefaultDepartureLimit caps a departure board.
	DefaultDepartureLimit = 50
)

// StopVisit is one scheduled call of a trip. Times are service-day seconds.
type StopVisit struct {
	StopID    string
	StopName  string
	Sequence  int
	Arrival   int
	Departure int
}

type StaticTrip struct {
	TripID    string
	RouteID   string
	ServiceID string
	Headsign  string
	Stops     []StopVisit
}

// FirstDeparture is the departure time of the first call, or -1.
func (t StaticTrip) FirstDeparture() int {
	if len(t.Stops) == 0 {
		return -1
	}
	return t.Stops[0].Departure
}

// Departure is one row of a stop's departure board.
type Departure struct {
	TripID       string
	RouteID      string
	ServiceID    string
	Headsign     string
	StopSequence int
	Arrival      int
	Departure    int
	// Delta is Departure minus the query time, in seconds.
	Delta int
}

// StaticTripsForRoute returns the route's trips whose service is in active,
// ordered by first departure. An empty active set yields no trips.
func (f *StaticFeed) StaticTripsForRoute(routeID string, active map[string]bool) []StaticTrip {
	if f == nil || len(active) == 0 {
		return nil
	}

	var out []StaticTrip
	for i := range f.Data.Trips {
		t := &f.Data.Trips[i]
		if t.Route == nil || t.Route.Id != routeID || t.Service == nil || !active[t.Service.Id] {
			continue
		}

		out = append(out, f.staticTrip(t))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FirstDeparture() != out[j].FirstDeparture() {
			return out[i].FirstDeparture() < out[j].FirstDeparture()
		}
		return out[i].TripID < out[j].TripID
	})
	return out
}

// StaticTripByID resolves one scheduled trip with its calls in sequence order.
func (f *StaticFeed) StaticTripByID(tripID string) (StaticTrip, error) {
	t, ok := f.TripByID(tripID)
	if !ok {
		return StaticTrip{}, fmt.Errorf("%w: %q", ErrTripNotFound, tripID)
	}
	return f.staticTrip(t), nil
}

func (f *StaticFeed) staticTrip(t *gtfs.ScheduledTrip) StaticTrip {
	trip := StaticTrip{
		TripID:   t.ID,
		Headsign: f.HeadsignForTrip(t.ID),
		Stops:    make([]StopVisit, 0, len(t.StopTimes)),
	}
	if t.Route != nil {
		trip.RouteID = t.Route.Id
	}
	if t.Service != nil {
		trip.ServiceID = t.Service.Id
	}
	for _, st := range t.StopTimes {
		if st.Stop == nil {
			continue
		}
		trip.Stops = append(trip.Stops, StopVisit{
			StopID:    st.Stop.Id,
			StopName:  f.StopName(st.Stop.Id),
			Sequence:  int(st.StopSequence),
			Arrival:   int(st.ArrivalTime / time.Second),
			Departure: int(st.DepartureTime / time.Second),
		})
	}
	sort.SliceStable(trip.Stops, func(a, b int) bool {
		return trip.Stops[a].Sequence < trip.Stops[b].Sequence
	})
	return trip
}

// departuresFromFeed scans the in-memory feed; used when no schedule store is open.
func (f *StaticFeed) departuresFromFeed(stopID string, active map[string]bool, from, limit int) []Departure {
	var out []Departure
	for i := range f.Data.Trips {
		t := &f.Data.Trips[i]
		if t.Service == nil || !active[t.Service.Id] {
			continue
		}
		for _, st := range t.StopTimes {
			if st.Stop == nil || st.Stop.Id != stopID {
				continue
			}
			dep := int(st.DepartureTime / time.Second)
			if dep < from {
				continue
			}
			d := Departure{
				TripID:       t.ID,
				ServiceID:    t.Service.Id,
				Headsign:     f.HeadsignForTrip(t.ID),
				StopSequence: int(st.StopSequence),
				Arrival:      int(st.ArrivalTime / time.Second),
				Departure:    dep,
			}
			if t.Route != nil {
				d.RouteID = t.Route.Id
			}
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Departure != out[j].Departure {
			return out[i].Departure < out[j].Departure
		}
		if out[i].RouteID != out[j].RouteID {
			return out[i].RouteID < out[j].RouteID
		}
		return out[i].TripID < out[j].TripID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DeparturesForStop lists departures from stopID on at's service day that
// leave no earlier than DepartureLookBack before at, closest first, at most
// limit (DefaultDepartureLimit when limit <= 0).
func (manager *Manager) DeparturesForStop(ctx context.Context, stopID string, at time.Time, limit int) ([]Departure, error) {
	if limit <= 0 {
		limit = DefaultDepartureLimit
	}

	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()

	if manager.static == nil {
		return nil, ErrNoStaticData
	}

	at = at.In(manager.config.location())
	active := ActiveServices(manager.static.Data.Services, at)
	now := utils.SecondsSinceMidnight(at)
	from := now - int(DepartureLookBack/time.Second)

	var deps []Departure
	if manager.GtfsDB != nil {
		rows, err := manager.GtfsDB.Queries.DeparturesForStop(ctx, gtfsdb.DeparturesForStopParams{
			StopID:      stopID,
			ServiceIDs:  ActiveServiceIDs(active),
			FromSeconds: int64(from),
			Limit:       int64(limit),
		})
		if err != nil {
			return nil, fmt.Errorf("departures query failed for stop %q: %w", stopID, err)
		}
		deps = make([]Departure, 0, len(rows))
		for _, r := range rows {
			headsign := r.StopHeadsign.String
			if headsign == "" {
				headsign = r.TripHeadsign.String
			}
			if headsign == "" {
				headsign = manager.static.HeadsignForTrip(r.TripID)
			}
			deps = append(deps, Departure{
				TripID:       r.TripID,
				RouteID:      r.RouteID,
				ServiceID:    r.ServiceID,
				Headsign:     headsign,
				StopSequence: int(r.StopSequence),
				Arrival:      int(r.ArrivalTime),
				Departure:    int(r.DepartureTime),
			})
		}
	} else {
		deps = manager.static.departuresFromFeed(stopID, active, from, limit)
	}

	for i := range deps {
		deps[i].Delta = deps[i].Departure - now
	}
	return deps, nil
}
