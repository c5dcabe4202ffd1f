package cli

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/OneBusAway/go-gtfs"

	zetgtfs "github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/logging"
	"github.com/ficojok/ZETdev/internal/report"
)

// routeQuery is one route search.
type routeQuery struct {
	Query  string
	Source Source
	At     time.Time
	Shape  bool
}

func (s *session) searchRoute(ctx context.Context, q routeQuery, choose chooser) error {
	static := s.app.GtfsManager.Static()

	var route *gtfs.Route
	if static == nil {
		// Realtime only: the query is taken as the feed's route_id.
		route = &gtfs.Route{Id: strings.TrimSpace(q.Query)}
	} else {
		routes, err := static.LookupRoutes(q.Query)
		if errors.Is(err, zetgtfs.ErrRouteNotFound) {
			s.p.Println("Linija nije pronađena u routes.txt.")
			return nil
		}
		if err != nil {
			return err
		}
		route = routes[0]
		if len(routes) > 1 {
			s.p.RouteChoices(routes)
			idx, ok, err := choose(len(routes))
			if err != nil {
				return err
			}
			if !ok {
				s.p.InvalidIndex()
				return nil
			}
			route = routes[idx]
		}
	}

	s.p.Divider(report.RouteTitle(route))

	if q.Source.Static() {
		if static == nil {
			s.p.Println("Nedostaju statički podaci.")
		} else {
			active := zetgtfs.ActiveServices(static.Data.Services, q.At)
			s.p.StaticTrips(static.StaticTripsForRoute(route.Id, active), q.At)
			if q.Shape {
				if shape, ok := static.RouteShape(route.Id); ok {
					s.p.RouteShape(shape)
				} else {
					s.p.Println("Trasa nije dostupna.")
				}
			}
		}
	}

	if q.Source.Realtime() {
		s.realtime(ctx, zetgtfs.ByRoute(route.Id), report.MaxRouteMatches, true)
	}
	return nil
}

func (s *session) searchVehicle(ctx context.Context, query string, src Source) error {
	query = strings.TrimSpace(query)
	s.p.Divider("Pretraga vozila: " + query)

	found := s.app.Fleet.Search(query)
	s.p.FleetRecords(found)

	if src.Realtime() {
		// A registration resolves to the garage number the feed reports.
		vehicleID := query
		if len(found) == 1 && found[0].Garage != "" {
			vehicleID = found[0].Garage
		}
		s.realtime(ctx, zetgtfs.ByVehicle(vehicleID), 0, false)
	}
	return nil
}

// stopQuery is one stop departure lookup.
type stopQuery struct {
	StopID string
	Source Source
	At     time.Time
	Limit  int
}

func (s *session) searchStopID(ctx context.Context, q stopQuery) error {
	q.StopID = strings.TrimSpace(q.StopID)
	static := s.app.GtfsManager.Static()
	s.p.Divider(report.StopTitle(q.StopID, static))

	if q.Source.Static() {
		if err := s.departures(ctx, q); err != nil {
			return err
		}
	}
	if q.Source.Realtime() {
		s.realtime(ctx, zetgtfs.ByStop(q.StopID), 0, false)
	}
	return nil
}

func (s *session) departures(ctx context.Context, q stopQuery) error {
	static := s.app.GtfsManager.Static()
	if static == nil {
		s.p.Println("Nedostaju statički podaci ili datum/vrijeme.")
		return nil
	}
	if _, ok := static.StopByID(q.StopID); !ok {
		s.p.Println("Stanica nije pronađena u stops.txt.")
		return nil
	}

	deps, err := s.app.GtfsManager.DeparturesForStop(ctx, q.StopID, q.At, q.Limit)
	if err != nil {
		return err
	}
	s.p.Departures(deps, q.At)
	return nil
}

func (s *session) searchStopName(ctx context.Context, query string, q stopQuery, choose chooser) error {
	static := s.app.GtfsManager.Static()
	if static == nil {
		s.p.Println("Nedostaju statički podaci.")
		return nil
	}

	stops, err := static.LookupStops(query)
	if errors.Is(err, zetgtfs.ErrStopNotFound) {
		s.p.Println("Nema stanica koje odgovaraju upitu.")
		return nil
	}
	if err != nil {
		return err
	}

	chosen := stops[0]
	if len(stops) > 1 {
		s.p.StopChoices(stops)
		idx, ok, err := choose(len(stops))
		if err != nil {
			return err
		}
		if !ok {
			s.p.InvalidIndex()
			return nil
		}
		chosen = stops[idx]
	}

	q.StopID = chosen.Id
	return s.searchStopID(ctx, q)
}

func (s *session) fleetStats(limit int) {
	s.p.Divider("Statistika voznog parka")
	s.p.FleetStats(s.app.Fleet, limit)
}

// realtime fetches the feed and prints the entities matching filter. A failed
// fetch is reported inline and never aborts the search.
func (s *session) realtime(ctx context.Context, filter zetgtfs.Filter, limit int, summary bool) {
	manager := s.app.GtfsManager
	snap, err := manager.Realtime(ctx)
	if err != nil {
		logging.LogError(s.app.Logger.With(slog.String("component", "cli")), "realtime fetch failed", err,
			slog.String("filter", filter.Kind.String()))
		s.p.RealtimeError(err)
		return
	}

	s.p.Matches(manager.Correlate(snap, filter), report.MatchOptions{
		Static:   manager.Static(),
		Fleet:    s.app.Fleet,
		Stops:    manager,
		Limit:    limit,
		Summary:  summary,
		Detector: s.app.Detector,
		Now:      s.app.Now(),
	})
}
