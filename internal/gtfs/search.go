package gtfs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OneBusAway/go-gtfs"
)

// FindRoutes matches query as a case-insensitive substring of a route's short
// name or ID. Results are ordered by short name (numbers numerically) then ID.
func (f *StaticFeed) FindRoutes(query string) []*gtfs.Route {
	q := strings.ToLower(strings.TrimSpace(query))
	if f == nil || q == "" {
		return nil
	}

	var out []*gtfs.Route
	for i := range f.Data.Routes {
		r := &f.Data.Routes[i]
		if strings.Contains(strings.ToLower(r.ShortName), q) || strings.Contains(strings.ToLower(r.Id), q) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := compareRouteNames(out[i].ShortName, out[j].ShortName); c != 0 {
			return c < 0
		}
		return out[i].Id < out[j].Id
	})
	return out
}

// compareRouteNames orders "6" before "17" before "109" before "N1".
func compareRouteNames(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na - nb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// FindStopsByName matches query as a case-insensitive substring of the stop
// name, keeping file order and dropping repeated (id, name) pairs.
func (f *StaticFeed) FindStopsByName(query string) []*gtfs.Stop {
	q := strings.ToLower(strings.TrimSpace(query))
	if f == nil || q == "" {
		return nil
	}

	type key struct{ id, name string }
	seen := make(map[key]bool)

	var out []*gtfs.Stop
	for i := range f.Data.Stops {
		s := &f.Data.Stops[i]
		if !strings.Contains(strings.ToLower(s.Name), q) {
			continue
		}
		k := key{s.Id, s.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// LookupRoutes is FindRoutes that reports ErrRouteNotFound for an empty result.
func (f *StaticFeed) LookupRoutes(query string) ([]*gtfs.Route, error) {
	routes := f.FindRoutes(query)
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrRouteNotFound, query)
	}
	return routes, nil
}

// LookupStops is FindStopsByName that reports ErrStopNotFound for an empty result.
func (f *StaticFeed) LookupStops(query string) ([]*gtfs.Stop, error) {
	stops := f.FindStopsByName(query)
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrStopNotFound, query)
	}
	return stops, nil
}
