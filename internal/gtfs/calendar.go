package gtfs

import (
	"sort"
	"time"

	"github.com/OneBusAway/go-gtfs"
)

const serviceDateLayout = "20060102"

// ActiveServices returns the IDs of services running on date's calendar day
// (in date's own location).
//
// The weekday flag applies within [StartDate, EndDate]; a zero bound is open.
// calendar_dates additions then switch a service on and removals switch it off.
func ActiveServices(services []gtfs.Service, date time.Time) map[string]bool {
	day := date.Format(serviceDateLayout)
	weekday := date.Weekday()

	active := make(map[string]bool)
	for i := range services {
		s := &services[i]

		inRange := (s.StartDate.IsZero() || s.StartDate.Format(serviceDateLayout) <= day) &&
			(s.EndDate.IsZero() || day <= s.EndDate.Format(serviceDateLayout))
		if inRange && runsOn(s, weekday) {
			active[s.Id] = true
		}

		for _, d := range s.AddedDates {
			if d.Format(serviceDateLayout) == day {
				active[s.Id] = true
			}
		}
		for _, d := range s.RemovedDates {
			if d.Format(serviceDateLayout) == day {
				delete(active, s.Id)
			}
		}
	}
	return active
}

func runsOn(s *gtfs.Service, weekday time.Weekday) bool {
	switch weekday {
	case time.Monday:
		return s.Monday
	case time.Tuesday:
		return s.Tuesday
	case time.Wednesday:
		return s.Wednesday
	case time.Thursday:
		return s.Thursday
	case time.Friday:
		return s.Friday
	case time.Saturday:
		return s.Saturday
	default:
		return s.Sunday
	}
}

// ActiveServiceIDs is ActiveServices as a sorted slice, for SQL filters.
func ActiveServiceIDs(active map[string]bool) []string {
	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
