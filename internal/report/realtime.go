package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"github.com/ficojok/ZETdev/internal/fleet"
	zetgtfs "github.com/ficojok/ZETdev/internal/gtfs"
)

// MaxRouteMatches caps how many realtime trips a route search prints.
const MaxRouteMatches = 50

// StopLocator finds the stop nearest to a position.
type StopLocator interface {
	NearestStop(lat, lon, radius float64) (*gtfs.Stop, float64, bool)
}

// TripUpdateLines describes a trip update: a header line and one line per stop
// time update. Stop names come from static when it is loaded.
func TripUpdateLines(tu *gtfs.Trip, static *zetgtfs.StaticFeed, loc *time.Location) []string {
	if tu == nil {
		return nil
	}

	headsign := static.HeadsignForTrip(tu.ID.ID)
	lines := []string{fmt.Sprintf("🚌 Trip ID: %s | Linija: %s | Smjer: %s",
		orDash(tu.ID.ID), orDash(tu.ID.RouteID), orDash(headsign))}

	for _, stu := range tu.StopTimeUpdates {
		stopID := "-"
		if stu.StopID != nil && *stu.StopID != "" {
			stopID = *stu.StopID
		}
		seq := "-"
		if stu.StopSequence != nil {
			seq = strconv.FormatUint(uint64(*stu.StopSequence), 10)
		}

		var arrival, departure *time.Time
		delay := "-"
		if stu.Arrival != nil {
			arrival = stu.Arrival.Time
			// an arrival without a delay field is on schedule
			var d time.Duration
			if stu.Arrival.Delay != nil {
				d = *stu.Arrival.Delay
			}
			delay = fmt.Sprintf("%ds", int(d/time.Second))
		}
		if stu.Departure != nil {
			departure = stu.Departure.Time
		}

		lines = append(lines, fmt.Sprintf("    • %s (%s) | seq %s | dolazak %s | odlazak %s | kašnjenje %s",
			static.StopName(stopID), stopID, seq, clock(arrival, loc), clock(departure, loc), delay))
	}
	return lines
}

// VehicleLines describes a vehicle position. The model comes from the fleet
// registry when it knows the garage number. When the feed gives no stop and
// stops is not nil, the nearest stop within DefaultNearestStopRadius is shown.
func VehicleLines(v *gtfs.Vehicle, registry *fleet.Registry, loc *time.Location, stops StopLocator) []string {
	if v == nil {
		return nil
	}
	var lines []string

	if v.Trip != nil && v.Trip.ID.ID != "" {
		lines = append(lines, fmt.Sprintf("🔗 trip_id: %s | route: %s", v.Trip.ID.ID, orDash(v.Trip.ID.RouteID)))
	}

	var vehicleID string
	if v.ID != nil {
		vehicleID = v.ID.ID
	}
	if vehicleID != "" {
		line := "🚍 Vehicle ID: " + vehicleID
		if rec, ok := registry.ByGarage(vehicleID); ok && rec.Model != "" {
			line += " Model: " + rec.Model
		}
		lines = append(lines, line)
	}

	if v.Position != nil && v.Position.Latitude != nil && v.Position.Longitude != nil {
		lat, lon := float64(*v.Position.Latitude), float64(*v.Position.Longitude)
		speed := "-"
		if v.Position.Speed != nil {
			speed = strconv.FormatFloat(float64(*v.Position.Speed), 'f', -1, 32)
		}
		lines = append(lines, fmt.Sprintf("📍 Lokacija: %.5f,%.5f | Brzina: %s | Stop ID: %s",
			lat, lon, speed, vehicleStop(v, lat, lon, stops)))
	}

	if v.CurrentStopSequence != nil {
		lines = append(lines, fmt.Sprintf("➡ Trenutni stop seq: %d", *v.CurrentStopSequence))
	}

	if v.Timestamp != nil && !v.Timestamp.IsZero() {
		lines = append(lines, "🕒 Ažurirano: "+v.Timestamp.In(loc).Format("2006-01-02 15:04:05"))
	}
	return lines
}

func vehicleStop(v *gtfs.Vehicle, lat, lon float64, stops StopLocator) string {
	if v.StopID != nil && *v.StopID != "" {
		return *v.StopID
	}
	if stops == nil {
		return "-"
	}
	stop, dist, ok := stops.NearestStop(lat, lon, zetgtfs.DefaultNearestStopRadius)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("~%s %s (%.0f m)", stop.Id, stop.Name, dist)
}

// MatchOptions tunes how realtime matches are printed.
type MatchOptions struct {
	Static   *zetgtfs.StaticFeed
	Fleet    *fleet.Registry
	Stops    StopLocator
	Limit    int
	Summary  bool
	Detector *zetgtfs.StaleDetector
	Now      time.Time
}

// Matches prints the realtime section of a search.
func (p *Printer) Matches(matches []zetgtfs.Match, opts MatchOptions) {
	fmt.Fprintf(p.w, "\nRealtime entiteta: %d\n", len(matches))

	shown := matches
	if opts.Limit > 0 && len(shown) > opts.Limit {
		shown = shown[:opts.Limit]
	}
	for _, m := range shown {
		fmt.Fprintf(p.w, "\nTrip %s\n", orDash(m.TripID))
		p.Lines(TripUpdateLines(m.TripUpdate, opts.Static, p.loc))
		p.Lines(VehicleLines(m.Vehicle, opts.Fleet, p.loc, opts.Stops))
	}
	if len(shown) < len(matches) {
		fmt.Fprintln(p.w, p.theme.Faint.Render(fmt.Sprintf("... još %d", len(matches)-len(shown))))
	}

	if !opts.Summary {
		return
	}
	s := zetgtfs.Summarize(matches, opts.Detector, opts.Now)
	fmt.Fprintf(p.w, "\nGPS opremljena vozila: %d\n", s.WithGPS)
	fmt.Fprintf(p.w, "Raspoređeni tripovi bez GPS-a: %d\n", s.ScheduledWithoutGPS)
	if opts.Detector != nil && s.Stale > 0 {
		fmt.Fprintf(p.w, "Zastarjele pozicije (> %s): %d\n", opts.Detector.Threshold(), s.Stale)
	}
}

// FeedSummary prints the header and entity counts of a realtime snapshot.
func (p *Printer) FeedSummary(snap *zetgtfs.Snapshot, url string) {
	h := snap.Header
	fmt.Fprintf(p.w, "Izvor: %s\n", url)
	fmt.Fprintf(p.w, "GTFS-RT verzija: %s | %s\n", orDash(h.Version), orDash(h.Incrementality))
	if h.Timestamp.IsZero() {
		fmt.Fprintln(p.w, "Vrijeme feeda: -")
	} else {
		age := snap.FetchedAt.Sub(h.Timestamp).Round(time.Second)
		fmt.Fprintf(p.w, "Vrijeme feeda: %s (staro %s)\n", h.Timestamp.In(p.loc).Format("2006-01-02 15:04:05"), age)
	}
	fmt.Fprintf(p.w, "Entiteta: %d (trip update %d, vozila %d, obavijesti %d, obrisano %d)\n",
		h.Entities, h.TripUpdates, h.Vehicles, h.Alerts, h.Deleted)
	fmt.Fprintf(p.w, "Veličina: %d B\n", h.Bytes)
	if snap.FromCache {
		fmt.Fprintln(p.w, p.theme.Faint.Render("(iz predmemorije)"))
	}
}
