package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/OneBusAway/go-gtfs"

	zetgtfs "github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/utils"
)

// MaxStaticTrips caps the static trip list of a route search.
const MaxStaticTrips = 10

// RouteChoices lists routes with their index for selection.
func (p *Printer) RouteChoices(routes []*gtfs.Route) {
	for i, r := range routes {
		fmt.Fprintln(p.w, strings.TrimRight(fmt.Sprintf("[%d] %s %s %s", i, r.Id, r.ShortName, r.LongName), " "))
	}
}

// StopChoices lists stops with their index for selection.
func (p *Printer) StopChoices(stops []*gtfs.Stop) {
	fmt.Fprintln(p.w, "Pronađeno više stanica:")
	for i, s := range stops {
		fmt.Fprintf(p.w, "[%d] %s - %s\n", i, s.Id, s.Name)
	}
}

// RouteTitle is the divider title of a route search.
func RouteTitle(r *gtfs.Route) string {
	if r.ShortName != "" {
		return "Linija " + r.ShortName
	}
	return "Linija " + r.Id
}

// StopTitle is the divider title of a stop search.
func StopTitle(stopID string, static *zetgtfs.StaticFeed) string {
	if s, ok := static.StopByID(stopID); ok && s.Name != "" {
		return fmt.Sprintf("Stanica: %s (%s)", s.Name, stopID)
	}
	return "Stanica " + stopID
}

// StaticTrips prints how many trips run on date and the first MaxStaticTrips.
func (p *Printer) StaticTrips(trips []zetgtfs.StaticTrip, date time.Time) {
	fmt.Fprintf(p.w, "Statički tripovi (%s): %d\n", date.Format("2006-01-02"), len(trips))
	for i, t := range trips {
		if i == MaxStaticTrips {
			break
		}
		fmt.Fprintf(p.w, " trip %s smjer %s stops %d polazak %s\n",
			t.TripID, orDash(t.Headsign), len(t.Stops), utils.FormatClock(t.FirstDeparture()))
	}
}

// TripStops prints every call of one static trip.
func (p *Printer) TripStops(t zetgtfs.StaticTrip) {
	fmt.Fprintf(p.w, "Trip %s smjer %s\n", t.TripID, orDash(t.Headsign))
	for _, s := range t.Stops {
		fmt.Fprintf(p.w, "    %2d. %s %s (%s)\n", s.Sequence, utils.FormatClock(s.Departure), s.StopName, s.StopID)
	}
}

// Departures prints a stop's departure board for the time at.
func (p *Printer) Departures(deps []zetgtfs.Departure, at time.Time) {
	fmt.Fprintf(p.w, "Statički raspored za %s:\n", at.In(p.loc).Format("15:04"))
	if len(deps) == 0 {
		fmt.Fprintln(p.w, p.theme.Faint.Render(" nema polazaka"))
		return
	}
	for _, d := range deps {
		fmt.Fprintf(p.w, " route %s trip %s dep %s delta %ds\n",
			d.RouteID, d.TripID, utils.FormatClock(d.Departure), d.Delta)
	}
}

// RouteShape prints a route's encoded geometry.
func (p *Printer) RouteShape(shape zetgtfs.RouteShape) {
	fmt.Fprintf(p.w, "Trasa %s (trip %s): %d točaka\n", shape.ShapeID, shape.TripID, shape.Points)
	fmt.Fprintln(p.w, shape.Polyline)
}

// InfoInput is everything the info command reports about the static feed.
type InfoInput struct {
	Static      *zetgtfs.StaticFeed
	TableCounts map[string]int
	DBPath      string
	FleetSize   int
	Bounds      *zetgtfs.RegionBounds
}

// Info prints a summary of the loaded static feed.
func (p *Printer) Info(in InfoInput) {
	f := in.Static
	fmt.Fprintf(p.w, "Izvor: %s\n", f.Source)
	fmt.Fprintf(p.w, "Datoteke: %s\n", strings.Join(f.Files, ", "))
	if len(f.Hash) >= 12 {
		fmt.Fprintf(p.w, "SHA-256: %s\n", f.Hash[:12])
	}

	for _, a := range f.Data.Agencies {
		fmt.Fprintf(p.w, "Prijevoznik: %s (%s) %s\n", a.Name, a.Id, a.Timezone)
	}
	for _, fi := range f.FeedInfo {
		fmt.Fprintf(p.w, "Izdavač: %s | verzija %s | vrijedi %s - %s\n",
			orDash(fi.PublisherName), orDash(fi.Version), orDash(fi.StartDate), orDash(fi.EndDate))
	}

	fmt.Fprintf(p.w, "Linije: %d | Stanice: %d | Tripovi: %d | Kalendari: %d | Trase: %d\n",
		len(f.Data.Routes), len(f.Data.Stops), len(f.Data.Trips), len(f.Data.Services), len(f.Data.Shapes))
	if len(f.Data.Warnings) > 0 {
		fmt.Fprintf(p.w, "Upozorenja parsera: %d\n", len(f.Data.Warnings))
	}

	if in.Bounds != nil {
		fmt.Fprintf(p.w, "Područje: centar %.5f,%.5f | raspon %.4f x %.4f\n",
			in.Bounds.Lat, in.Bounds.Lon, in.Bounds.LatSpan, in.Bounds.LonSpan)
	}

	if len(in.TableCounts) > 0 {
		fmt.Fprintf(p.w, "Baza: %s\n", in.DBPath)
		tables := make([]string, 0, len(in.TableCounts))
		for t := range in.TableCounts {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		for _, t := range tables {
			fmt.Fprintf(p.w, "  %-16s %d\n", t, in.TableCounts[t])
		}
	}

	fmt.Fprintf(p.w, "Vozni park: %d zapisa\n", in.FleetSize)
}
