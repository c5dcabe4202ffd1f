package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/OneBusAway/go-gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zetgtfs "github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/testfixtures"
)

func TestStaticTrips(t *testing.T) {
	static := loadStatic(t)
	day := testfixtures.ServiceDay(zagreb)
	trips := static.StaticTripsForRoute("6", zetgtfs.ActiveServices(static.Data.Services, day))

	var buf bytes.Buffer
	New(&buf, zagreb).StaticTrips(trips, day)

	assert.Equal(t, "Statički tripovi (2025-05-05): 2\n"+
		" trip 6_RD_1 smjer Sopot stops 4 polazak 08:00\n"+
		" trip 6_RD_2 smjer Črnomerec stops 4 polazak 09:00\n", buf.String())
}

func TestStaticTrips_CapsListing(t *testing.T) {
	trips := make([]zetgtfs.StaticTrip, 12)
	for i := range trips {
		trips[i] = zetgtfs.StaticTrip{TripID: "t"}
	}

	var buf bytes.Buffer
	New(&buf, zagreb).StaticTrips(trips, testfixtures.ServiceDay(zagreb))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1+MaxStaticTrips)
	assert.Contains(t, lines[0], ": 12")
	assert.Contains(t, lines[1], "smjer - stops 0 polazak -")
}

func TestDepartures(t *testing.T) {
	at := testfixtures.ServiceDay(zagreb).Add(8*time.Hour + 8*time.Minute)
	deps := []zetgtfs.Departure{
		{RouteID: "109", TripID: "109_RD_1", Departure: 8*3600 + 5*60, Delta: -180},
		{RouteID: "118", TripID: "118_SUB_1", Departure: 24*3600 + 5*60, Delta: 900},
	}

	var buf bytes.Buffer
	New(&buf, zagreb).Departures(deps, at)

	assert.Equal(t, "Statički raspored za 08:08:\n"+
		" route 109 trip 109_RD_1 dep 08:05 delta -180s\n"+
		" route 118 trip 118_SUB_1 dep 24:05 delta 900s\n", buf.String())
}

func TestDepartures_Empty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, zagreb).Departures(nil, testfixtures.ServiceDay(zagreb))
	assert.Contains(t, buf.String(), "nema polazaka")
}

func TestChoicesAndTitles(t *testing.T) {
	static := loadStatic(t)

	var buf bytes.Buffer
	p := New(&buf, zagreb)
	p.RouteChoices(static.FindRoutes("1"))
	p.StopChoices(static.FindStopsByName("kolodvor"))

	out := buf.String()
	assert.Contains(t, out, "[0] 109 109 Črnomerec - Dugave\n")
	assert.Contains(t, out, "[1] 118 118 Trg bana Jelačića - Glavni kolodvor\n")
	assert.Contains(t, out, "Pronađeno više stanica:\n[0] 100_1 - Glavni kolodvor\n[1] 105_1 - Glavni kolodvor\n")

	assert.Equal(t, "Linija 6", RouteTitle(&gtfs.Route{Id: "6", ShortName: "6"}))
	assert.Equal(t, "Linija R1", RouteTitle(&gtfs.Route{Id: "R1"}))
	assert.Equal(t, "Stanica: Glavni kolodvor (100_1)", StopTitle("100_1", static))
	assert.Equal(t, "Stanica 999", StopTitle("999", static))
}

func TestInfo(t *testing.T) {
	static := loadStatic(t)

	var buf bytes.Buffer
	New(&buf, zagreb).Info(InfoInput{
		Static:      static,
		TableCounts: map[string]int{"stops": 6, "trips": 5},
		DBPath:      ":memory:",
		FleetSize:   5,
		Bounds:      zetgtfs.ComputeRegionBounds(static.Data.Shapes, static.Data.Stops),
	})

	out := buf.String()
	assert.Contains(t, out, "Prijevoznik: Zagrebački električni tramvaj (1) Europe/Zagreb")
	assert.Contains(t, out, "Izdavač: ZET | verzija 2025-04-28 | vrijedi 20250101 - 20251231")
	assert.Contains(t, out, "Linije: 3 | Stanice: 6 | Tripovi: 5")
	assert.Contains(t, out, "Područje: centar 45.79515,15.96230")
	assert.Contains(t, out, "Baza: :memory:")
	require.Contains(t, out, "Vozni park: 5 zapisa")
	assert.Less(t, strings.Index(out, "  stops"), strings.Index(out, "  trips"))
}
