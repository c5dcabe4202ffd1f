package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ficojok/ZETdev/internal/app"
	"github.com/ficojok/ZETdev/internal/clock"
	"github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/testfixtures"
)

func zagreb(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)
	return loc
}

type cliRun struct {
	dataDir     string
	realtimeURL string
	stdin       string
	ctx         context.Context
	stderr      io.Writer
}

// run executes the command tree against the mini feed at 08:09 on the
// fixture's Monday, with the realtime fixture served over HTTP.
func run(t *testing.T, r cliRun, args ...string) (string, error) {
	t.Helper()
	loc := zagreb(t)

	if r.dataDir == "" {
		r.dataDir = testfixtures.MiniFeedDir(t)
	}
	if r.realtimeURL == "" {
		srv := testfixtures.ServeFeed(t, testfixtures.Marshal(t, testfixtures.ZETFeed(loc)))
		r.realtimeURL = srv.URL
	}
	if r.ctx == nil {
		r.ctx = context.Background()
	}

	now := testfixtures.ServiceDay(loc).Add(8*time.Hour + 9*time.Minute)
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(r.stdin), &out,
		app.WithClock(clock.NewMockClock(now)),
		app.WithFetcherOptions(gtfs.WithLimiter(rate.NewLimiter(rate.Inf, 1))))
	if r.stderr == nil {
		r.stderr = io.Discard
	}
	cmd.SetErr(r.stderr)
	cmd.SetArgs(append(args,
		"--data-dir", r.dataDir,
		"--db", ":memory:",
		"--realtime-url", r.realtimeURL))

	err := cmd.ExecuteContext(r.ctx)
	return out.String(), err
}

func failingFeed(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestParseSource(t *testing.T) {
	cases := []struct {
		input string
		want  Source
	}{
		{"1", SourceRealtime},
		{"rt", SourceRealtime},
		{"2", SourceStatic},
		{"Static", SourceStatic},
		{"3", SourceBoth},
		{" both ", SourceBoth},
	}
	for _, c := range cases {
		got, err := ParseSource(c.input)
		require.NoError(t, err, c.input)
		assert.Equal(t, c.want, got, c.input)
	}

	_, err := ParseSource("4")
	assert.Error(t, err)

	assert.True(t, SourceBoth.Realtime())
	assert.True(t, SourceBoth.Static())
	assert.False(t, SourceRealtime.Static())
	assert.False(t, SourceStatic.Realtime())
}

func TestResolveAt(t *testing.T) {
	loc := zagreb(t)
	now := time.Date(2025, 5, 5, 8, 9, 0, 0, loc)

	tests := []struct {
		name string
		date string
		hm   string
		want time.Time
	}{
		{"both empty", "", "", time.Date(2025, 5, 5, 0, 0, 0, 0, loc)},
		{"time only", "", "08:08", time.Date(2025, 5, 5, 8, 8, 0, 0, loc)},
		{"date only", "2025-05-01", "", time.Date(2025, 5, 1, 0, 0, 0, 0, loc)},
		{"both", "2025-05-10", "23:50", time.Date(2025, 5, 10, 23, 50, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveAt(tt.date, tt.hm, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := resolveAt("2025-13-01", "", now)
	assert.Error(t, err)
	_, err = resolveAt("", "8h", now)
	assert.Error(t, err)
}

func TestFixedChoice(t *testing.T) {
	idx, ok, err := fixedChoice(1)(2)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.True(t, ok)

	_, ok, _ = fixedChoice(2)(2)
	assert.False(t, ok)
	_, ok, _ = fixedChoice(-1)(2)
	assert.False(t, ok)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "zet dev")
}

func TestRouteCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "route", "6")
	require.NoError(t, err)

	assert.Contains(t, out, "Linija 6")
	assert.Contains(t, out, "Statički tripovi (2025-05-05): 2")
	assert.Contains(t, out, " trip 6_RD_1 smjer Sopot stops 4 polazak 08:00")
	assert.Contains(t, out, "Realtime entiteta: 2")
	assert.Contains(t, out, "Vehicle ID: 432 Model: Mercedes-Benz Citaro G")
	assert.Contains(t, out, "GPS opremljena vozila: 2")
	assert.Contains(t, out, "Raspoređeni tripovi bez GPS-a: 0")
}

func TestRouteCommand_Selection(t *testing.T) {
	out, err := run(t, cliRun{}, "route", "1", "--source", "static")
	require.NoError(t, err)
	assert.Contains(t, out, "[0] 109 109 Črnomerec - Dugave")
	assert.Contains(t, out, "[1] 118 118 Trg bana Jelačića - Glavni kolodvor")
	assert.Contains(t, out, "Linija 109")

	out, err = run(t, cliRun{}, "route", "1", "--source", "static", "--index", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Linija 118")

	out, err = run(t, cliRun{}, "route", "1", "--source", "static", "--index", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Nevažeći indeks.")
	assert.NotContains(t, out, "Linija 1")
}

func TestRouteCommand_StaticOnDate(t *testing.T) {
	out, err := run(t, cliRun{}, "route", "6", "--source", "static", "--date", "2025-05-01", "--shape")
	require.NoError(t, err)

	assert.Contains(t, out, "Statički tripovi (2025-05-01): 1")
	assert.Contains(t, out, "trip 6_NED_1")
	assert.Contains(t, out, "Trasa S6")
	assert.NotContains(t, out, "Realtime entiteta")
}

func TestRouteCommand_NotFound(t *testing.T) {
	out, err := run(t, cliRun{}, "route", "N7")
	require.NoError(t, err)
	assert.Contains(t, out, "Linija nije pronađena u routes.txt.")
}

func TestRouteCommand_RealtimeFailure(t *testing.T) {
	out, err := run(t, cliRun{realtimeURL: failingFeed(t)}, "route", "6")
	require.NoError(t, err, "a failed fetch must not abort the search")
	assert.Contains(t, out, "Statički tripovi (2025-05-05): 2")
	assert.Contains(t, out, "Ne mogu dohvatiti realtime:")
}

func TestRouteCommand_RealtimeOnlyWithoutStatic(t *testing.T) {
	out, err := run(t, cliRun{dataDir: t.TempDir()}, "route", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "Linija 6")
	assert.Contains(t, out, "Nedostaju statički podaci.")
	assert.Contains(t, out, "Realtime entiteta: 2")
}

func TestVehicleCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "vehicle", "zg-8801")
	require.NoError(t, err)

	assert.Contains(t, out, "Pretraga vozila: zg-8801")
	assert.Contains(t, out, " Garažni broj: 432")
	assert.Contains(t, out, " Registracija: ZG-8801-GR")
	assert.Contains(t, out, "Realtime entiteta: 1")
	assert.Contains(t, out, "Trip ID: 6_RD_1")
}

func TestVehicleCommand_UnknownVehicle(t *testing.T) {
	out, err := run(t, cliRun{}, "vehicle", "9999", "--source", "static")
	require.NoError(t, err)
	assert.Contains(t, out, "Vozilo nije pronađeno u voznipark.txt.")
	assert.NotContains(t, out, "Realtime entiteta")
}

func TestStopCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "stop", "100_1", "--date", "2025-05-05", "--time", "08:08")
	require.NoError(t, err)

	assert.Contains(t, out, "Stanica: Glavni kolodvor (100_1)")
	assert.Contains(t, out, "Statički raspored za 08:08:")
	assert.Contains(t, out, " route 109 trip 109_RD_1 dep 08:05 delta -180s")
	assert.Contains(t, out, " route 6 trip 6_RD_1 dep 08:15 delta 420s")
	assert.Contains(t, out, "Realtime entiteta: 2")
}

func TestStopCommand_Limit(t *testing.T) {
	out, err := run(t, cliRun{}, "stop", "100_1", "--source", "static", "--time", "08:08", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "trip 109_RD_1")
	assert.NotContains(t, out, "trip 6_RD_1")
}

func TestStopCommand_UnknownStop(t *testing.T) {
	out, err := run(t, cliRun{}, "stop", "999", "--source", "static")
	require.NoError(t, err)
	assert.Contains(t, out, "Stanica 999")
	assert.Contains(t, out, "Stanica nije pronađena u stops.txt.")
}

func TestStopSearchCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "stop-search", "kolodvor", "--index", "1", "--source", "rt")
	require.NoError(t, err)

	assert.Contains(t, out, "Pronađeno više stanica:")
	assert.Contains(t, out, "[0] 100_1 - Glavni kolodvor")
	assert.Contains(t, out, "Stanica: Glavni kolodvor (105_1)")
	assert.Contains(t, out, "Realtime entiteta: 0")

	out, err = run(t, cliRun{}, "stop-search", "Dubrava")
	require.NoError(t, err)
	assert.Contains(t, out, "Nema stanica koje odgovaraju upitu.")
}

func TestTripCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "trip", "6_RD_1")
	require.NoError(t, err)
	assert.Contains(t, out, "Trip 6_RD_1 smjer Sopot")
	assert.Contains(t, out, "1. 08:00 Črnomerec (102_1)")
	assert.Contains(t, out, "4. 08:30 Sopot (103_1)")

	_, err = run(t, cliRun{}, "trip", "nope")
	assert.ErrorIs(t, err, gtfs.ErrTripNotFound)
}

func TestFleetCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "fleet", "--limit", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Statistika voznog parka")
	assert.Contains(t, out, "Ukupno zapisa u voznipark.txt: 5")
	assert.Contains(t, out, " 432 / ZG-8801-GR / Mercedes-Benz Citaro G")
	assert.NotContains(t, out, " 501 / ")
	assert.Contains(t, out, "Po modelu:")
}

func TestFeedCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "feed")
	require.NoError(t, err)
	assert.Contains(t, out, "Entiteta: 5 (trip update 2, vozila 3, obavijesti 0, obrisano 0)")

	out, err = run(t, cliRun{}, "feed", "--dump", "--entities", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "6_RD_1")

	out, err = run(t, cliRun{}, "feed", "--json", "--entities", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "gtfsRealtimeVersion")
	assert.Contains(t, out, `"tu-6"`)
	assert.NotContains(t, out, `"vp-432"`)

	_, err = run(t, cliRun{realtimeURL: failingFeed(t)}, "feed")
	assert.Error(t, err)
}

func TestInfoCommand(t *testing.T) {
	out, err := run(t, cliRun{}, "info")
	require.NoError(t, err)

	assert.Contains(t, out, "Linije: 3 | Stanice: 6 | Tripovi: 5")
	assert.Contains(t, out, "Baza: :memory:")
	assert.Contains(t, out, "Vozni park: 5 zapisa")

	out, err = run(t, cliRun{dataDir: t.TempDir()}, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Statički podaci nisu učitani")
	assert.Contains(t, out, "Vozni park: 0 zapisa")
}

func TestLogLevels(t *testing.T) {
	var quiet bytes.Buffer
	_, err := run(t, cliRun{stderr: &quiet}, "info")
	require.NoError(t, err)
	assert.NotContains(t, quiet.String(), "level=INFO")

	var verbose bytes.Buffer
	_, err = run(t, cliRun{stderr: &verbose}, "info", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, verbose.String(), "gtfs_static_loaded")
}

func TestInvalidFlags(t *testing.T) {
	_, err := run(t, cliRun{}, "route", "6", "--source", "gps")
	assert.Error(t, err)

	_, err = run(t, cliRun{}, "route", "6", "--timezone", "Mars/Olympus")
	assert.Error(t, err)

	_, err = run(t, cliRun{}, "stop", "100_1", "--date", "05.05.2025.")
	assert.Error(t, err)
}

func TestMenu(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		contains []string
		absent   []string
	}{
		{
			name:  "route search with both sources then exit",
			stdin: "1\n3\n\n08:08\n6\n\n",
			contains: []string{
				"Izbornik",
				"Linija 6",
				"Statički tripovi (2025-05-05): 2",
				"Realtime entiteta: 2",
				"Pritisnite Enter za nastavak",
			},
			absent: []string{"Izlaz."},
		},
		{
			name:     "route selection by index",
			stdin:    "1\n1\n1\n1\n\n",
			contains: []string{"Odaberite indeks (enter za 0): ", "Linija 118"},
		},
		{
			name:     "out of range index",
			stdin:    "1\n2\n\n\n1\n7\n\n",
			contains: []string{"Nevažeći indeks."},
			absent:   []string{"Linija 109"},
		},
		{
			name:     "invalid option then EOF",
			stdin:    "x\n",
			contains: []string{"Nevažeći unos.", "Izlaz."},
		},
		{
			name:     "unknown option",
			stdin:    "9\n6\n",
			contains: []string{"Nepoznata opcija.", "Kraj."},
		},
		{
			name:     "invalid source",
			stdin:    "1\n4\n6\n",
			contains: []string{"Unesite 1/2/3: ", "Nevažeći unos.", "Kraj."},
		},
		{
			name:     "bad date",
			stdin:    "3\n2\n2025-13-01\n\n",
			contains: []string{"Neispravan datum/vrijeme.", "Izlaz."},
		},
		{
			name:     "fleet stats then back to menu",
			stdin:    "5\nR\n6\n",
			contains: []string{"Ukupno zapisa u voznipark.txt: 5", "Kraj."},
		},
		{
			name:  "stop name search",
			stdin: "4\n2\n2025-05-05\n08:08\nJelačića\n\n",
			contains: []string{
				"Stanica: Trg bana Jelačića (101_1)",
				"Statički raspored za 08:08:",
				" route 6 trip 6_RD_1 dep 08:10 delta 120s",
			},
		},
		{
			name:     "vehicle search realtime",
			stdin:    "2\n1\n501\n\n",
			contains: []string{"Model: MAN Lion's City / CNG", "Vehicle ID: 501"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, cliRun{stdin: tt.stdin})
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestMenu_CountsRealtimeFetches(t *testing.T) {
	loc := zagreb(t)
	body := testfixtures.Marshal(t, testfixtures.ZETFeed(loc))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	// Two realtime route searches in one session share the cached snapshot.
	_, err := run(t, cliRun{realtimeURL: srv.URL, stdin: "1\n1\n6\nR\n1\n1\n109\n\n"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWatchCommand(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var logs bytes.Buffer
	_, err := run(t, cliRun{ctx: ctx, stderr: &logs}, "watch", "--addr", "127.0.0.1:0", "--interval", "50ms")
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), "watch_starting")
}
