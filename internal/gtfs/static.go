package gtfs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OneBusAway/go-gtfs"
	"github.com/klauspost/compress/zip"

	"github.com/ficojok/ZETdev/internal/logging"
)

var (
	ErrNoStaticData  = errors.New("no GTFS static data found")
	ErrRouteNotFound = errors.New("route not found")
	ErrStopNotFound  = errors.New("stop not found")
	ErrTripNotFound  = errors.New("trip not found")
)

// staticFiles are the GTFS tables read from a data directory.
var staticFiles = []string{
	"agency.txt",
	"calendar.txt",
	"calendar_dates.txt",
	"feed_info.txt",
	"routes.txt",
	"shapes.txt",
	"stop_times.txt",
	"stops.txt",
	"transfers.txt",
	"trips.txt",
}

// placeholderHeaders are written for tables the parser insists on when the
// directory lacks them, so a partial feed still loads.
var placeholderHeaders = map[string]string{
	"agency.txt":     "agency_id,agency_name,agency_url,agency_timezone",
	"routes.txt":     "route_id,route_type",
	"stops.txt":      "stop_id",
	"transfers.txt":  "from_stop_id,to_stop_id",
	"trips.txt":      "route_id,service_id,trip_id",
	"stop_times.txt": "stop_id,trip_id,stop_sequence",
}

// StaticFeed is a parsed static feed plus the lookups every search needs.
type StaticFeed struct {
	Data     *gtfs.Static
	FeedInfo []FeedInfo

	// Source is the directory or zip the feed came from.
	Source string
	// Files lists the GTFS tables that were actually present.
	Files []string
	// Hash is a SHA-256 over the present tables, used to skip unchanged imports.
	Hash     string
	LoadedAt time.Time

	routesByID map[string]*gtfs.Route
	stopsByID  map[string]*gtfs.Stop
	tripsByID  map[string]*gtfs.ScheduledTrip
}

// LoadStatic loads a feed from a directory of loose .txt files or from a zip
// archive.
func LoadStatic(path string) (*StaticFeed, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoStaticData, path)
		}
		return nil, fmt.Errorf("error reading GTFS source: %w", err)
	}
	if info.IsDir() {
		return LoadStaticDir(path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading local GTFS file: %w", err)
	}
	sum := sha256.Sum256(b)
	return parseStatic(b, path, []string{filepath.Base(path)}, hex.EncodeToString(sum[:]), nil)
}

// LoadStaticDir packs every known GTFS table present in dir into an in-memory
// zip and parses it. It returns ErrNoStaticData when none is present.
func LoadStaticDir(dir string) (*StaticFeed, error) {
	b, files, hash, err := packStaticDir(dir)
	if err != nil {
		return nil, err
	}

	var feedInfo []FeedInfo
	if containsFile(files, "feed_info.txt") {
		feedInfo, err = readFeedInfo(filepath.Join(dir, "feed_info.txt"))
		if err != nil {
			logging.LogError(slog.Default().With(slog.String("component", "gtfs_loader")),
				"Failed to read feed_info.txt", err)
		}
	}

	return parseStatic(b, dir, files, hash, feedInfo)
}

func parseStatic(b []byte, source string, files []string, hash string, feedInfo []FeedInfo) (*StaticFeed, error) {
	logger := slog.Default().With(slog.String("component", "gtfs_loader"))

	staticData, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}

	feed := NewStaticFeed(staticData)
	feed.FeedInfo = feedInfo
	feed.Source = source
	feed.Files = files
	feed.Hash = hash

	logging.LogOperation(logger, "gtfs_static_loaded",
		slog.String("source", source),
		slog.Int("routes", len(staticData.Routes)),
		slog.Int("stops", len(staticData.Stops)),
		slog.Int("trips", len(staticData.Trips)),
		slog.Int("warnings", len(staticData.Warnings)))

	return feed, nil
}

func packStaticDir(dir string) ([]byte, []string, string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hasher := sha256.New()

	var present []string
	for _, name := range staticFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, "", fmt.Errorf("error reading %s: %w", name, err)
		}
		present = append(present, name)

		hasher.Write([]byte(name))
		hasher.Write([]byte{0})
		hasher.Write(data)

		if err := writeZipEntry(zw, name, data); err != nil {
			return nil, nil, "", err
		}
	}

	if len(present) == 0 {
		return nil, nil, "", fmt.Errorf("%w in %s", ErrNoStaticData, dir)
	}

	for _, name := range staticFiles {
		header, ok := placeholderHeaders[name]
		if !ok || containsFile(present, name) {
			continue
		}
		if err := writeZipEntry(zw, name, []byte(header+"\n")); err != nil {
			return nil, nil, "", err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("error packing GTFS directory: %w", err)
	}
	return buf.Bytes(), present, hex.EncodeToString(hasher.Sum(nil)), nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("error packing %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("error packing %s: %w", name, err)
	}
	return nil
}

func containsFile(files []string, name string) bool {
	for _, f := range files {
		if f == name {
			return true
		}
	}
	return false
}

// NewStaticFeed wraps parsed data and builds ID lookups.
func NewStaticFeed(data *gtfs.Static) *StaticFeed {
	if data == nil {
		data = &gtfs.Static{}
	}
	feed := &StaticFeed{
		Data:       data,
		LoadedAt:   time.Now(),
		routesByID: make(map[string]*gtfs.Route, len(data.Routes)),
		stopsByID:  make(map[string]*gtfs.Stop, len(data.Stops)),
		tripsByID:  make(map[string]*gtfs.ScheduledTrip, len(data.Trips)),
	}
	for i := range data.Routes {
		feed.routesByID[data.Routes[i].Id] = &data.Routes[i]
	}
	for i := range data.Stops {
		feed.stopsByID[data.Stops[i].Id] = &data.Stops[i]
	}
	for i := range data.Trips {
		feed.tripsByID[data.Trips[i].ID] = &data.Trips[i]
	}
	return feed
}

func (f *StaticFeed) RouteByID(id string) (*gtfs.Route, bool) {
	if f == nil {
		return nil, false
	}
	r, ok := f.routesByID[id]
	return r, ok
}

func (f *StaticFeed) StopByID(id string) (*gtfs.Stop, bool) {
	if f == nil {
		return nil, false
	}
	s, ok := f.stopsByID[id]
	return s, ok
}

func (f *StaticFeed) TripByID(id string) (*gtfs.ScheduledTrip, bool) {
	if f == nil {
		return nil, false
	}
	t, ok := f.tripsByID[id]
	return t, ok
}

// StopName returns the stop's name, or the ID itself for unknown stops.
func (f *StaticFeed) StopName(id string) string {
	if s, ok := f.StopByID(id); ok && s.Name != "" {
		return s.Name
	}
	return id
}

// RouteIDForTrip returns the route of a scheduled trip.
func (f *StaticFeed) RouteIDForTrip(tripID string) (string, bool) {
	t, ok := f.TripByID(tripID)
	if !ok || t.Route == nil {
		return "", false
	}
	return t.Route.Id, true
}

// HeadsignForTrip returns the trip headsign, falling back to the last stop name.
func (f *StaticFeed) HeadsignForTrip(tripID string) string {
	t, ok := f.TripByID(tripID)
	if !ok {
		return ""
	}
	if h := strings.TrimSpace(t.Headsign); h != "" {
		return h
	}
	if n := len(t.StopTimes); n > 0 && t.StopTimes[n-1].Stop != nil {
		return f.StopName(t.StopTimes[n-1].Stop.Id)
	}
	return ""
}
