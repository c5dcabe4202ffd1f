// Package testfixtures provides the mini ZET feed under testdata/ and builders for
// GTFS-Realtime protobuf payloads used across package tests.
package testfixtures

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	gtfsrtpb "github.com/OneBusAway/go-gtfs/proto"
	"google.golang.org/protobuf/proto"
)

// MiniFeedDir returns the absolute path of testdata/zet-mini.
func MiniFeedDir(t testing.TB) string {
	t.Helper()
	return filepath.Join(repoRoot(t), "testdata", "zet-mini")
}

// CopyMiniFeed copies the mini feed into a fresh temp dir so a test can add or
// remove files.
func CopyMiniFeed(t testing.TB) string {
	t.Helper()
	src := MiniFeedDir(t)
	dst := t.TempDir()

	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatalf("read fixture dir: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			t.Fatalf("read fixture %s: %v", e.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dst, e.Name()), data, 0o600); err != nil {
			t.Fatalf("write fixture %s: %v", e.Name(), err)
		}
	}
	return dst
}

func repoRoot(t testing.TB) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above %s", dir)
		}
		dir = parent
	}
}

// StopUpdate describes one stop_time_update of a trip update.
type StopUpdate struct {
	StopID   string
	Sequence uint32
	Arrival  time.Time
	Delay    *int32
}

// VehicleState describes a vehicle position entity.
type VehicleState struct {
	VehicleID string
	TripID    string
	RouteID   string
	Lat, Lon  float32
	Speed     *float32
	StopID    string
	Sequence  *uint32
	Timestamp time.Time
}

// Feed builds a FULL_DATASET FeedMessage with the given header timestamp.
func Feed(ts time.Time, entities ...*gtfsrtpb.FeedEntity) *gtfsrtpb.FeedMessage {
	incrementality := gtfsrtpb.FeedHeader_FULL_DATASET
	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(uint64(ts.Unix())),
		},
		Entity: entities,
	}
}

// TripUpdate builds a trip update entity.
func TripUpdate(entityID, tripID, routeID, vehicleID string, updates ...StopUpdate) *gtfsrtpb.FeedEntity {
	tu := &gtfsrtpb.TripUpdate{
		Trip: &gtfsrtpb.TripDescriptor{
			TripId: proto.String(tripID),
		},
	}
	if routeID != "" {
		tu.Trip.RouteId = proto.String(routeID)
	}
	if vehicleID != "" {
		tu.Vehicle = &gtfsrtpb.VehicleDescriptor{Id: proto.String(vehicleID)}
	}
	for _, u := range updates {
		stu := &gtfsrtpb.TripUpdate_StopTimeUpdate{
			StopId:       proto.String(u.StopID),
			StopSequence: proto.Uint32(u.Sequence),
		}
		if !u.Arrival.IsZero() || u.Delay != nil {
			event := &gtfsrtpb.TripUpdate_StopTimeEvent{Delay: u.Delay}
			if !u.Arrival.IsZero() {
				event.Time = proto.Int64(u.Arrival.Unix())
			}
			stu.Arrival = event
		}
		tu.StopTimeUpdate = append(tu.StopTimeUpdate, stu)
	}
	return &gtfsrtpb.FeedEntity{Id: proto.String(entityID), TripUpdate: tu}
}

// Vehicle builds a vehicle position entity.
func Vehicle(entityID string, s VehicleState) *gtfsrtpb.FeedEntity {
	vp := &gtfsrtpb.VehiclePosition{
		Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String(s.VehicleID)},
		Position: &gtfsrtpb.Position{
			Latitude:  proto.Float32(s.Lat),
			Longitude: proto.Float32(s.Lon),
			Speed:     s.Speed,
		},
		CurrentStopSequence: s.Sequence,
	}
	if s.TripID != "" {
		vp.Trip = &gtfsrtpb.TripDescriptor{TripId: proto.String(s.TripID)}
		if s.RouteID != "" {
			vp.Trip.RouteId = proto.String(s.RouteID)
		}
	}
	if s.StopID != "" {
		vp.StopId = proto.String(s.StopID)
	}
	if !s.Timestamp.IsZero() {
		vp.Timestamp = proto.Uint64(uint64(s.Timestamp.Unix()))
	}
	return &gtfsrtpb.FeedEntity{Id: proto.String(entityID), Vehicle: vp}
}

// Marshal encodes feed or fails the test.
func Marshal(t testing.TB, feed *gtfsrtpb.FeedMessage) []byte {
	t.Helper()
	b, err := proto.Marshal(feed)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	return b
}

// ServeFeed starts an httptest server returning body for every request.
func ServeFeed(t testing.TB, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// Int32 and Uint32/Float32 are shorthands for optional fixture fields.
func Int32(v int32) *int32       { return &v }
func Uint32(v uint32) *uint32    { return &v }
func Float32(v float32) *float32 { return &v }

// ServiceDay is the Monday the realtime fixture is built around.
func ServiceDay(loc *time.Location) time.Time {
	return time.Date(2025, 5, 5, 0, 0, 0, 0, loc)
}

// ZETFeed is a realistic snapshot against the mini static feed at 08:09 on
// ServiceDay:
//   - 6_RD_1 has a trip update and a GPS vehicle (garage 432)
//   - 109_RD_1 has only a trip update
//   - garage 2201 runs a trip unknown to the static feed on route 6
//   - garage 501 reports a position without a trip
func ZETFeed(loc *time.Location) *gtfsrtpb.FeedMessage {
	day := ServiceDay(loc)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	now := at(8, 9)

	return Feed(now,
		TripUpdate("tu-6", "6_RD_1", "6", "432",
			StopUpdate{StopID: "101_1", Sequence: 2, Arrival: at(8, 11), Delay: Int32(60)},
			StopUpdate{StopID: "100_1", Sequence: 3, Arrival: at(8, 16), Delay: Int32(60)},
		),
		Vehicle("vp-432", VehicleState{
			VehicleID: "432", TripID: "6_RD_1", RouteID: "6",
			Lat: 45.8100, Lon: 15.9775, Speed: Float32(8.5),
			Sequence: Uint32(2), Timestamp: now,
		}),
		TripUpdate("tu-109", "109_RD_1", "109", "",
			StopUpdate{StopID: "100_1", Sequence: 2, Arrival: at(8, 7), Delay: Int32(120)},
		),
		Vehicle("vp-2201", VehicleState{
			VehicleID: "2201", TripID: "EXTRA_6", RouteID: "6",
			Lat: 45.7795, Lon: 15.9822, Timestamp: now,
		}),
		Vehicle("vp-501", VehicleState{
			VehicleID: "501", Lat: 45.8047, Lon: 15.9786, Timestamp: now,
		}),
	)
}
