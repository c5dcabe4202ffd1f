package gtfs

import (
	"fmt"
	"time"

	gtfsrtpb "github.com/OneBusAway/go-gtfs/proto"
	"google.golang.org/protobuf/proto"
)

// FeedHeaderSummary describes a realtime feed message without resolving it
// against the static schedule.
type FeedHeaderSummary struct {
	Version        string
	Incrementality string
	// Timestamp is the header timestamp; zero when the producer omitted it.
	Timestamp   time.Time
	Entities    int
	TripUpdates int
	Vehicles    int
	Alerts      int
	Deleted     int
	Bytes       int
}

// InspectFeed decodes the protobuf envelope of a GTFS-Realtime feed and counts
// its entities by kind. An entity carrying several payloads counts once per kind.
func InspectFeed(body []byte) (FeedHeaderSummary, error) {
	msg, err := DecodeFeed(body)
	if err != nil {
		return FeedHeaderSummary{}, err
	}
	return summarizeFeed(msg, len(body)), nil
}

func summarizeFeed(msg *gtfsrtpb.FeedMessage, size int) FeedHeaderSummary {
	summary := FeedHeaderSummary{
		Version:        msg.GetHeader().GetGtfsRealtimeVersion(),
		Incrementality: msg.GetHeader().GetIncrementality().String(),
		Entities:       len(msg.GetEntity()),
		Bytes:          size,
	}
	if ts := msg.GetHeader().GetTimestamp(); ts > 0 {
		summary.Timestamp = time.Unix(int64(ts), 0)
	}

	for _, e := range msg.GetEntity() {
		if e.GetIsDeleted() {
			summary.Deleted++
		}
		if e.GetTripUpdate() != nil {
			summary.TripUpdates++
		}
		if e.GetVehicle() != nil {
			summary.Vehicles++
		}
		if e.GetAlert() != nil {
			summary.Alerts++
		}
	}
	return summary
}

// DecodeFeed returns the raw protobuf message, used by debug dumps.
func DecodeFeed(body []byte) (*gtfsrtpb.FeedMessage, error) {
	msg := &gtfsrtpb.FeedMessage{}
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("failed to decode GTFS-RT feed: %w", err)
	}
	return msg, nil
}

// FeedOrder records the index of the first entity mentioning each trip and
// vehicle, so parsed realtime data can be put back in the order of the message.
type FeedOrder struct {
	trips    map[string]int
	vehicles map[string]int
}

// NewFeedOrder indexes the entities of msg.
func NewFeedOrder(msg *gtfsrtpb.FeedMessage) FeedOrder {
	order := FeedOrder{trips: map[string]int{}, vehicles: map[string]int{}}
	for i, e := range msg.GetEntity() {
		tripID := e.GetTripUpdate().GetTrip().GetTripId()
		if tripID == "" {
			tripID = e.GetVehicle().GetTrip().GetTripId()
		}
		if _, seen := order.trips[tripID]; tripID != "" && !seen {
			order.trips[tripID] = i
		}
		vehicleID := e.GetVehicle().GetVehicle().GetId()
		if _, seen := order.vehicles[vehicleID]; vehicleID != "" && !seen {
			order.vehicles[vehicleID] = i
		}
	}
	return order
}

// rank is the entity index of m, or -1 when the message never mentions it.
func (o FeedOrder) rank(m *Match) int {
	if i, ok := o.trips[m.TripID]; ok && m.TripID != "" {
		return i
	}
	if i, ok := o.vehicles[m.VehicleID()]; ok {
		return i
	}
	return -1
}
