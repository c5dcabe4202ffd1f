package gtfs

import (
	"time"

	"github.com/OneBusAway/go-gtfs"
)

// StaleDetector flags vehicle positions that have not been refreshed recently.
type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{
		threshold: 5 * time.Minute,
	}
}

func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	d.threshold = threshold
	return d
}

func (d *StaleDetector) Threshold() time.Duration {
	return d.threshold
}

// Check reports whether vehicle is stale at currentTime. A vehicle without a
// timestamp is always stale.
func (d *StaleDetector) Check(vehicle *gtfs.Vehicle, currentTime time.Time) bool {
	if vehicle == nil || vehicle.Timestamp == nil {
		return true
	}
	return currentTime.Sub(*vehicle.Timestamp) > d.threshold
}

func (d *StaleDetector) Age(vehicle *gtfs.Vehicle, currentTime time.Time) time.Duration {
	if vehicle == nil || vehicle.Timestamp == nil {
		return d.threshold + 1
	}
	return currentTime.Sub(*vehicle.Timestamp)
}
