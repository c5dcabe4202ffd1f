package gtfs

import (
	"math"

	"github.com/OneBusAway/go-gtfs"
	"github.com/tidwall/rtree"

	"github.com/ficojok/ZETdev/internal/utils"
)

// DefaultNearestStopRadius bounds NearestStop lookups for vehicles that report
// a position but no stop.
const DefaultNearestStopRadius = 300.0

// stopIndex is an R-tree of stops keyed by [lat, lon] points.
type stopIndex struct {
	tree rtree.RTreeG[*gtfs.Stop]
	size int
}

func buildStopSpatialIndex(stops []gtfs.Stop) *stopIndex {
	idx := &stopIndex{}
	for i := range stops {
		s := &stops[i]
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		pt := [2]float64{*s.Latitude, *s.Longitude}
		idx.tree.Insert(pt, pt, s)
		idx.size++
	}
	return idx
}

// nearest returns the closest stop within radius meters of (lat, lon).
func (idx *stopIndex) nearest(lat, lon, radius float64) (*gtfs.Stop, float64, bool) {
	if idx == nil || idx.size == 0 || radius <= 0 {
		return nil, 0, false
	}

	b := utils.CalculateBounds(lat, lon, radius)
	var best *gtfs.Stop
	bestDist := math.Inf(1)

	idx.tree.Search(
		[2]float64{b.MinLat, b.MinLon},
		[2]float64{b.MaxLat, b.MaxLon},
		func(_, _ [2]float64, s *gtfs.Stop) bool {
			d := utils.Distance(lat, lon, *s.Latitude, *s.Longitude)
			if d <= radius && (d < bestDist || (d == bestDist && best != nil && s.Id < best.Id)) {
				best, bestDist = s, d
			}
			return true
		},
	)

	if best == nil {
		return nil, 0, false
	}
	return best, bestDist, true
}
