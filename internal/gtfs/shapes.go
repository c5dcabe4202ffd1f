package gtfs

import (
	"github.com/OneBusAway/go-gtfs"
	"github.com/twpayne/go-polyline"
)

// RegionBounds is the centre and span of the area a feed covers.
type RegionBounds struct {
	Lat     float64
	Lon     float64
	LatSpan float64
	LonSpan float64
}

// ComputeRegionBounds calculates the geographic boundaries of the feed from all
// shape points and stop coordinates. Returns nil if neither has any point.
func ComputeRegionBounds(shapes []gtfs.Shape, stops []gtfs.Stop) *RegionBounds {
	var minLat, maxLat, minLon, maxLon float64
	first := true

	extend := func(lat, lon float64) {
		if first {
			minLat, maxLat, minLon, maxLon = lat, lat, lon, lon
			first = false
			return
		}
		minLat = min(minLat, lat)
		maxLat = max(maxLat, lat)
		minLon = min(minLon, lon)
		maxLon = max(maxLon, lon)
	}

	for _, shape := range shapes {
		for _, point := range shape.Points {
			extend(point.Latitude, point.Longitude)
		}
	}
	for _, stop := range stops {
		if stop.Latitude != nil && stop.Longitude != nil {
			extend(*stop.Latitude, *stop.Longitude)
		}
	}

	if first {
		return nil
	}
	return &RegionBounds{
		Lat:     (minLat + maxLat) / 2,
		Lon:     (minLon + maxLon) / 2,
		LatSpan: maxLat - minLat,
		LonSpan: maxLon - minLon,
	}
}

// RouteShape is a route's geometry as a Google encoded polyline.
type RouteShape struct {
	RouteID  string
	ShapeID  string
	TripID   string
	Polyline string
	Points   int
}

// RouteShape returns the shape of the route's first trip that has one.
func (f *StaticFeed) RouteShape(routeID string) (RouteShape, bool) {
	if f == nil {
		return RouteShape{}, false
	}
	for i := range f.Data.Trips {
		t := &f.Data.Trips[i]
		if t.Route == nil || t.Route.Id != routeID || t.Shape == nil || len(t.Shape.Points) == 0 {
			continue
		}
		coords := make([][]float64, 0, len(t.Shape.Points))
		for _, p := range t.Shape.Points {
			coords = append(coords, []float64{p.Latitude, p.Longitude})
		}
		return RouteShape{
			RouteID:  routeID,
			ShapeID:  t.Shape.ID,
			TripID:   t.ID,
			Polyline: string(polyline.EncodeCoords(coords)),
			Points:   len(coords),
		}, true
	}
	return RouteShape{}, false
}
