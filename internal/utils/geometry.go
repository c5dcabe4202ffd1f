package utils

import "math"

// RadiusOfEarthInMeters is the mean radius used for all stop/vehicle distances.
const RadiusOfEarthInMeters = 6371010.0

// CoordinateBounds is a lat/lon bounding box.
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Distance returns meters between two WGS84 points. Points closer than 0.2
// degrees on both axes (the whole ZET network) use the equirectangular
// approximation; anything farther uses the exact great-circle formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180

	if math.Abs(lat2-lat1) < 0.2 && math.Abs(lon2-lon1) < 0.2 {
		x := (lon2 - lon1) * toRad * math.Cos((lat1+lat2)*toRad/2)
		y := (lat2 - lat1) * toRad
		return RadiusOfEarthInMeters * math.Sqrt(x*x+y*y)
	}

	phi1, phi2 := lat1*toRad, lat2*toRad
	deltaLon := (lon2 - lon1) * toRad

	y := math.Hypot(
		math.Cos(phi2)*math.Sin(deltaLon),
		math.Cos(phi1)*math.Sin(phi2)-math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon),
	)
	x := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	return RadiusOfEarthInMeters * math.Atan2(y, x)
}

// CalculateBounds returns the box that contains the circle of radius meters
// around (lat, lon).
func CalculateBounds(lat, lon, radius float64) CoordinateBounds {
	latOffset := radius / RadiusOfEarthInMeters * 180 / math.Pi
	lonOffset := radius / (RadiusOfEarthInMeters * math.Cos(lat*math.Pi/180)) * 180 / math.Pi

	return CoordinateBounds{
		MinLat: lat - latOffset,
		MaxLat: lat + latOffset,
		MinLon: lon - lonOffset,
		MaxLon: lon + lonOffset,
	}
}

// Contains reports whether the point lies inside b (edges included).
func (b CoordinateBounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
