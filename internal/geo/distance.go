// Package geo provides great-circle distance and device coordinate sources.
package geo

import "github.com/golang/geo/s2"

// EarthRadiusMiles is the mean Earth radius used for all distances.
const EarthRadiusMiles = 3959.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Distance returns the haversine great-circle distance between a and b in miles.
// Inputs are not range-checked.
func Distance(a, b Point) float64 {
	angle := s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return angle.Radians() * EarthRadiusMiles
}
