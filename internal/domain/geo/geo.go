// Package geo provides great-circle distance between delivery coordinates.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// DistanceKm returns the haversine great-circle distance between a and b in
// kilometres. It is symmetric and returns 0 for identical points.
func DistanceKm(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*sinLng*sinLng

	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Between returns the distance between two optional points. Unknown
// locations and non-finite coordinates yield 0, so delivery is billed at
// the base fee.
func Between(a, b *Point) float64 {
	if a == nil || b == nil {
		return 0
	}
	km := DistanceKm(*a, *b)
	if math.IsNaN(km) || math.IsInf(km, 0) {
		return 0
	}
	return km
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
