// Package geo provides the drive-time estimate used by the distance filter.
// Distances are great-circle; drive time assumes a fixed average speed, which
// is deliberately rough but monotonic in distance.
package geo

import (
	"fmt"
	"math"
)

const (
	earthRadiusKm   = 6371.0
	averageSpeedKmh = 80.0
)

// Point is a lat/lng pair in degrees. Callers are responsible for filtering
// non-finite coordinates before calling into this package.
type Point struct {
	Lat float64
	Lng float64
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(a, b Point) float64 {
	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// DriveMinutes estimates the drive time in minutes for a road distance,
// assuming a fixed 80 km/h average. Zero distance is zero minutes.
func DriveMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm / averageSpeedKmh * 60))
}

// FormatDuration renders minutes as "Xh Ym", "Xh" on exact hours, or "Ym"
// under an hour. Non-positive values render "0m".
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	h := minutes / 60
	m := minutes % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
