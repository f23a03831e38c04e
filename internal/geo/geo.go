package geo

import (
	"math"

	"github.com/example/ride-marketplace/internal/models"
)

// FallbackDistanceKm is used when the routing collaborator is unreachable
// or returns no route. Routing failures are never fatal.
const FallbackDistanceKm = 20.0

// Estimator resolves the road distance between two points.
type Estimator interface {
	DistanceKm(from, to models.Location) (float64, error)
}

// Haversine distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// EstimateKm returns the distance between two locations in kilometers,
// preferring the routing client when one is provided and falling back to
// great-circle distance, then to the fixed estimate for degenerate input.
func EstimateKm(client Estimator, from, to models.Location) float64 {
	if client != nil {
		if km, err := client.DistanceKm(from, to); err == nil && km > 0 {
			return km
		}
	}
	d := Haversine(from.Lat, from.Lng, to.Lat, to.Lng) / 1000.0
	if d <= 0 {
		return FallbackDistanceKm
	}
	return d
}
