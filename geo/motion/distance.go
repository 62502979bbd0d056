package motion

import (
	"github.com/golang/geo/s2"
	"github.com/rotblauer/geopulse/types/geopoint"
)

// EarthRadiusMeters is the mean Earth radius used for all displacement math.
const EarthRadiusMeters = 6_371_000.0

// Distance returns the great-circle (haversine) distance between a and b in meters.
// Elevation and bearing are not modeled.
func Distance(a, b geopoint.GeoPoint) float64 {
	la := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	lb := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return la.Distance(lb).Radians() * EarthRadiusMeters
}
