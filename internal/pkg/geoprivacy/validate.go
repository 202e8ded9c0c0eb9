// Package geoprivacy holds the pure policy functions of the location engine:
// coordinate validation, privacy-level generalization, and distance banding.
// Nothing here performs I/O and every function is deterministic.
package geoprivacy

import "math"

// Radius bounds for proximity search in kilometers. The cap bounds result-set
// size and spatial-store query cost.
const (
	MinRadiusKm = 1.0
	MaxRadiusKm = 100.0
)

// ValidateCoordinates reports whether lat/lon form a finite WGS 84 coordinate.
func ValidateCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidateRadiusKm reports whether a proximity radius is within bounds.
func ValidateRadiusKm(km float64) bool {
	if math.IsNaN(km) || math.IsInf(km, 0) {
		return false
	}
	return km >= MinRadiusKm && km <= MaxRadiusKm
}

// ValidateResultLimit reports whether 1 <= n <= max. The maximum varies by
// endpoint (20 for search/suggestions, 50 for popular, 100 for nearby).
func ValidateResultLimit(n, max int) bool {
	return n >= 1 && n <= max
}
