package geospatial

import "math"

const (
	earthRadiusKm  = 6371.0
	metersPerDegLat = 111320.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000
}

// BoundingBox returns a box around a point covering the given radius in
// meters. It over-approximates near the poles, which is fine for a pre-filter.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegLat
	lonDelta := radiusMeters / (metersPerDegLat * clampedCos(lat))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// DegreeSpans converts a grid size in meters to degree spans at a latitude.
func DegreeSpans(lat, meters float64) (latSpan, lonSpan float64) {
	return meters / metersPerDegLat, meters / (metersPerDegLat * clampedCos(lat))
}

// clampedCos keeps longitude math finite at extreme latitudes.
func clampedCos(lat float64) float64 {
	c := math.Cos(toRad(lat))
	if c < 0.01 {
		c = 0.01
	}
	return c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
