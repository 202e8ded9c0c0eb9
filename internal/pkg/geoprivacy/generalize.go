package geoprivacy

import (
	"math"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/pkg/geospatial"
)

// Band boundaries in meters. Half-open intervals: d < 1000 is "<1km",
// 1000 <= d < 5000 is "1-5km", and so on.
const (
	bandNearMeters = 1000.0
	bandMidMeters  = 5000.0
	bandFarMeters  = 20000.0
)

// Generalize snaps a raw coordinate onto a grid sized by the privacy level's
// generalization radius and returns the snapped point plus the level's
// accuracy label. Snapping is deterministic: repeated calls for the same
// input always land on the same cell center, so repeated queries about the
// same entity cannot leak position through jitter variance.
func Generalize(lat, lon float64, level domain.PrivacyLevel) (domain.GeoPoint, string) {
	radius := level.GeneralizationRadiusMeters()
	latSpan, lonSpan := geospatial.DegreeSpans(lat, radius)

	snapped := domain.GeoPoint{
		Lat: snapToGrid(lat, latSpan),
		Lon: snapToGrid(lon, lonSpan),
	}
	return snapped, level.AccuracyLabel()
}

// snapToGrid maps v to the center of its grid cell. With cell size equal to
// the generalization radius, the snapped point is displaced at most
// radius/sqrt(2) from the raw point.
func snapToGrid(v, cell float64) float64 {
	if cell <= 0 {
		return v
	}
	return (math.Floor(v/cell) + 0.5) * cell
}

// DistanceToBand maps a continuous distance in meters to its discrete band.
func DistanceToBand(meters float64) domain.DistanceBand {
	switch {
	case meters < bandNearMeters:
		return domain.BandUnder1km
	case meters < bandMidMeters:
		return domain.Band1to5km
	case meters < bandFarMeters:
		return domain.Band5to20km
	default:
		return domain.BandOver20km
	}
}
