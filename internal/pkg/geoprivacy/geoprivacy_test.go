package geoprivacy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/pkg/geospatial"
)

func TestValidateCoordinates(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"origin", 0, 0, true},
		{"corner", -90, 180, true},
		{"other corner", 90, -180, true},
		{"lat too high", 91, 0, false},
		{"lat too low", -90.0001, 0, false},
		{"lon too high", 0, 180.5, false},
		{"lon too low", 0, -181, false},
		{"nan lat", math.NaN(), 0, false},
		{"nan lon", 0, math.NaN(), false},
		{"inf lat", math.Inf(1), 0, false},
		{"inf lon", 0, math.Inf(-1), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateCoordinates(tc.lat, tc.lon))
		})
	}
}

func TestValidateRadiusKm(t *testing.T) {
	assert.False(t, ValidateRadiusKm(0))
	assert.False(t, ValidateRadiusKm(0.99))
	assert.True(t, ValidateRadiusKm(1))
	assert.True(t, ValidateRadiusKm(100))
	assert.False(t, ValidateRadiusKm(101))
	assert.False(t, ValidateRadiusKm(math.NaN()))
	assert.False(t, ValidateRadiusKm(math.Inf(1)))
}

func TestValidateResultLimit(t *testing.T) {
	assert.True(t, ValidateResultLimit(1, 20))
	assert.True(t, ValidateResultLimit(20, 20))
	assert.False(t, ValidateResultLimit(0, 20))
	assert.False(t, ValidateResultLimit(21, 20))
	assert.True(t, ValidateResultLimit(100, 100))
}

func TestGeneralizeDeterministic(t *testing.T) {
	for _, level := range []domain.PrivacyLevel{
		domain.PrivacyExact, domain.PrivacyNeighborhood,
		domain.PrivacyZipCode, domain.PrivacyDistrict,
	} {
		p1, label1 := Generalize(33.957, -83.376, level)
		p2, label2 := Generalize(33.957, -83.376, level)
		assert.Equal(t, p1, p2, "level %s", level)
		assert.Equal(t, label1, label2)
	}
}

func TestGeneralizeWithinRadius(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 33.957, Lon: -83.376},
		{Lat: 40.0, Lon: -83.0},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 59.9139, Lon: 10.7522},
	}

	for _, raw := range points {
		for _, level := range []domain.PrivacyLevel{
			domain.PrivacyExact, domain.PrivacyNeighborhood,
			domain.PrivacyZipCode, domain.PrivacyDistrict,
		} {
			snapped, _ := Generalize(raw.Lat, raw.Lon, level)
			d := geospatial.Haversine(raw.Lat, raw.Lon, snapped.Lat, snapped.Lon)
			require.LessOrEqual(t, d, level.GeneralizationRadiusMeters(),
				"point %+v level %s displaced %f m", raw, level, d)
		}
	}
}

func TestGeneralizeMovesThePoint(t *testing.T) {
	// A full-precision coordinate does not survive snapping for the coarse
	// levels; it lands on a cell center instead.
	raw := domain.GeoPoint{Lat: 33.9573214, Lon: -83.3761189}
	for _, level := range []domain.PrivacyLevel{
		domain.PrivacyNeighborhood, domain.PrivacyZipCode, domain.PrivacyDistrict,
	} {
		snapped, _ := Generalize(raw.Lat, raw.Lon, level)
		assert.NotEqual(t, raw, snapped, "level %s", level)
	}
}

func TestDistanceToBandBoundaries(t *testing.T) {
	assert.Equal(t, domain.BandUnder1km, DistanceToBand(0))
	assert.Equal(t, domain.BandUnder1km, DistanceToBand(999.9))
	assert.Equal(t, domain.Band1to5km, DistanceToBand(1000))
	assert.Equal(t, domain.Band1to5km, DistanceToBand(4999))
	assert.Equal(t, domain.Band5to20km, DistanceToBand(5000))
	assert.Equal(t, domain.Band5to20km, DistanceToBand(19999))
	assert.Equal(t, domain.BandOver20km, DistanceToBand(20000))
	assert.Equal(t, domain.BandOver20km, DistanceToBand(250000))
}

func TestDistanceToBandMonotonic(t *testing.T) {
	prev := DistanceToBand(0)
	for d := 100.0; d <= 50000; d += 100 {
		band := DistanceToBand(d)
		require.GreaterOrEqual(t, int(band), int(prev), "band decreased at %f m", d)
		prev = band
	}
}

func TestBandLabels(t *testing.T) {
	assert.Equal(t, "<1km", domain.BandUnder1km.String())
	assert.Equal(t, "1-5km", domain.Band1to5km.String())
	assert.Equal(t, "5-20km", domain.Band5to20km.String())
	assert.Equal(t, ">20km", domain.BandOver20km.String())
}
