package usecases

import (
	"context"
	"fmt"
	"sort"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/core/ports"
	"github.com/gearshare/location-api/internal/pkg/geoprivacy"
	"github.com/gearshare/location-api/internal/pkg/geospatial"
	"github.com/gearshare/location-api/internal/pkg/metrics"
)

// MaxNearbyResults caps the result count for proximity queries.
const MaxNearbyResults = 100

// candidateLimit bounds how many rows the bounding-box pre-filter may return
// before great-circle refinement.
const candidateLimit = 500

// ProximityEngine answers "what is near this point" while keeping third-party
// coordinates generalized. Raw distances stay inside the engine; callers only
// ever see distance bands.
type ProximityEngine struct {
	listings ports.ListingRepository
}

// NewProximityEngine creates a ProximityEngine.
func NewProximityEngine(listings ports.ListingRepository) *ProximityEngine {
	return &ProximityEngine{listings: listings}
}

// rankedResult pairs the outward-facing result with the sort keys that never
// leave the engine.
type rankedResult struct {
	res    domain.ProximityResult
	rating float64
}

// FindNearby returns listings of the given kind within radiusKm of the
// center, ordered by ascending distance band, then rating (descending), then
// entity ID. An empty area yields an empty slice, not an error.
func (e *ProximityEngine) FindNearby(ctx context.Context, lat, lon, radiusKm float64, kind domain.ListingKind, maxResults int) ([]domain.ProximityResult, error) {
	if !geoprivacy.ValidateCoordinates(lat, lon) {
		return nil, domain.ErrInvalidCoordinates
	}
	if !geoprivacy.ValidateRadiusKm(radiusKm) {
		return nil, domain.ErrInvalidRadius
	}
	if !geoprivacy.ValidateResultLimit(maxResults, MaxNearbyResults) {
		return nil, domain.ErrInvalidResultLimit
	}

	radiusMeters := radiusKm * 1000
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)
	bounds := domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}

	candidates, err := e.listings.FindInBounds(ctx, kind, bounds, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("spatial store: %w", err)
	}
	metrics.ProximityCandidates.WithLabelValues(string(kind)).Observe(float64(len(candidates)))

	ranked := make([]rankedResult, 0, len(candidates))
	for _, l := range candidates {
		// Discard bounding-box false positives with the true distance.
		d := geospatial.Haversine(lat, lon, l.Location.Lat, l.Location.Lon)
		if d > radiusMeters {
			continue
		}

		// Generalize with the owner's privacy level, not the requester's.
		approx, label := geoprivacy.Generalize(l.Location.Lat, l.Location.Lon, l.OwnerPrivacy)
		ranked = append(ranked, rankedResult{
			res: domain.ProximityResult{
				EntityID:         l.ID,
				Name:             l.Name,
				OwnerDisplayName: l.OwnerDisplayName,
				DistanceBand:     geoprivacy.DistanceToBand(d),
				ApproximateLocation: domain.LocationOption{
					Lat:         approx.Lat,
					Lon:         approx.Lon,
					DisplayName: label,
					Source:      domain.SourceListing,
				},
			},
			rating: l.Rating,
		})
	}

	// Ordered by band, never by raw distance: within a band the ordering
	// must not leak precision finer than the band itself.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].res.DistanceBand != ranked[j].res.DistanceBand {
			return ranked[i].res.DistanceBand < ranked[j].res.DistanceBand
		}
		if ranked[i].rating != ranked[j].rating {
			return ranked[i].rating > ranked[j].rating
		}
		return ranked[i].res.EntityID < ranked[j].res.EntityID
	})

	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	results := make([]domain.ProximityResult, len(ranked))
	for i, r := range ranked {
		results[i] = r.res
	}
	return results, nil
}
