package ports

import (
	"context"

	"github.com/gearshare/location-api/internal/core/domain"
)

// ListingRepository is the spatial store for tools and bundles.
type ListingRepository interface {
	// FindInBounds returns listings of the given kind whose stored coordinate
	// lies inside the bounding box. The box is a cheap pre-filter; callers
	// refine with a great-circle distance check.
	FindInBounds(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error)

	// Upsert stores a listing. Used by seeding and the migration tooling.
	Upsert(ctx context.Context, l *domain.Listing) error
}

// PopularLocationRepository aggregates search frequency.
type PopularLocationRepository interface {
	TopSearched(ctx context.Context, limit int) ([]domain.LocationOption, error)
	RecordSearch(ctx context.Context, ev *domain.SearchEvent) error
}
