package postgres

import (
	"context"
	"fmt"

	"github.com/gearshare/location-api/internal/core/domain"
)

// ListingRepo implements ports.ListingRepository with pgx over PostGIS.
type ListingRepo struct {
	db *DB
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(db *DB) *ListingRepo {
	return &ListingRepo{db: db}
}

// FindInBounds returns listings of the given kind inside the bounding box.
// The && overlap test uses the GiST index on location; the caller refines
// candidates with an exact great-circle distance check.
func (r *ListingRepo) FindInBounds(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT listing_id, kind, name, owner_display_name, owner_privacy,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       rating
		FROM listings
		WHERE kind = $1
		  AND location::geometry && ST_MakeEnvelope($2, $3, $4, $5, 4326)
		LIMIT $6
	`, string(kind), b.MinLon, b.MinLat, b.MaxLon, b.MaxLat, limit)
	if err != nil {
		return nil, fmt.Errorf("query listings in bounds: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		var privacy int
		if err := rows.Scan(
			&l.ID, &l.Kind, &l.Name, &l.OwnerDisplayName, &privacy,
			&l.Location.Lat, &l.Location.Lon, &l.Rating,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.OwnerPrivacy = domain.PrivacyLevel(privacy)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Upsert inserts or updates a listing keyed by listing_id.
func (r *ListingRepo) Upsert(ctx context.Context, l *domain.Listing) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO listings (listing_id, kind, name, owner_display_name, owner_privacy, location, rating)
		VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8)
		ON CONFLICT (listing_id) DO UPDATE
		SET kind = EXCLUDED.kind, name = EXCLUDED.name,
		    owner_display_name = EXCLUDED.owner_display_name,
		    owner_privacy = EXCLUDED.owner_privacy,
		    location = EXCLUDED.location,
		    rating = EXCLUDED.rating
	`, l.ID, string(l.Kind), l.Name, l.OwnerDisplayName, int(l.OwnerPrivacy),
		l.Location.Lon, l.Location.Lat, l.Rating)
	return err
}
