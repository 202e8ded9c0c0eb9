package postgres

import (
	"context"
	"fmt"

	"github.com/gearshare/location-api/internal/core/domain"
)

// PopularLocationRepo implements ports.PopularLocationRepository with pgx.
// Rows aggregate how often a display name was the top result of a forward
// geocode, so the suggestions endpoint can answer without the provider.
type PopularLocationRepo struct {
	db *DB
}

// NewPopularLocationRepo creates a new PopularLocationRepo.
func NewPopularLocationRepo(db *DB) *PopularLocationRepo {
	return &PopularLocationRepo{db: db}
}

// TopSearched returns the most frequently searched locations, busiest first.
func (r *PopularLocationRepo) TopSearched(ctx context.Context, limit int) ([]domain.LocationOption, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT display_name, lat, lon
		FROM popular_locations
		ORDER BY search_count DESC, display_name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular locations: %w", err)
	}
	defer rows.Close()

	var opts []domain.LocationOption
	for rows.Next() {
		var o domain.LocationOption
		if err := rows.Scan(&o.DisplayName, &o.Lat, &o.Lon); err != nil {
			return nil, fmt.Errorf("scan popular location: %w", err)
		}
		o.Source = domain.SourceDatabaseFrequency
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// RecordSearch bumps the frequency counter for the event's top result.
func (r *PopularLocationRepo) RecordSearch(ctx context.Context, ev *domain.SearchEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO popular_locations (display_name, lat, lon, search_count, last_searched_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (display_name) DO UPDATE
		SET search_count = popular_locations.search_count + 1,
		    lat = EXCLUDED.lat, lon = EXCLUDED.lon,
		    last_searched_at = EXCLUDED.last_searched_at
	`, ev.Option.DisplayName, ev.Option.Lat, ev.Option.Lon, ev.At)
	return err
}
