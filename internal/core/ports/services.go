package ports

import (
	"context"

	"github.com/gearshare/location-api/internal/core/domain"
)

// RateOp identifies the operation class a rate-limit check applies to.
// Reverse lookups carry a stricter budget than forward search.
type RateOp string

const (
	OpSearch  RateOp = "search"
	OpReverse RateOp = "reverse"
	OpNearby  RateOp = "nearby"
)

// Probe describes the geometry of a proximity or reverse-geocode query,
// used by the suspicious-pattern detector.
type Probe struct {
	Center   domain.GeoPoint
	RadiusKm float64
}

// RateLimiter gates calls per acting identity.
type RateLimiter interface {
	// CheckAndConsume consumes one token from the identity's window for op.
	// It returns domain.ErrRateLimitExceeded when over budget and
	// domain.ErrSuspiciousPattern while a penalty is active. The token is
	// consumed before any external call is dispatched, so a cancelled
	// request still costs one.
	CheckAndConsume(identity string, op RateOp) error

	// DetectSuspiciousPattern records the probe and reports whether the
	// identity's recent behavior looks like triangulation probing. Once
	// flagged, subsequent CheckAndConsume calls are rejected for a while.
	DetectSuspiciousPattern(identity string, p Probe) bool
}

// Geocoder converts between text queries and coordinates via an external
// provider. Implementations apply timeouts, retries, and caching.
type Geocoder interface {
	Search(ctx context.Context, query string, maxResults int, countryCode string) ([]domain.LocationOption, error)

	// ReverseGeocode returns nil (not an error) when the provider has no
	// result for the coordinate.
	ReverseGeocode(ctx context.Context, lat, lon float64) (*domain.LocationOption, error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes audit and frequency events to a message broker.
type EventPublisher interface {
	PublishAbuse(ctx context.Context, ev *domain.AbuseEvent) error
	PublishSearchRecorded(ctx context.Context, ev *domain.SearchEvent) error
}
