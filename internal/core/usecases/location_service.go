package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/core/ports"
	"github.com/gearshare/location-api/internal/pkg/geoprivacy"
	"github.com/gearshare/location-api/internal/pkg/metrics"
)

// Result-count caps per operation.
const (
	MaxSearchResults     = 20
	MaxPopularResults    = 50
	MaxSuggestionResults = 20
)

// LocationService orchestrates the location engine: rate limiting, geocoding,
// proximity search, and privacy generalization behind one API.
type LocationService struct {
	geocoder  ports.Geocoder
	limiter   ports.RateLimiter
	proximity *ProximityEngine
	popular   ports.PopularLocationRepository
	events    ports.EventPublisher // optional
}

// NewLocationService creates a LocationService. events may be nil.
func NewLocationService(
	geocoder ports.Geocoder,
	limiter ports.RateLimiter,
	proximity *ProximityEngine,
	popular ports.PopularLocationRepository,
	events ports.EventPublisher,
) *LocationService {
	return &LocationService{
		geocoder:  geocoder,
		limiter:   limiter,
		proximity: proximity,
		popular:   popular,
		events:    events,
	}
}

// SearchLocations forward-geocodes the requester's own query. No third-party
// privacy concern: the results describe public places, not marketplace users.
func (s *LocationService) SearchLocations(ctx context.Context, identity, query string, maxResults int, countryCode string) ([]domain.LocationOption, error) {
	if identity == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}
	if !geoprivacy.ValidateResultLimit(maxResults, MaxSearchResults) {
		return nil, domain.ErrInvalidResultLimit
	}

	// Consume the token before dispatching the external call so a cancelled
	// request still costs one.
	if err := s.limiter.CheckAndConsume(identity, ports.OpSearch); err != nil {
		s.reportAbuse(ctx, identity, "search", err, query, nil, 0)
		return nil, err
	}

	opts, err := s.geocoder.Search(ctx, query, maxResults, countryCode)
	if err != nil {
		return nil, err
	}

	if len(opts) > 0 {
		s.recordSearch(ctx, query, opts[0])
	}
	return opts, nil
}

// ReverseGeocode resolves a coordinate to a display label. A nil result with
// nil error means the provider knows nothing about that point.
func (s *LocationService) ReverseGeocode(ctx context.Context, identity string, lat, lon float64) (*domain.LocationOption, error) {
	if identity == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	if !geoprivacy.ValidateCoordinates(lat, lon) {
		return nil, domain.ErrInvalidCoordinates
	}

	if err := s.limiter.CheckAndConsume(identity, ports.OpReverse); err != nil {
		s.reportAbuse(ctx, identity, "reverse", err, "", &domain.GeoPoint{Lat: lat, Lon: lon}, 0)
		return nil, err
	}

	// Reverse sweeps over a small area are a triangulation vector too.
	probe := ports.Probe{Center: domain.GeoPoint{Lat: lat, Lon: lon}}
	if s.limiter.DetectSuspiciousPattern(identity, probe) {
		s.reportAbuse(ctx, identity, "reverse", domain.ErrSuspiciousPattern, "", &probe.Center, 0)
		return nil, domain.ErrSuspiciousPattern
	}

	return s.geocoder.ReverseGeocode(ctx, lat, lon)
}

// PopularLocations returns the most frequently searched places. Not
// rate-limited: the data is aggregate and not user- or third-party-specific.
func (s *LocationService) PopularLocations(ctx context.Context, maxResults int) ([]domain.LocationOption, error) {
	if !geoprivacy.ValidateResultLimit(maxResults, MaxPopularResults) {
		return nil, domain.ErrInvalidResultLimit
	}
	return s.popular.TopSearched(ctx, maxResults)
}

// LocationSuggestions merges popular locations with live geocoder results,
// de-duplicated by normalized display name. Popular entries win ties so that
// a flaky provider still yields useful suggestions.
func (s *LocationService) LocationSuggestions(ctx context.Context, identity, query string, maxResults int) ([]domain.LocationOption, error) {
	if identity == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}
	if !geoprivacy.ValidateResultLimit(maxResults, MaxSuggestionResults) {
		return nil, domain.ErrInvalidResultLimit
	}

	if err := s.limiter.CheckAndConsume(identity, ports.OpSearch); err != nil {
		s.reportAbuse(ctx, identity, "suggestions", err, query, nil, 0)
		return nil, err
	}

	merged := make([]domain.LocationOption, 0, maxResults)
	seen := make(map[string]struct{})
	add := func(opts []domain.LocationOption) {
		for _, o := range opts {
			key := normalizeDisplayName(o.DisplayName)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, o)
		}
	}

	needle := strings.ToLower(query)
	if popular, err := s.popular.TopSearched(ctx, maxResults); err == nil {
		matched := popular[:0:0]
		for _, p := range popular {
			if strings.Contains(strings.ToLower(p.DisplayName), needle) {
				matched = append(matched, p)
			}
		}
		add(matched)
	}

	if len(merged) < maxResults {
		opts, err := s.geocoder.Search(ctx, query, maxResults, "")
		if err != nil {
			// Popular-only suggestions beat a hard failure, but a total
			// provider outage with nothing cached is still an error.
			if len(merged) == 0 {
				return nil, err
			}
			slog.Warn("suggestions degraded to popular-only", "error", err)
		}
		add(opts)
	}

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged, nil
}

// FindNearbyTools returns tools within radiusKm of the given point.
func (s *LocationService) FindNearbyTools(ctx context.Context, identity string, lat, lon, radiusKm float64, maxResults int) ([]domain.NearbyTool, error) {
	results, err := s.findNearby(ctx, identity, lat, lon, radiusKm, domain.KindTool, maxResults)
	if err != nil {
		return nil, err
	}
	tools := make([]domain.NearbyTool, len(results))
	for i, r := range results {
		tools[i] = domain.NearbyTool{
			ToolID:              r.EntityID,
			Name:                r.Name,
			OwnerDisplayName:    r.OwnerDisplayName,
			DistanceBand:        r.DistanceBand,
			ApproximateLocation: r.ApproximateLocation,
		}
	}
	return tools, nil
}

// FindNearbyBundles returns bundles within radiusKm of the given point.
func (s *LocationService) FindNearbyBundles(ctx context.Context, identity string, lat, lon, radiusKm float64, maxResults int) ([]domain.NearbyBundle, error) {
	results, err := s.findNearby(ctx, identity, lat, lon, radiusKm, domain.KindBundle, maxResults)
	if err != nil {
		return nil, err
	}
	bundles := make([]domain.NearbyBundle, len(results))
	for i, r := range results {
		bundles[i] = domain.NearbyBundle{
			BundleID:            r.EntityID,
			Name:                r.Name,
			OwnerDisplayName:    r.OwnerDisplayName,
			DistanceBand:        r.DistanceBand,
			ApproximateLocation: r.ApproximateLocation,
		}
	}
	return bundles, nil
}

func (s *LocationService) findNearby(ctx context.Context, identity string, lat, lon, radiusKm float64, kind domain.ListingKind, maxResults int) ([]domain.ProximityResult, error) {
	if identity == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	// Fail fast before consuming a token or touching the store.
	if !geoprivacy.ValidateCoordinates(lat, lon) {
		return nil, domain.ErrInvalidCoordinates
	}
	if !geoprivacy.ValidateRadiusKm(radiusKm) {
		return nil, domain.ErrInvalidRadius
	}
	if !geoprivacy.ValidateResultLimit(maxResults, MaxNearbyResults) {
		return nil, domain.ErrInvalidResultLimit
	}

	if err := s.limiter.CheckAndConsume(identity, ports.OpNearby); err != nil {
		s.reportAbuse(ctx, identity, "nearby_"+string(kind), err, "", &domain.GeoPoint{Lat: lat, Lon: lon}, radiusKm)
		return nil, err
	}

	probe := ports.Probe{Center: domain.GeoPoint{Lat: lat, Lon: lon}, RadiusKm: radiusKm}
	if s.limiter.DetectSuspiciousPattern(identity, probe) {
		s.reportAbuse(ctx, identity, "nearby_"+string(kind), domain.ErrSuspiciousPattern, "", &probe.Center, radiusKm)
		return nil, domain.ErrSuspiciousPattern
	}

	metrics.ProximityQueries.WithLabelValues(string(kind)).Inc()
	return s.proximity.FindNearby(ctx, lat, lon, radiusKm, kind, maxResults)
}

// reportAbuse logs a throttling decision with enough context for later
// analysis and mirrors it to the broker. The caller still returns only the
// generic error to the client.
func (s *LocationService) reportAbuse(ctx context.Context, identity, op string, cause error, query string, center *domain.GeoPoint, radiusKm float64) {
	reason := "rate_limit"
	if errors.Is(cause, domain.ErrSuspiciousPattern) {
		reason = "suspicious_pattern"
	}
	metrics.RateLimitRejections.WithLabelValues(op, reason).Inc()

	ev := &domain.AbuseEvent{
		Identity: identity,
		Op:       op,
		Reason:   reason,
		Query:    query,
		Center:   center,
		RadiusKm: radiusKm,
		At:       time.Now().UTC(),
	}
	slog.Warn("request throttled",
		"identity", identity, "op", op, "reason", reason, "query", query)
	if s.events != nil {
		if err := s.events.PublishAbuse(ctx, ev); err != nil {
			slog.Error("abuse event publish failed", "error", err)
		}
	}
}

// recordSearch mirrors a successful forward geocode to the broker for the
// frequency aggregator. Fire and forget.
func (s *LocationService) recordSearch(ctx context.Context, query string, top domain.LocationOption) {
	if s.events == nil {
		return
	}
	ev := &domain.SearchEvent{
		Query:  normalizeDisplayName(query),
		Option: top,
		At:     time.Now().UTC(),
	}
	if err := s.events.PublishSearchRecorded(ctx, ev); err != nil {
		slog.Debug("search event publish failed", "error", err)
	}
}

// normalizeDisplayName lowers, trims, and collapses whitespace so that
// "Athens, GA " and "athens,  ga" de-duplicate to the same key.
func normalizeDisplayName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
