// Package geocoding wraps the external Nominatim provider behind the
// ports.Geocoder interface, adding timeouts, bounded retries, and a two-tier
// read-through cache (in-process LRU in front of the shared cache) so that
// autocomplete and proximity features do not hammer a metered API.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/muesli/gominatim"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/core/ports"
	"github.com/gearshare/location-api/internal/pkg/metrics"
)

const (
	localCacheSize = 2048
	// Reverse lookups are cached on a ~100 m grid (3 decimal places), the
	// same resolution as the Exact generalization level.
	reverseKeyPrecision = 3
)

// Config tunes the gateway.
type Config struct {
	Server   string // Nominatim base URL
	Timeout  time.Duration
	Retries  int // transient retries beyond the first attempt
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Server == "" {
		c.Server = "https://nominatim.openstreetmap.org"
	}
	if c.Timeout == 0 {
		c.Timeout = 4 * time.Second
	}
	if c.Retries == 0 {
		c.Retries = 2
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 10 * time.Minute
	}
	return c
}

// Gateway implements ports.Geocoder against Nominatim.
type Gateway struct {
	cfg    Config
	shared ports.CacheService // optional
	local  *expirable.LRU[string, []domain.LocationOption]

	initOnce sync.Once

	// Provider call seams, replaced in tests.
	searchFn  func(q gominatim.SearchQuery) ([]gominatim.SearchResult, error)
	reverseFn func(q gominatim.ReverseQuery) (*gominatim.ReverseResult, error)
}

// New creates a Gateway. shared may be nil; the in-process cache is always on.
func New(cfg Config, shared ports.CacheService) *Gateway {
	cfg = cfg.withDefaults()
	g := &Gateway{
		cfg:    cfg,
		shared: shared,
		local:  expirable.NewLRU[string, []domain.LocationOption](localCacheSize, nil, cfg.CacheTTL),
	}
	g.searchFn = func(q gominatim.SearchQuery) ([]gominatim.SearchResult, error) {
		g.initServer()
		return q.Get()
	}
	g.reverseFn = func(q gominatim.ReverseQuery) (*gominatim.ReverseResult, error) {
		g.initServer()
		return q.Get()
	}
	return g
}

func (g *Gateway) initServer() {
	g.initOnce.Do(func() {
		gominatim.SetServer(g.cfg.Server)
	})
}

// Search implements ports.Geocoder.
func (g *Gateway) Search(ctx context.Context, query string, maxResults int, countryCode string) ([]domain.LocationOption, error) {
	key := "geo:search:" + strings.ToLower(strings.TrimSpace(query)) +
		"|" + strconv.Itoa(maxResults) + "|" + strings.ToLower(countryCode)

	if opts, ok := g.cacheGet(ctx, key); ok {
		metrics.GeocodeCacheHits.WithLabelValues("search").Inc()
		return opts, nil
	}
	metrics.GeocodeCacheMisses.WithLabelValues("search").Inc()

	q := gominatim.SearchQuery{Q: query, Limit: maxResults}
	if countryCode != "" {
		q.Countrycodes = []string{strings.ToLower(countryCode)}
	}

	results, err := g.callSearch(ctx, q)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("search", "error").Inc()
		return nil, err
	}
	metrics.GeocodeRequests.WithLabelValues("search", "ok").Inc()

	opts := make([]domain.LocationOption, 0, len(results))
	for _, r := range results {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil || r.DisplayName == "" {
			continue
		}
		opts = append(opts, domain.LocationOption{
			Lat:         lat,
			Lon:         lon,
			DisplayName: r.DisplayName,
			Source:      domain.SourceGeocoder,
		})
		if len(opts) >= maxResults {
			break
		}
	}

	g.cacheSet(ctx, key, opts)
	return opts, nil
}

// ReverseGeocode implements ports.Geocoder. A coordinate the provider cannot
// resolve yields (nil, nil); absence of data at a valid point is normal.
func (g *Gateway) ReverseGeocode(ctx context.Context, lat, lon float64) (*domain.LocationOption, error) {
	key := fmt.Sprintf("geo:reverse:%.*f:%.*f", reverseKeyPrecision, lat, reverseKeyPrecision, lon)

	if opts, ok := g.cacheGet(ctx, key); ok {
		metrics.GeocodeCacheHits.WithLabelValues("reverse").Inc()
		if len(opts) == 0 {
			return nil, nil
		}
		opt := opts[0]
		return &opt, nil
	}
	metrics.GeocodeCacheMisses.WithLabelValues("reverse").Inc()

	q := gominatim.ReverseQuery{
		Lat: strconv.FormatFloat(lat, 'f', -1, 64),
		Lon: strconv.FormatFloat(lon, 'f', -1, 64),
	}

	res, err := g.callReverse(ctx, q)
	if err != nil {
		if isNoResult(err) {
			metrics.GeocodeRequests.WithLabelValues("reverse", "no_result").Inc()
			g.cacheSet(ctx, key, nil)
			return nil, nil
		}
		metrics.GeocodeRequests.WithLabelValues("reverse", "error").Inc()
		return nil, err
	}
	if res == nil || res.DisplayName == "" {
		metrics.GeocodeRequests.WithLabelValues("reverse", "no_result").Inc()
		g.cacheSet(ctx, key, nil)
		return nil, nil
	}
	metrics.GeocodeRequests.WithLabelValues("reverse", "ok").Inc()

	opt := domain.LocationOption{
		Lat:         lat,
		Lon:         lon,
		DisplayName: res.DisplayName,
		Source:      domain.SourceGeocoder,
	}
	g.cacheSet(ctx, key, []domain.LocationOption{opt})
	return &opt, nil
}

// callSearch runs the provider call under the configured timeout with bounded
// retries for transient failures. The goroutine seam is needed because the
// provider client has no context support.
func (g *Gateway) callSearch(ctx context.Context, q gominatim.SearchQuery) ([]gominatim.SearchResult, error) {
	var results []gominatim.SearchResult
	err := g.withReliability(ctx, "search", func() error {
		var err error
		results, err = g.searchFn(q)
		return err
	})
	return results, err
}

func (g *Gateway) callReverse(ctx context.Context, q gominatim.ReverseQuery) (*gominatim.ReverseResult, error) {
	var res *gominatim.ReverseResult
	err := g.withReliability(ctx, "reverse", func() error {
		var err error
		res, err = g.reverseFn(q)
		return err
	})
	return res, err
}

func (g *Gateway) withReliability(ctx context.Context, op string, call func() error) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	attempts := g.cfg.Retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		done := make(chan error, 1)
		go func() { done <- call() }()

		select {
		case err := <-done:
			if err == nil {
				return nil
			}
			lastErr = err
			if isNoResult(err) || !isTransient(err) || attempt == attempts {
				if isNoResult(err) {
					return err
				}
				slog.Error("geocode provider failed",
					"op", op, "attempt", attempt, "error", err)
				return fmt.Errorf("geocode %s: %w", op, domain.ErrGeocodingUnavailable)
			}
			slog.Warn("transient geocode error, retrying",
				"op", op, "attempt", attempt, "error", err)
			select {
			case <-time.After(time.Duration(attempt) * 150 * time.Millisecond):
			case <-ctx.Done():
				return fmt.Errorf("geocode %s: %w", op, domain.ErrGeocodingUnavailable)
			}
		case <-ctx.Done():
			slog.Error("geocode provider timed out", "op", op, "error", lastErr)
			return fmt.Errorf("geocode %s: %w", op, domain.ErrGeocodingUnavailable)
		}
	}
	return fmt.Errorf("geocode %s: %w", op, domain.ErrGeocodingUnavailable)
}

// isTransient mirrors the failure modes seen from public Nominatim instances:
// truncated bodies and connection resets recover on retry.
func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout")
}

// isNoResult detects the provider's "nothing here" response, which arrives as
// an error from the client library.
func isNoResult(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unable to geocode")
}

func (g *Gateway) cacheGet(ctx context.Context, key string) ([]domain.LocationOption, bool) {
	if opts, ok := g.local.Get(key); ok {
		return opts, true
	}
	if g.shared == nil {
		return nil, false
	}
	data, err := g.shared.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var opts []domain.LocationOption
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, false
	}
	g.local.Add(key, opts)
	return opts, true
}

func (g *Gateway) cacheSet(ctx context.Context, key string, opts []domain.LocationOption) {
	if opts == nil {
		opts = []domain.LocationOption{}
	}
	g.local.Add(key, opts)
	if g.shared == nil {
		return
	}
	if data, err := json.Marshal(opts); err == nil {
		_ = g.shared.Set(ctx, key, data, int(g.cfg.CacheTTL.Seconds()))
	}
}
