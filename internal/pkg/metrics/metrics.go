// Package metrics wires Prometheus instrumentation for the location API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "gearshare"

var (
	// HTTPRequestsTotal counts requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	// GeocodeRequests counts upstream geocoder calls by operation and outcome.
	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geocode",
		Name:      "requests_total",
		Help:      "Upstream geocoding provider calls.",
	}, []string{"op", "outcome"})

	// GeocodeCacheHits counts geocode lookups answered from cache.
	GeocodeCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geocode",
		Name:      "cache_hits_total",
		Help:      "Geocode lookups served from cache.",
	}, []string{"op"})

	// GeocodeCacheMisses counts geocode lookups that went upstream.
	GeocodeCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geocode",
		Name:      "cache_misses_total",
		Help:      "Geocode lookups not found in cache.",
	}, []string{"op"})

	// ProximityQueries counts nearby searches by listing kind.
	ProximityQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proximity",
		Name:      "queries_total",
		Help:      "Proximity searches executed.",
	}, []string{"kind"})

	// ProximityCandidates observes how many candidates the bounding-box
	// prefilter produced per query, before the exact-distance refine.
	ProximityCandidates = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "proximity",
		Name:      "candidates",
		Help:      "Candidate listings per proximity query before refine.",
		Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"kind"})

	// RateLimitRejections counts throttled requests by operation and reason.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"op", "reason"})
)

// Middleware records request counts and latency for every handled route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes the Prometheus scrape endpoint as a fiber handler.
func Handler() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}
