package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// parseCoord reads a required float query parameter. The bool is false when
// the parameter is missing or not a number; range checks happen downstream.
func parseCoord(c *fiber.Ctx, key string) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// queryParam reads the free-text query, accepting the short form "q"
// as an alias for "query".
func queryParam(c *fiber.Ctx) string {
	if q := c.Query("query"); q != "" {
		return q
	}
	return c.Query("q")
}

// SearchLocationsHandler forward-geocodes a free-text query.
// GET /v1/location/search?query=...&maxResults=5&countryCode=us
func SearchLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := queryParam(c)
		maxResults := c.QueryInt("maxResults", 5)
		countryCode := c.Query("countryCode", deps.DefaultCountry)

		opts, err := deps.Locations.SearchLocations(c.UserContext(), identityFrom(c), query, maxResults, countryCode)
		if err != nil {
			return respondDomainErr(c, err)
		}
		return respondOK(c, opts)
	}
}

// ReverseGeocodeHandler resolves a coordinate to a display label.
// GET /v1/location/reverse?lat=..&lng=..
// An unknown point yields success with null data, not an error.
func ReverseGeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, okLat := parseCoord(c, "lat")
		lng, okLng := parseCoord(c, "lng")
		if !okLat || !okLng {
			return respondErr(c, fiber.StatusBadRequest, "lat and lng are required")
		}

		opt, err := deps.Locations.ReverseGeocode(c.UserContext(), identityFrom(c), lat, lng)
		if err != nil {
			return respondDomainErr(c, err)
		}
		return respondOK(c, opt)
	}
}

// PopularLocationsHandler returns the most frequently searched places.
// GET /v1/location/popular?maxResults=10
func PopularLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		maxResults := c.QueryInt("maxResults", 10)

		opts, err := deps.Locations.PopularLocations(c.UserContext(), maxResults)
		if err != nil {
			return respondDomainErr(c, err)
		}
		return respondOK(c, opts)
	}
}

// LocationSuggestionsHandler merges popular and live geocoder results.
// GET /v1/location/suggestions?query=...&maxResults=8
func LocationSuggestionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := queryParam(c)
		maxResults := c.QueryInt("maxResults", 8)

		opts, err := deps.Locations.LocationSuggestions(c.UserContext(), identityFrom(c), query, maxResults)
		if err != nil {
			return respondDomainErr(c, err)
		}
		return respondOK(c, opts)
	}
}

// NearbyToolsHandler finds tools within a radius of a point.
// GET /v1/location/nearby/tools?lat=..&lng=..&radiusKm=10&maxResults=20
func NearbyToolsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, okLat := parseCoord(c, "lat")
		lng, okLng := parseCoord(c, "lng")
		if !okLat || !okLng {
			return respondErr(c, fiber.StatusBadRequest, "lat and lng are required")
		}
		radiusKm, okRadius := parseCoord(c, "radiusKm")
		if !okRadius {
			return respondErr(c, fiber.StatusBadRequest, "radiusKm is required")
		}
		maxResults := c.QueryInt("maxResults", 20)

		tools, err := deps.Locations.FindNearbyTools(c.UserContext(), identityFrom(c), lat, lng, radiusKm, maxResults)
		if err != nil {
			return respondDomainErr(c, err)
		}
		return respondOK(c, tools)
	}
}

// NearbyBundlesHandler finds bundles within a radius of a point.
// GET /v1/location/nearby/bundles?lat=..&lng=..&radiusKm=10&maxResults=20
func NearbyBundlesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, okLat := parseCoord(c, "lat")
		lng, okLng := parseCoord(c, "lng")
		if !okLat || !okLng {
			return respondErr(c, fiber.StatusBadRequest, "lat and lng are required")
		}
		radiusKm, okRadius := parseCoord(c, "radiusKm")
		if !okRadius {
			return respondErr(c, fiber.StatusBadRequest, "radiusKm is required")
		}
		maxResults := c.QueryInt("maxResults", 20)

		bundles, err := deps.Locations.FindNearbyBundles(c.UserContext(), identityFrom(c), lat, lng, radiusKm, maxResults)
		if err != nil {
			return respondDomainErr(c, err)
		}
		return respondOK(c, bundles)
	}
}
