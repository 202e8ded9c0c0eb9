package domain

import "errors"

// Sentinel errors for the location engine. Adapters map these to external
// statuses; everything else surfaces as an internal error.
var (
	ErrInvalidCoordinates     = errors.New("invalid coordinates")
	ErrInvalidRadius          = errors.New("invalid search radius")
	ErrInvalidResultLimit     = errors.New("invalid result limit")
	ErrInvalidQuery           = errors.New("invalid search query")
	ErrRateLimitExceeded      = errors.New("rate limit exceeded")
	ErrSuspiciousPattern      = errors.New("suspicious query pattern")
	ErrGeocodingUnavailable   = errors.New("geocoding provider unavailable")
	ErrAuthenticationRequired = errors.New("authentication required")
)
