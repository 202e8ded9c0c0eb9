package http

import (
	"github.com/nats-io/nats.go"

	"github.com/gearshare/location-api/internal/adapters/postgres"
	"github.com/gearshare/location-api/internal/adapters/valkey"
	"github.com/gearshare/location-api/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. DB, NATS, and
// Cache may be nil depending on the configured backends.
type Dependencies struct {
	Locations *usecases.LocationService
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache

	// DefaultCountry biases forward search when the caller does not
	// pass an explicit countryCode. Empty means no bias.
	DefaultCountry string
}
