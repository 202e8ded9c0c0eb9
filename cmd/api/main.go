package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/gearshare/location-api/internal/adapters/geocoding"
	"github.com/gearshare/location-api/internal/adapters/http"
	"github.com/gearshare/location-api/internal/adapters/memory"
	natsadapter "github.com/gearshare/location-api/internal/adapters/nats"
	"github.com/gearshare/location-api/internal/adapters/postgres"
	"github.com/gearshare/location-api/internal/adapters/ratelimit"
	"github.com/gearshare/location-api/internal/adapters/valkey"
	"github.com/gearshare/location-api/internal/core/ports"
	"github.com/gearshare/location-api/internal/core/usecases"
	"github.com/gearshare/location-api/internal/pkg/config"
	"github.com/gearshare/location-api/internal/pkg/logging"
	"github.com/gearshare/location-api/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("gearshare-location-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Listing store: PostGIS or the in-process spatial index
	var (
		db          *postgres.DB
		listingRepo ports.ListingRepository
		popularRepo ports.PopularLocationRepository
	)
	switch cfg.Store.Backend {
	case "memory":
		slog.Info("using in-memory listing store")
		listingRepo = memory.NewListingIndex()
		popularRepo = memory.NewPopularLocations()
	default:
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		listingRepo = postgres.NewListingRepo(db)
		popularRepo = postgres.NewPopularLocationRepo(db)
	}

	// Cache
	var cache *valkey.Cache
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// NATS
	var (
		publisher ports.EventPublisher
		natsConn  *nats.Conn
	)
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		// Raw NATS connection for the WebSocket abuse relay
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		}
	}

	// Geocoding gateway
	var sharedCache ports.CacheService
	if cache != nil {
		sharedCache = cache
	}
	geocoder := geocoding.New(geocoding.Config{
		Server:   cfg.Geocoder.BaseURL,
		Timeout:  time.Duration(cfg.Geocoder.TimeoutMs) * time.Millisecond,
		Retries:  cfg.Geocoder.Retries,
		CacheTTL: time.Duration(cfg.Geocoder.CacheTTLSec) * time.Second,
	}, sharedCache)

	// Per-identity rate limiter
	limiter := ratelimit.New(ratelimit.Config{
		SearchPerWindow:  cfg.RateLimit.SearchPerMinute,
		ReversePerWindow: cfg.RateLimit.ReversePerMinute,
		NearbyPerWindow:  cfg.RateLimit.NearbyPerMinute,
		PenaltyRequests:  cfg.RateLimit.PenaltyRequests,
		IdleTTL:          time.Duration(cfg.RateLimit.IdleTTLMin) * time.Minute,
	})
	limiter.StartSweep()
	defer limiter.Stop()

	// Use cases
	proximity := usecases.NewProximityEngine(listingRepo)
	locationSvc := usecases.NewLocationService(geocoder, limiter, proximity, popularRepo, publisher)

	deps := &http.Dependencies{
		Locations:      locationSvc,
		NATS:           natsConn,
		DB:             db,
		Cache:          cache,
		DefaultCountry: cfg.Geocoder.CountryCodeDef,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "GearShare Location API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.gearshare.app",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
