// The trends worker consumes recorded search events from JetStream and
// maintains the popular_locations frequency table. Running it out of band
// keeps the API's request path free of write amplification.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/gearshare/location-api/internal/adapters/nats"
	"github.com/gearshare/location-api/internal/adapters/postgres"
	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/pkg/config"
	"github.com/gearshare/location-api/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("gearshare-location-trends")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	popular := postgres.NewPopularLocationRepo(db)

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeSearchEvents(ctx, func(ctx context.Context, ev *domain.SearchEvent) error {
		if err := popular.RecordSearch(ctx, ev); err != nil {
			slog.Error("record search failed", "query", ev.Query, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("trends worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("trends worker stopping")
}
