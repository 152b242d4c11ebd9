// Command analytics starts the standalone usage analytics service.
//
// It consumes usage events from Kafka, aggregates them in memory (request
// totals, cache hit rate, compute latency percentiles, top structures), saves
// periodic snapshots to PostgreSQL, and exposes an HTTP API at
// GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sjando/jolecule/internal/analytics"
	"github.com/sjando/jolecule/internal/analytics/aggregator"
	"github.com/sjando/jolecule/pkg/config"
	"github.com/sjando/jolecule/pkg/health"
	"github.com/sjando/jolecule/pkg/kafka"
	"github.com/sjando/jolecule/pkg/logger"
	"github.com/sjando/jolecule/pkg/middleware"
	"github.com/sjando/jolecule/pkg/postgres"
	"github.com/sjando/jolecule/pkg/resilience"
)

const snapshotInterval = 5 * time.Minute

// main boots the analytics service: it creates a Kafka consumer for usage
// events, starts the in-memory aggregator and the periodic snapshot writer,
// registers a health checker, and serves the HTTP API. Graceful shutdown is
// triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Kafka consumer for usage events.
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents, nil)
	agg := analytics.NewAggregator(consumer)

	// Re-create consumer with the actual handler now that the aggregator exists.
	consumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents, analytics.HandleEvent(agg))
	agg = analytics.NewAggregator(consumer)

	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("usage aggregator started", "topic", cfg.Kafka.Topics.UsageEvents)

	// PostgreSQL keeps periodic stat snapshots so dashboards survive restarts.
	var db *postgres.Client
	if err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
	}, func() error {
		var connErr error
		db, connErr = postgres.New(cfg.Postgres)
		return connErr
	}); err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	snapshots := aggregator.NewStore(db)
	snapshots.StartPeriodicSave(ctx, agg, snapshotInterval)

	// HTTP API.
	analyticsHandler := analytics.NewHandler(agg, snapshots)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
