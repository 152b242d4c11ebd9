// Command jolecule starts the structure viewer server.
//
// It serves the web pages, the per-structure loader scripts (deriving bonds
// on first request and caching the rendered artifact in PostgreSQL), and the
// view annotation API. Usage events are published to Kafka for the analytics
// service.
//
// Usage:
//
//	go run ./cmd/jolecule [-config configs/development.yaml]
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
	"github.com/sjando/jolecule/internal/analytics/collector"
	"github.com/sjando/jolecule/internal/rcsb"
	"github.com/sjando/jolecule/internal/structure"
	"github.com/sjando/jolecule/internal/structure/claim"
	"github.com/sjando/jolecule/internal/structure/store"
	"github.com/sjando/jolecule/internal/view"
	"github.com/sjando/jolecule/internal/web"
	"github.com/sjando/jolecule/pkg/config"
	"github.com/sjando/jolecule/pkg/health"
	"github.com/sjando/jolecule/pkg/kafka"
	"github.com/sjando/jolecule/pkg/logger"
	"github.com/sjando/jolecule/pkg/metrics"
	"github.com/sjando/jolecule/pkg/postgres"
	"github.com/sjando/jolecule/pkg/ratelimit"
	pkgredis "github.com/sjando/jolecule/pkg/redis"
	"github.com/sjando/jolecule/pkg/resilience"
)

// main wires the full serving stack: PostgreSQL for artifacts and views, the
// RCSB fetch client, optional Redis-backed computation claims, Kafka usage
// event collectors, and the HTTP router. Graceful shutdown is triggered by
// SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting jolecule server", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		stopMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer stopMetrics(context.Background())
	}

	// PostgreSQL holds both the artifact chunks and the saved views; the
	// server cannot run without it.
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

	// Redis only backs the duplicate-computation claims; without it every
	// concurrent cache miss computes independently.
	var redisClient *pkgredis.Client
	var claims *claim.Coordinator
	if cfg.Structure.ClaimTTL > 0 {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, duplicate-computation claims disabled", "error", err)
		} else {
			defer redisClient.Close()
			claims = claim.New(redisClient, cfg.Structure.ClaimTTL)
			slog.Info("duplicate-computation claims enabled", "ttl", cfg.Structure.ClaimTTL)
		}
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents)
	defer producer.Close()

	events := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
	events.Start(ctx)
	defer events.Close()

	viewEvents := collector.NewBatchCollector(producer, 0, cfg.Analytics.FlushInterval)
	viewEvents.Start(ctx)
	defer viewEvents.Close()
	slog.Info("usage event collectors started", "topic", cfg.Kafka.Topics.UsageEvents)

	fetcher := rcsb.New(cfg.Structure.RCSBURL, cfg.Structure.FetchTimeout, cfg.Structure.BlockSize, m)
	chunks := store.New(db, cfg.Structure.BlockSize, m)
	svc := structure.NewService(chunks, fetcher, structure.Options{
		Claims:    claims,
		ClaimWait: cfg.Structure.ClaimWait,
		Metrics:   m,
		Events:    events,
	})
	structureH := structure.NewHandler(svc)

	viewH := view.NewHandler(view.NewStore(db), viewEvents, m)

	pages, err := web.NewPages()
	if err != nil {
		slog.Error("failed to load page templates", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.Window)
	}

	router := web.Router(pages, structureH, viewH, checker, web.RouterConfig{
		Metrics:        m,
		Limiter:        limiter,
		RateLimit:      cfg.RateLimit.Limit,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
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

	slog.Info("jolecule server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("jolecule server stopped")
}
