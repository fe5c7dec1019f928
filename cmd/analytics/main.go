// Command analytics aggregates hitword and indexing events from Kafka and
// serves the totals at GET /api/v1/analytics/hitwords. When the postgres
// store is configured, a snapshot of the totals is saved every minute.
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

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("analytics", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator(nil)
	agg.SetConsumer(kafka.NewConsumerInGroup(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
		cfg.Kafka.ConsumerGroup+"-analytics", analytics.HandleEvent(agg)))
	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker("analytics")
	var snapshots *aggregator.Store
	if cfg.Highlight.Store == "postgres" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			if err := db.Migrate(ctx, aggregator.Schema...); err != nil {
				slog.Warn("snapshot schema migration failed", "error", err)
			} else {
				snapshots = aggregator.NewStore(db)
				snapshots.StartPeriodicSave(ctx, agg, time.Minute)
			}
			checker.RegisterOptional("postgres", health.PingCheck(db.Ping, false))
		}
	}

	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics/hitwords", analytics.NewHandler(agg).Stats)
	if snapshots != nil {
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshots.Snapshots)
	}
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
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
