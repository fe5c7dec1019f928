// Command ingestion starts the document ingestion HTTP service.
//
// The service accepts documents via POST /api/v1/documents and deletions via
// DELETE /api/v1/documents/{id}, validates them against the field mappings,
// and publishes term-vector events to Kafka for the indexer and the
// memory-store highlighters.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("ingestion", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TermVectors)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.TermVectors)

	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Highlight.Mappings))
	h := handler.New(publisher.New(producer), analyzer)
	checker := health.NewChecker("ingestion")

	m := metrics.New()
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimitPerMinute, time.Minute)
		limiter.StartCleanup(ctx, 5*time.Minute)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
