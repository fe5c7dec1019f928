// Command indexer consumes term-vector events from Kafka, analyzes each
// document and writes it to the PostgreSQL term-vector store shared by the
// highlighters. Every applied change is announced on the cache-invalidation
// topic, and one analytics event per stored document is batched to the
// analytics topic.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/pgstore"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("indexer", cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Highlight.Store != "postgres" {
		slog.Error("indexer needs the shared postgres store; memory-store highlighters replicate the topic themselves",
			"store", cfg.Highlight.Store)
		os.Exit(1)
	}
	slog.Info("starting indexer service", "topic", cfg.Kafka.Topics.TermVectors)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	store, db, err := pgstore.Open(ctx, cfg.Postgres, m)
	if err != nil {
		slog.Error("failed to open term-vector store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	invalidations := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidations.Close()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	batches := collector.NewBatchCollector(analyticsProducer, 100, 5*time.Second)
	batches.Start(ctx)
	defer batches.Close()

	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Highlight.Mappings))
	indexer := consumer.NewIndexer(store, analyzer, invalidations, batches, m)
	kafkaConsumer := kafka.NewConsumerInGroup(cfg.Kafka, cfg.Kafka.Topics.TermVectors, cfg.Kafka.ConsumerGroup,
		indexer.HandleMessage(),
		kafka.FromFirstOffset(),
		kafka.WithRetry(resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	checker := health.NewChecker("indexer")
	checker.Register("postgres", health.PingCheck(store.Ping, true))
	shutdownStatus := metrics.StartServer(cfg.Metrics.Port, func(mux *http.ServeMux) {
		mux.HandleFunc("GET /health/live", checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	})

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.TermVectors,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := shutdownStatus(shutdownCtx); err != nil {
		slog.Error("status server shutdown error", "error", err)
	}
	slog.Info("indexer service stopped")
}
