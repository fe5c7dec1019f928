// Command highlighter serves POST /api/v1/highlight.
//
// Term vectors are read from the in-memory index or from PostgreSQL. With
// the memory store and Kafka enabled, every instance replays the term-vector
// topic into its own index. With Kafka disabled the service runs alone:
// documents are indexed inline through /api/v1/documents and hitword
// analytics are aggregated in memory.
//
// Usage:
//
//	go run ./cmd/highlighter [-config configs/development.yaml]
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

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/pgstore"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/tracing"
)

type trackerFunc func(analytics.HitwordsEvent)

func (f trackerFunc) Track(e analytics.HitwordsEvent) { f(e) }

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("highlighter", cfg.Logging.Level, cfg.Logging.Format)
	instance := uuid.New().String()
	slog.Info("starting highlighter service",
		"port", cfg.Server.Port,
		"store", cfg.Highlight.Store,
		"kafka", cfg.Kafka.Enabled,
		"instance", instance,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker("highlighter")
	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Highlight.Mappings))

	var (
		store index.Store
		db    *postgres.Client
	)
	switch cfg.Highlight.Store {
	case "postgres":
		pg, client, err := pgstore.Open(ctx, cfg.Postgres, m)
		if err != nil {
			slog.Error("failed to open term-vector store", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		store, db = pg, client
		checker.Register("postgres", health.PingCheck(pg.Ping, true))
		slog.Info("postgres term-vector store ready", "host", cfg.Postgres.Host)
	default:
		mem := index.NewMemoryIndex()
		store = mem
		checker.Register("memory_index", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d bytes", mem.Size())}
		})
	}

	var remote cache.Remote
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, field-query cache is local only", "error", err)
			checker.RegisterOptional("redis", health.PingCheck(func(context.Context) error { return err }, false))
		} else {
			defer redisClient.Close()
			remote = redisClient
			checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("redis field-query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache := cache.New(remote, cfg.Redis, m)

	agg := analytics.NewAggregator(nil)
	var tracker executor.Tracker = trackerFunc(agg.Record)
	var (
		ingester  ingesthandler.Ingester
		snapshots *aggregator.Store
	)

	if cfg.Kafka.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector := analytics.NewCollector(analyticsProducer, 10000, m)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		if mem, ok := store.(*index.MemoryIndex); ok {
			replay := consumer.NewIndexer(mem, analyzer, nil, nil, m)
			group := fmt.Sprintf("%s-replica-%s", cfg.Kafka.ConsumerGroup, instance)
			termVectors := kafka.NewConsumerInGroup(cfg.Kafka, cfg.Kafka.Topics.TermVectors, group, replay.HandleMessage(), kafka.FromFirstOffset())
			go func() {
				if err := consumer.New(termVectors).Start(ctx); err != nil {
					slog.Error("term-vector replica error", "error", err)
				}
			}()
			slog.Info("replicating term vectors into memory index", "topic", cfg.Kafka.Topics.TermVectors, "group", group)
		} else {
			group := fmt.Sprintf("%s-invalidate-%s", cfg.Kafka.ConsumerGroup, instance)
			invalidations := kafka.NewConsumerInGroup(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, group, invalidateCache(queryCache))
			go func() {
				if err := invalidations.Start(ctx); err != nil {
					slog.Error("cache invalidation consumer error", "error", err)
				}
			}()
			slog.Info("listening for cache invalidations", "topic", cfg.Kafka.Topics.CacheInvalidate, "group", group)
		}
	} else {
		ingester = publisher.NewDirect(consumer.NewIndexer(store, analyzer, nil, nil, m))
		if db != nil {
			if err := db.Migrate(ctx, aggregator.Schema...); err != nil {
				slog.Warn("analytics snapshots disabled", "error", err)
			} else {
				snapshots = aggregator.NewStore(db)
				snapshots.StartPeriodicSave(ctx, agg, time.Minute)
			}
		}
		slog.Info("running standalone, documents are indexed inline")
	}

	exec := executor.New(store, queryCache, cfg.Highlight, m, tracker)
	tracer := tracing.New(cfg.Tracing)
	h := handler.New(exec, queryCache, tracer, defaultFields(cfg.Highlight))

	mux := http.NewServeMux()
	var stats http.HandlerFunc
	if !cfg.Kafka.Enabled {
		stats = analytics.NewHandler(agg).Stats
	}
	h.Register(mux, stats, checker)
	if ingester != nil {
		ingesthandler.New(ingester, analyzer).Register(mux)
	}
	if snapshots != nil {
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshots.Snapshots)
	}

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimitPerMinute, time.Minute)
		limiter.StartCleanup(ctx, 5*time.Minute)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))
	chain := middleware.Chain(mux, mws...)

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

	slog.Info("highlighter service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("highlighter service stopped")
}

// invalidateCache drops cached field queries whenever the indexer announces
// a new dictionary generation.
func invalidateCache(qc *cache.FieldQueryCache) kafka.MessageHandler {
	log := slog.Default().With("component", "cache-invalidator")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.CacheInvalidateEvent](value)
		if err != nil {
			log.Error("failed to decode invalidation", "key", string(key), "error", err)
			return nil
		}
		if err := qc.Invalidate(ctx); err != nil {
			log.Warn("cache invalidation failed", "generation", event.Generation, "error", err)
			return nil
		}
		log.Debug("field-query cache invalidated", "doc_id", event.DocumentID, "generation", event.Generation)
		return nil
	}
}

// defaultFields are the fields the plain q syntax searches.
func defaultFields(cfg config.HighlightConfig) []string {
	fields := make([]string, 0, len(cfg.HighlightableFields))
	for _, f := range cfg.HighlightableFields {
		if m, ok := cfg.Mappings[f]; ok && m.TermVector {
			fields = append(fields, f)
		}
	}
	return fields
}
