// Package consumer reads term-vector events from Kafka, analyzes the
// documents they carry and writes the result to the term-vector store.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
)

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// EventTracker receives one analytics event per stored document.
// *collector.BatchCollector satisfies it.
type EventTracker interface {
	Track(key string, value any)
}

// Indexer applies term-vector events to a store. invalidations, events and
// m may be nil.
type Indexer struct {
	store         index.Store
	analyzer      *index.Analyzer
	invalidations kafka.Publisher
	events        EventTracker
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewIndexer(store index.Store, analyzer *index.Analyzer, invalidations kafka.Publisher, events EventTracker, m *metrics.Metrics) *Indexer {
	return &Indexer{
		store:         store,
		analyzer:      analyzer,
		invalidations: invalidations,
		events:        events,
		metrics:       m,
		logger:        slog.Default().With("component", "index-consumer"),
	}
}

// Apply stores or deletes the event's document and returns the dictionary
// generation afterwards. Every successful change is announced on the
// invalidation topic.
func (ix *Indexer) Apply(ctx context.Context, event ingestion.TermVectorEvent) (int64, error) {
	start := time.Now()
	var stored *index.StoredDocument

	switch event.Op {
	case ingestion.OpDelete:
		if err := ix.store.Delete(ctx, event.DocumentID); err != nil {
			return 0, err
		}
	case ingestion.OpUpsert, "":
		stored = ix.analyzer.Analyze(event.Document())
		if err := ix.store.Put(ctx, stored); err != nil {
			return 0, fmt.Errorf("storing document %s: %w", event.DocumentID, err)
		}
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, 400, "unknown op %q", event.Op)
	}

	gen, err := ix.store.Generation(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading generation: %w", err)
	}
	ix.announce(ctx, event.DocumentID, gen)

	if stored != nil {
		if ix.metrics != nil {
			ix.metrics.DocsIndexedTotal.Inc()
		}
		if ix.events != nil {
			ix.events.Track(event.DocumentID, indexEvent(stored, time.Since(start)))
		}
	}
	ix.logger.Info("document applied",
		"doc_id", event.DocumentID,
		"op", event.Op,
		"generation", gen,
	)
	return gen, nil
}

// announce publishes the new generation. A lost announcement only delays
// eviction of cache entries keyed by the old generation.
func (ix *Indexer) announce(ctx context.Context, docID string, gen int64) {
	if ix.invalidations == nil {
		return
	}
	err := ix.invalidations.Publish(ctx, kafka.Event{
		Key: docID,
		Value: ingestion.CacheInvalidateEvent{
			DocumentID: docID,
			Generation: gen,
			At:         time.Now().UTC(),
		},
	})
	if err != nil {
		ix.logger.Warn("failed to publish cache invalidation", "doc_id", docID, "error", err)
	}
}

// HandleMessage returns a Kafka MessageHandler that applies every
// term-vector event. Undecodable messages and deletes of unknown documents
// are skipped so the partition keeps moving.
func (ix *Indexer) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.TermVectorEvent](value)
		if err != nil {
			ix.logger.Error("failed to decode term-vector event",
				"error", err,
				"key", string(key),
			)
			ix.count("malformed")
			return nil
		}

		_, err = ix.Apply(ctx, event)
		switch {
		case err == nil:
			ix.count("ok")
			return nil
		case errors.Is(err, apperrors.ErrDocumentNotFound), errors.Is(err, apperrors.ErrInvalidInput):
			ix.logger.Warn("skipping term-vector event", "doc_id", event.DocumentID, "error", err)
			ix.count("skipped")
			return nil
		default:
			ix.count("failed")
			return fmt.Errorf("applying %s for document %s: %w", event.Op, event.DocumentID, err)
		}
	}
}

func (ix *Indexer) count(status string) {
	if ix.metrics != nil {
		ix.metrics.IndexEventsTotal.WithLabelValues(status).Inc()
	}
}

func indexEvent(doc *index.StoredDocument, took time.Duration) analytics.IndexEvent {
	terms := 0
	for _, f := range doc.Fields {
		if f.Vector != nil {
			terms += len(f.Vector.Terms)
		}
	}
	return analytics.IndexEvent{
		Type:       analytics.EventDocIndexed,
		DocumentID: doc.ID,
		FieldCount: len(doc.Fields),
		TermCount:  terms,
		LatencyMs:  took.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}
