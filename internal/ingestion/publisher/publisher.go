// Package publisher hands validated documents to the indexing side, either
// through the term-vector Kafka topic or, for single-process deployments,
// straight to an in-process indexer.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
)

// Publisher queues term-vector events on Kafka. Events are keyed by
// document id so updates to one document stay ordered within a partition.
type Publisher struct {
	producer kafka.Publisher
	logger   *slog.Logger
}

func New(producer kafka.Publisher) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

func (p *Publisher) Ingest(ctx context.Context, doc *index.Document) (*ingestion.IngestResponse, error) {
	event := ingestion.TermVectorEvent{
		Op:         ingestion.OpUpsert,
		DocumentID: doc.ID,
		Language:   doc.Language,
		Fields:     doc.Fields,
		IngestedAt: time.Now().UTC(),
	}
	if err := p.publish(ctx, event); err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{DocumentID: doc.ID, Status: ingestion.StatusQueued}, nil
}

func (p *Publisher) Delete(ctx context.Context, id string) (*ingestion.IngestResponse, error) {
	event := ingestion.TermVectorEvent{
		Op:         ingestion.OpDelete,
		DocumentID: id,
		IngestedAt: time.Now().UTC(),
	}
	if err := p.publish(ctx, event); err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{DocumentID: id, Status: ingestion.StatusQueued}, nil
}

func (p *Publisher) publish(ctx context.Context, event ingestion.TermVectorEvent) error {
	if err := p.producer.Publish(ctx, kafka.Event{Key: event.DocumentID, Value: event}); err != nil {
		p.logger.Error("failed to publish term-vector event",
			"doc_id", event.DocumentID,
			"op", event.Op,
			"error", err,
		)
		return apperrors.New(apperrors.ErrInternal, 503, "indexing queue unavailable")
	}
	return nil
}

// Applier applies one event to a store and returns the resulting dictionary
// generation.
type Applier interface {
	Apply(ctx context.Context, event ingestion.TermVectorEvent) (int64, error)
}

// Direct indexes synchronously through an Applier.
type Direct struct {
	applier Applier
}

func NewDirect(applier Applier) *Direct {
	return &Direct{applier: applier}
}

func (d *Direct) Ingest(ctx context.Context, doc *index.Document) (*ingestion.IngestResponse, error) {
	gen, err := d.applier.Apply(ctx, ingestion.TermVectorEvent{
		Op:         ingestion.OpUpsert,
		DocumentID: doc.ID,
		Language:   doc.Language,
		Fields:     doc.Fields,
		IngestedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{DocumentID: doc.ID, Status: ingestion.StatusIndexed, Generation: gen}, nil
}

func (d *Direct) Delete(ctx context.Context, id string) (*ingestion.IngestResponse, error) {
	gen, err := d.applier.Apply(ctx, ingestion.TermVectorEvent{
		Op:         ingestion.OpDelete,
		DocumentID: id,
		IngestedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{DocumentID: id, Status: ingestion.StatusDeleted, Generation: gen}, nil
}
