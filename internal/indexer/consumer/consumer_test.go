package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		_ = r.Publish(ctx, e)
	}
	return nil
}

type recordingTracker struct {
	values []any
}

func (r *recordingTracker) Track(_ string, value any) { r.values = append(r.values, value) }

func newIndexer() (*Indexer, *index.MemoryIndex, *recordingPublisher, *recordingTracker) {
	store := index.NewMemoryIndex()
	analyzer := index.NewAnalyzer(map[string]index.Mapping{
		"content": {TermVector: true, Store: true},
	})
	pub := &recordingPublisher{}
	tracker := &recordingTracker{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return NewIndexer(store, analyzer, pub, tracker, m), store, pub, tracker
}

func encode(t *testing.T, e ingestion.TermVectorEvent) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return b
}

func TestHandleMessageStoresDocument(t *testing.T) {
	ix, store, pub, tracker := newIndexer()
	handle := ix.HandleMessage()

	err := handle(context.Background(), []byte("d1"), encode(t, ingestion.TermVectorEvent{
		Op:         ingestion.OpUpsert,
		DocumentID: "d1",
		Fields:     map[string][]string{"content": {"quick brown fox"}},
	}))
	require.NoError(t, err)

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	require.NotNil(t, doc.Fields["content"].Vector)

	require.Len(t, pub.events, 1)
	inv := pub.events[0].Value.(ingestion.CacheInvalidateEvent)
	assert.Equal(t, "d1", inv.DocumentID)
	assert.Equal(t, int64(1), inv.Generation)

	require.Len(t, tracker.values, 1)
	ev := tracker.values[0].(analytics.IndexEvent)
	assert.Equal(t, analytics.EventDocIndexed, ev.Type)
	assert.Equal(t, 3, ev.TermCount)
}

func TestHandleMessageDelete(t *testing.T) {
	ix, store, pub, _ := newIndexer()
	_, err := ix.Apply(context.Background(), ingestion.TermVectorEvent{
		DocumentID: "d1",
		Fields:     map[string][]string{"content": {"fox"}},
	})
	require.NoError(t, err)

	err = ix.HandleMessage()(context.Background(), nil, encode(t, ingestion.TermVectorEvent{Op: ingestion.OpDelete, DocumentID: "d1"}))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "d1")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.Len(t, pub.events, 2)
}

func TestApplyDeleteOfUnknownDocument(t *testing.T) {
	ix, _, pub, _ := newIndexer()
	_, err := ix.Apply(context.Background(), ingestion.TermVectorEvent{Op: ingestion.OpDelete, DocumentID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.Empty(t, pub.events)

	err = ix.HandleMessage()(context.Background(), nil, encode(t, ingestion.TermVectorEvent{Op: ingestion.OpDelete, DocumentID: "nope"}))
	assert.NoError(t, err)
}

func TestHandleMessageSkipsMalformed(t *testing.T) {
	ix, _, pub, _ := newIndexer()
	assert.NoError(t, ix.HandleMessage()(context.Background(), nil, []byte("{broken")))
	assert.Empty(t, pub.events)
}

func TestNilCollaborators(t *testing.T) {
	store := index.NewMemoryIndex()
	ix := NewIndexer(store, index.NewAnalyzer(nil), nil, nil, nil)
	gen, err := ix.Apply(context.Background(), ingestion.TermVectorEvent{
		DocumentID: "d1",
		Fields:     map[string][]string{"notes": {"kept as stored values"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}
