// Package ingestion defines the request/response types and Kafka event
// schemas of the document ingest pipeline that feeds the term-vector
// stores.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
)

type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// TermVectorEvent is the Kafka payload consumed by the indexer. Fields are
// raw values; analysis happens on the consuming side.
type TermVectorEvent struct {
	Op         Op                  `json:"op"`
	DocumentID string              `json:"document_id"`
	Language   string              `json:"language,omitempty"`
	Fields     map[string][]string `json:"fields,omitempty"`
	IngestedAt time.Time           `json:"ingested_at"`
}

// Document returns the event as an indexable document.
func (e TermVectorEvent) Document() *index.Document {
	return &index.Document{ID: e.DocumentID, Language: e.Language, Fields: e.Fields}
}

// CacheInvalidateEvent announces that the dictionary changed.
type CacheInvalidateEvent struct {
	DocumentID string    `json:"document_id"`
	Generation int64     `json:"generation"`
	At         time.Time `json:"at"`
}

// IngestResponse is returned to the caller once a document is accepted.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Generation int64  `json:"generation,omitempty"`
}

const (
	StatusQueued  = "QUEUED"
	StatusIndexed = "INDEXED"
	StatusDeleted = "DELETED"
)
