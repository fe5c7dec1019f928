package analytics

import "time"

type EventType string

const (
	EventHitwords   EventType = "hitwords"
	EventDocIndexed EventType = "document_indexed"
)

// HitwordsEvent describes one highlighted hit.
type HitwordsEvent struct {
	Type        EventType         `json:"type"`
	DocumentID  string            `json:"document_id"`
	HitWords    []string          `json:"hitwords"`
	Fields      []string          `json:"fields"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	LatencyMs   int64             `json:"latency_ms"`
	Timestamp   time.Time         `json:"timestamp"`
	RequestID   string            `json:"request_id,omitempty"`
}

// IndexEvent describes one document stored by the indexer.
type IndexEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	FieldCount int       `json:"field_count"`
	TermCount  int       `json:"term_count"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

type envelope struct {
	Type EventType `json:"type"`
}
