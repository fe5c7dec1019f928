package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
)

const (
	defaultTopN  = 10
	maxLatencies = 10000
)

type AggregatedStats struct {
	TotalHits       int64          `json:"total_hits"`
	HitsWithErrors  int64          `json:"hits_with_errors"`
	TotalDocIndexed int64          `json:"total_docs_indexed"`
	AvgLatencyMs    float64        `json:"avg_latency_ms"`
	P50LatencyMs    int64          `json:"p50_latency_ms"`
	P95LatencyMs    int64          `json:"p95_latency_ms"`
	P99LatencyMs    int64          `json:"p99_latency_ms"`
	TopHitWords     []WordCount    `json:"top_hitwords"`
	TopFields       []WordCount    `json:"top_fields"`
	FieldFailures   []FailureCount `json:"field_failures"`
	HitsPerMinute   float64        `json:"hits_per_minute"`
}

type WordCount struct {
	Word  string `json:"word"`
	Count int64  `json:"count"`
}

type FailureCount struct {
	Field string `json:"field"`
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

type failureKey struct {
	field, kind string
}

// Aggregator folds hitword and index events into in-memory counters.
type Aggregator struct {
	mu              sync.RWMutex
	totalHits       atomic.Int64
	hitsWithErrors  atomic.Int64
	totalDocIndexed atomic.Int64
	latencies       []int64
	wordCounts      map[string]int64
	fieldCounts     map[string]int64
	failures        map[failureKey]int64
	startTime       time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// recorded directly.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		wordCounts:  make(map[string]int64),
		fieldCounts: make(map[string]int64),
		failures:    make(map[failureKey]int64),
		startTime:   time.Now(),
		consumer:    consumer,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the consumer Start reads from. It is usually built
// with HandleEvent(a), so it cannot be passed to NewAggregator.
func (a *Aggregator) SetConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		<-ctx.Done()
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns the Kafka handler feeding agg. Undecodable messages
// are logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var env envelope
		if err := json.Unmarshal(value, &env); err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		switch env.Type {
		case EventHitwords:
			event, err := kafka.DecodeJSON[HitwordsEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode hitwords event", "error", err)
				return nil
			}
			agg.Record(event)
		case EventDocIndexed:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.RecordIndex(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

// Record folds one highlighted hit into the counters. Hit words are counted
// case-insensitively.
func (a *Aggregator) Record(event HitwordsEvent) {
	a.totalHits.Add(1)
	if len(event.FieldErrors) > 0 {
		a.hitsWithErrors.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) >= maxLatencies {
		a.latencies = a.latencies[len(a.latencies)/2:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	for _, w := range event.HitWords {
		a.wordCounts[strings.ToLower(w)]++
	}
	for _, f := range event.Fields {
		a.fieldCounts[f]++
	}
	for field, kind := range event.FieldErrors {
		a.failures[failureKey{field: field, kind: kind}]++
	}
}

func (a *Aggregator) RecordIndex(IndexEvent) {
	a.totalDocIndexed.Add(1)
}

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsN(defaultTopN)
}

// StatsN is Stats with the ranked lists capped at n entries.
func (a *Aggregator) StatsN(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalHits:       a.totalHits.Load(),
		HitsWithErrors:  a.hitsWithErrors.Load(),
		TotalDocIndexed: a.totalDocIndexed.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopHitWords = topN(a.wordCounts, n)
	stats.TopFields = topN(a.fieldCounts, n)
	stats.FieldFailures = topFailures(a.failures, n)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.HitsPerMinute = float64(stats.TotalHits) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []WordCount {
	result := make([]WordCount, 0, len(counts))
	for word, count := range counts {
		result = append(result, WordCount{Word: word, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Word < result[j].Word
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func topFailures(counts map[failureKey]int64, n int) []FailureCount {
	result := make([]FailureCount, 0, len(counts))
	for k, count := range counts {
		result = append(result, FailureCount{Field: k.field, Kind: k.kind, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		if result[i].Field != result[j].Field {
			return result[i].Field < result[j].Field
		}
		return result[i].Kind < result[j].Kind
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
