package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
)

func benchExecutor(b *testing.B, numDocs int, text string) (*Executor, []string) {
	b.Helper()
	cfg := highlightConfig()
	store := index.NewMemoryIndex()
	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Mappings))
	ids := make([]string, numDocs)
	for i := range ids {
		ids[i] = fmt.Sprintf("doc-%d", i)
		doc := &index.Document{ID: ids[i], Fields: map[string][]string{"content": {text}}}
		if err := store.Put(context.Background(), analyzer.Analyze(doc)); err != nil {
			b.Fatal(err)
		}
	}
	return New(store, cache.New(nil, config.RedisConfig{}, nil), cfg, nil, nil), ids
}

func BenchmarkExecuteDocuments(b *testing.B) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog while the cat sleeps. ", 30)
	q := &query.BooleanQuery{Should: []query.Query{
		&query.PhraseQuery{Field: "content", Terms: []string{"quick", "brown"}},
		&query.TermQuery{Field: "content", Text: "cat"},
	}}
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			exec, ids := benchExecutor(b, n, text)
			req := &Request{Query: q, DocIDs: ids}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Execute(context.Background(), req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecuteFieldLength(b *testing.B) {
	for _, repeat := range []int{1, 10, 100} {
		text := strings.Repeat("distributed highlighting of term vectors with offsets. ", repeat)
		b.Run(fmt.Sprintf("sentences_%d", repeat), func(b *testing.B) {
			exec, ids := benchExecutor(b, 1, text)
			req := &Request{Query: &query.TermQuery{Field: "content", Text: "vector"}, DocIDs: ids}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Execute(context.Background(), req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
