package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
)

type trackerFunc func(analytics.HitwordsEvent)

func (f trackerFunc) Track(e analytics.HitwordsEvent) { f(e) }

func highlightConfig() config.HighlightConfig {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	return cfg.Highlight
}

func setup(t *testing.T, cfg config.HighlightConfig, docs ...*index.Document) (*Executor, *index.MemoryIndex) {
	t.Helper()
	store := index.NewMemoryIndex()
	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Mappings))
	for _, d := range docs {
		require.NoError(t, store.Put(context.Background(), analyzer.Analyze(d)))
	}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return New(store, cache.New(nil, config.RedisConfig{}, m), cfg, m, nil), store
}

func foxDoc() *index.Document {
	return &index.Document{
		ID:       "d1",
		Language: "en",
		Fields: map[string][]string{
			"title":   {"Quick brown fox"},
			"content": {"The quick brown fox jumps over the lazy dog", "Dogs bark"},
			"ingress": {"A fox story"},
		},
	}
}

func TestExecuteVectorPath(t *testing.T) {
	exec, _ := setup(t, highlightConfig(), foxDoc())
	q := &query.BooleanQuery{Should: []query.Query{
		&query.TermQuery{Field: "content", Text: "fox"},
		&query.TermQuery{Field: "title", Text: "fox"},
	}}

	resp, err := exec.Execute(context.Background(), &Request{Query: q, DocIDs: []string{"d1"}})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)

	hit := resp.Hits[0]
	assert.Empty(t, hit.Error)
	assert.Empty(t, hit.FieldErrors)
	assert.Equal(t, []string{"The quick brown <B>fox</B> jumps over the lazy dog"}, hit.Highlight["content"])
	assert.Equal(t, []string{"Quick brown <B>fox</B>"}, hit.Highlight["title"])
	assert.NotContains(t, hit.Highlight, "ingress")
	assert.Equal(t, []string{"fox"}, hit.HitWords)
	assert.Equal(t, "A fox story", hit.Ingress)
	assert.Empty(t, hit.Title)
}

func TestWholeFieldJoinsValues(t *testing.T) {
	exec, _ := setup(t, highlightConfig(), foxDoc())
	zero := 0
	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.TermQuery{Field: "content", Text: "dog"},
		DocIDs: []string{"d1"},
		Fields: []FieldRequest{{Name: "content", NumberOfFragments: &zero, PreTags: []string{"<em>"}, PostTags: []string{"</em>"}}},
	})
	require.NoError(t, err)
	hit := resp.Hits[0]
	assert.Equal(t, []string{"The quick brown fox jumps over the lazy <em>dog</em> <em>Dogs</em> bark"}, hit.Highlight["content"])
	assert.Equal(t, []string{"dog", "Dogs"}, hit.HitWords)
}

func TestWholeFieldJoinsValuesWithSentenceShift(t *testing.T) {
	cfg := highlightConfig()
	cfg.ShiftSentenceBoundaries = true
	exec, _ := setup(t, cfg, foxDoc())
	zero := 0
	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.TermQuery{Field: "content", Text: "dog"},
		DocIDs: []string{"d1"},
		Fields: []FieldRequest{{Name: "content", NumberOfFragments: &zero}},
	})
	require.NoError(t, err)
	hit := resp.Hits[0]
	assert.Equal(t, []string{"The quick brown fox jumps over the lazy <B>dog</B> <B>Dogs</B> bark"}, hit.Highlight["content"])

	resp, err = exec.Execute(context.Background(), &Request{
		Query:  &query.TermQuery{Field: "content", Text: "dog"},
		DocIDs: []string{"d1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"The quick brown fox jumps over the lazy <B>dog</B>", "<B>Dogs</B> bark"},
		resp.Hits[0].Highlight["content"])
}

func TestHiddenPlainFieldStillReportsHitwords(t *testing.T) {
	cfg := highlightConfig()
	cfg.Mappings["summary"] = config.FieldMapping{Store: true}
	exec, _ := setup(t, cfg, &index.Document{
		ID:     "d5",
		Fields: map[string][]string{"summary": {"the Fox runs"}},
	})
	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.TermQuery{Field: "summary", Text: "fox"},
		DocIDs: []string{"d5"},
		Fields: []FieldRequest{{Name: "summary"}},
	})
	require.NoError(t, err)
	hit := resp.Hits[0]
	assert.Empty(t, hit.FieldErrors)
	assert.NotContains(t, hit.Highlight, "summary")
	assert.Equal(t, []string{"Fox"}, hit.HitWords)
}

func TestPlainFieldHighlightsEachValue(t *testing.T) {
	exec, _ := setup(t, highlightConfig(), &index.Document{
		ID:     "d6",
		Fields: map[string][]string{"ingress": {"A red fox", "Blue dogs bark"}},
	})
	q := &query.BooleanQuery{Should: []query.Query{
		&query.TermQuery{Field: "ingress", Text: "fox"},
		&query.TermQuery{Field: "ingress", Text: "blue"},
	}}
	resp, err := exec.Execute(context.Background(), &Request{
		Query:  q,
		DocIDs: []string{"d6"},
		Fields: []FieldRequest{{Name: "ingress"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A red <B>fox</B>", "<B>Blue</B> dogs bark"}, resp.Hits[0].Highlight["ingress"])
}

func TestRequireFieldMatchOff(t *testing.T) {
	exec, _ := setup(t, highlightConfig(), foxDoc())
	off := false
	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.TermQuery{Field: "content", Text: "fox"},
		DocIDs: []string{"d1"},
		Fields: []FieldRequest{{Name: "title", RequireFieldMatch: &off}, {Name: "ingress", RequireFieldMatch: &off}},
	})
	require.NoError(t, err)
	hit := resp.Hits[0]
	assert.Equal(t, []string{"Quick brown <B>fox</B>"}, hit.Highlight["title"])
	require.Len(t, hit.Highlight["ingress"], 1)
	assert.Contains(t, hit.Highlight["ingress"][0], "<B>fox</B>")
}

func TestFieldFailureDoesNotFailHit(t *testing.T) {
	exec, store := setup(t, highlightConfig(), foxDoc())
	broken := &index.StoredDocument{
		ID: "d2",
		Fields: map[string]*index.Field{
			"content": {
				Name:   "content",
				Values: []string{"fox"},
				Vector: &tokensource.PositionVector{Field: "content", Terms: []tokensource.TermEntry{
					{Term: "fox", Positions: []int{0}},
				}},
			},
			"title": {
				Name:   "title",
				Values: []string{"fox"},
				Vector: index.BuildVector("title", []string{"fox"}, ""),
			},
		},
	}
	require.NoError(t, store.Put(context.Background(), broken))

	q := &query.BooleanQuery{Should: []query.Query{
		&query.TermQuery{Field: "content", Text: "fox"},
		&query.TermQuery{Field: "title", Text: "fox"},
	}}
	resp, err := exec.Execute(context.Background(), &Request{Query: q, DocIDs: []string{"d2", "missing", "d1"}})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 3)

	assert.Equal(t, "d2", resp.Hits[0].DocID)
	assert.True(t, strings.HasPrefix(resp.Hits[0].FieldErrors["content"], "input:"))
	assert.Equal(t, []string{"<B>fox</B>"}, resp.Hits[0].Highlight["title"])

	assert.Equal(t, "missing", resp.Hits[1].DocID)
	assert.Contains(t, resp.Hits[1].Error, "document not found")

	assert.Equal(t, "d1", resp.Hits[2].DocID)
	assert.NotEmpty(t, resp.Hits[2].Highlight["content"])
}

func TestLanguageTitleFallback(t *testing.T) {
	exec, _ := setup(t, highlightConfig(), &index.Document{
		ID:       "d3",
		Language: "fr",
		Fields: map[string][]string{
			"title.fr": {"Le renard"},
			"content":  {"un renard rapide"},
		},
	})
	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.TermQuery{Field: "content", Text: "renard"},
		DocIDs: []string{"d3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Le renard", resp.Hits[0].Title)
}

func TestWildcardResolvedAgainstDictionary(t *testing.T) {
	exec, _ := setup(t, highlightConfig(), &index.Document{
		ID:     "d4",
		Fields: map[string][]string{"content": {"catalog of catnip for the cat"}},
	})
	zero := 0
	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.SpanWildcardQuery{Field: "content", Pattern: "cat*"},
		DocIDs: []string{"d4"},
		Fields: []FieldRequest{{Name: "content", NumberOfFragments: &zero}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"<B>catalog</B> of <B>catnip</B> for the <B>cat</B>"}, resp.Hits[0].Highlight["content"])
}

type failingDict struct {
	*index.MemoryIndex
}

func (failingDict) Expand(context.Context, string, string) ([]string, error) {
	return nil, errors.New("dictionary unavailable")
}

func TestDictionaryFailureReportedPerField(t *testing.T) {
	cfg := highlightConfig()
	store := index.NewMemoryIndex()
	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Mappings))
	require.NoError(t, store.Put(context.Background(), analyzer.Analyze(foxDoc())))
	exec := New(failingDict{store}, nil, cfg, nil, nil)

	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.MultiPhraseQuery{Field: "content", Slots: [][]string{{"qu*"}, {"brown"}}},
		DocIDs: []string{"d1"},
		Fields: []FieldRequest{{Name: "content"}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Hits[0].FieldErrors["content"], "index_read:"))
}

func TestInvalidRequests(t *testing.T) {
	exec, _ := setup(t, highlightConfig())
	_, err := exec.Execute(context.Background(), &Request{DocIDs: []string{"d1"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	neg := -1
	_, err = exec.Execute(context.Background(), &Request{
		Query:  &query.MatchAllQuery{},
		Fields: []FieldRequest{{Name: "content", FragmentSize: &neg}},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = exec.Execute(context.Background(), &Request{
		Query:  &query.MatchAllQuery{},
		Fields: []FieldRequest{{Name: "content", Encoder: "markdown"}},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type slowStore struct {
	*index.MemoryIndex
}

func (s slowStore) Get(ctx context.Context, id string) (*index.StoredDocument, error) {
	if id == "slow" {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.MemoryIndex.Get(ctx, id)
}

func TestHitTimeout(t *testing.T) {
	cfg := highlightConfig()
	cfg.HitTimeout = 20 * time.Millisecond
	store := index.NewMemoryIndex()
	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Mappings))
	require.NoError(t, store.Put(context.Background(), analyzer.Analyze(foxDoc())))

	var mu sync.Mutex
	var tracked []string
	exec := New(slowStore{store}, nil, cfg, nil, trackerFunc(func(e analytics.HitwordsEvent) {
		mu.Lock()
		tracked = append(tracked, e.DocumentID)
		mu.Unlock()
	}))

	resp, err := exec.Execute(context.Background(), &Request{
		Query:  &query.TermQuery{Field: "content", Text: "fox"},
		DocIDs: []string{"slow", "d1"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Hits[0].Error, "timed out")
	assert.NotEmpty(t, resp.Hits[1].Highlight["content"])
	assert.Equal(t, []string{"d1"}, tracked)
}

func TestFlattenedQueryIsShared(t *testing.T) {
	cfg := highlightConfig()
	store := index.NewMemoryIndex()
	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Mappings))
	doc := foxDoc()
	require.NoError(t, store.Put(context.Background(), analyzer.Analyze(doc)))
	doc.ID = "d2"
	require.NoError(t, store.Put(context.Background(), analyzer.Analyze(doc)))

	qc := cache.New(nil, config.RedisConfig{}, nil)
	exec := New(store, qc, cfg, nil, nil)
	req := &Request{Query: &query.TermQuery{Field: "content", Text: "fox"}, DocIDs: []string{"d1", "d2"}}

	_, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), req)
	require.NoError(t, err)

	stats := qc.Stats()
	assert.Equal(t, int64(1), stats.Builds)
	assert.GreaterOrEqual(t, stats.Hits, int64(1))
}
