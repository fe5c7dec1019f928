package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/tracing"
)

func newServer(t *testing.T) (*httptest.Server, *analytics.Aggregator) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	store := index.NewMemoryIndex()
	analyzer := index.NewAnalyzer(index.MappingsFromConfig(cfg.Highlight.Mappings))
	require.NoError(t, store.Put(context.Background(), analyzer.Analyze(&index.Document{
		ID: "d1",
		Fields: map[string][]string{
			"title":   {"Quick brown fox"},
			"content": {"The quick brown fox jumps over the lazy dog"},
		},
	})))

	agg := analytics.NewAggregator(nil)
	qc := cache.New(nil, cfg.Redis, nil)
	exec := executor.New(store, qc, cfg.Highlight, nil, trackerFunc(agg.Record))
	h := New(exec, qc, tracing.New(cfg.Tracing), []string{"title", "content"})

	checker := health.NewChecker("highlighter")
	checker.Register("store", health.PingCheck(func(context.Context) error { return nil }, true))

	mux := http.NewServeMux()
	h.Register(mux, analytics.NewHandler(agg).Stats, checker)
	srv := httptest.NewServer(middleware.Chain(mux, middleware.RequestID))
	t.Cleanup(srv.Close)
	return srv, agg
}

type trackerFunc func(analytics.HitwordsEvent)

func (f trackerFunc) Track(e analytics.HitwordsEvent) { f(e) }

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHighlightDSL(t *testing.T) {
	srv, agg := newServer(t)
	resp, out := post(t, srv.URL+"/api/v1/highlight",
		`{"query": {"match": {"content": "Fox"}}, "doc_ids": ["d1"], "fields": [{"name": "content"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	hits := out["hits"].([]any)
	require.Len(t, hits, 1)
	hit := hits[0].(map[string]any)
	assert.Equal(t, "d1", hit["doc_id"])
	frags := hit["highlight"].(map[string]any)["content"].([]any)
	assert.Contains(t, frags[0], "<B>fox</B>")
	assert.Equal(t, []any{"fox"}, hit["hitwords"])
	assert.Equal(t, int64(1), agg.Stats().TotalHits)
}

func TestHighlightSimpleQuery(t *testing.T) {
	srv, _ := newServer(t)
	resp, out := post(t, srv.URL+"/api/v1/highlight", `{"q": "brown NOT cat", "doc_ids": ["d1"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hit := out["hits"].([]any)[0].(map[string]any)
	hl := hit["highlight"].(map[string]any)
	assert.Contains(t, hl, "title")
	assert.Contains(t, hl, "content")
}

func TestHighlightRejectsBadRequests(t *testing.T) {
	srv, _ := newServer(t)
	cases := map[string]string{
		"no query":      `{"doc_ids": ["d1"]}`,
		"both queries":  `{"q": "fox", "query": {"match_all": {}}, "doc_ids": ["d1"]}`,
		"bad dsl":       `{"query": {"fuzzy": {}}, "doc_ids": ["d1"]}`,
		"no docs":       `{"q": "fox"}`,
		"unknown field": `{"q": "fox", "doc_ids": ["d1"], "limit": 3}`,
		"bad encoder":   `{"q": "fox", "doc_ids": ["d1"], "fields": [{"name": "content", "encoder": "rot13"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, out := post(t, srv.URL+"/api/v1/highlight", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv, _ := newServer(t)
	post(t, srv.URL+"/api/v1/highlight", `{"q": "fox", "doc_ids": ["d1"]}`)

	resp, err := http.Get(srv.URL + "/api/v1/cache/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats struct {
		Stats cache.Stats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Stats.Builds)

	resp2, out := post(t, srv.URL+"/api/v1/cache/invalidate", ``)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "invalidated", out["status"])
}

func TestAnalyticsAndHealthRoutes(t *testing.T) {
	srv, _ := newServer(t)
	for _, path := range []string{"/api/v1/analytics/hitwords", "/health/live", "/health/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
