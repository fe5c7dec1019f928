// Package executor runs the highlight phase for a page of hits: it flattens
// the query once, then highlights every hit concurrently, each in its own
// pass.
package executor

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/fraglist"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/fragments"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/phrase"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/tracing"
)

const maxDocsPerRequest = 1000

// FieldRequest overrides the configured defaults for one field. Nil
// pointers and empty strings keep the default.
type FieldRequest struct {
	Name              string   `json:"name"`
	NumberOfFragments *int     `json:"number_of_fragments,omitempty"`
	FragmentSize      *int     `json:"fragment_size,omitempty"`
	PreTags           []string `json:"pre_tags,omitempty"`
	PostTags          []string `json:"post_tags,omitempty"`
	RequireFieldMatch *bool    `json:"require_field_match,omitempty"`
	Encoder           string   `json:"encoder,omitempty"`
	ScoreOrdered      bool     `json:"score_ordered,omitempty"`
	FragList          string   `json:"frag_list,omitempty"`
}

// Request asks for highlights of DocIDs against Query. An empty Fields list
// highlights every mapped field.
type Request struct {
	Query  query.Query
	DocIDs []string
	Fields []FieldRequest
}

// Hit is the highlight result of one document. Error is set when the whole
// hit failed; FieldErrors when single fields did.
type Hit struct {
	DocID       string              `json:"doc_id"`
	Highlight   map[string][]string `json:"highlight,omitempty"`
	HitWords    []string            `json:"hitwords,omitempty"`
	Ingress     string              `json:"ingress,omitempty"`
	Title       string              `json:"title,omitempty"`
	FieldErrors map[string]string   `json:"field_errors,omitempty"`
	Error       string              `json:"error,omitempty"`
}

type Response struct {
	Hits   []Hit `json:"hits"`
	TookMs int64 `json:"took_ms"`
}

// Tracker receives one event per highlighted hit. *analytics.Collector
// satisfies it.
type Tracker interface {
	Track(event analytics.HitwordsEvent)
}

type Executor struct {
	store    index.Store
	analyzer *index.Analyzer
	cache    *cache.FieldQueryCache
	cfg      config.HighlightConfig
	metrics  *metrics.Metrics
	tracker  Tracker
	logger   *slog.Logger
}

// New creates an Executor. m and tracker may be nil.
func New(store index.Store, fqCache *cache.FieldQueryCache, cfg config.HighlightConfig, m *metrics.Metrics, tracker Tracker) *Executor {
	if fqCache == nil {
		fqCache = cache.New(nil, config.RedisConfig{}, m)
	}
	return &Executor{
		store:    store,
		analyzer: index.NewAnalyzer(index.MappingsFromConfig(cfg.Mappings)),
		cache:    fqCache,
		cfg:      cfg,
		metrics:  m,
		tracker:  tracker,
		logger:   slog.Default().With("component", "highlight-executor"),
	}
}

// Execute highlights every requested hit. Hits come back in request order.
// Per-hit and per-field failures are reported inside the response; only
// invalid requests and an unreadable dictionary fail the call.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	if req == nil || req.Query == nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query is required")
	}
	if len(req.DocIDs) > maxDocsPerRequest {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "at most %d doc_ids per request", maxDocsPerRequest)
	}
	fields, err := e.fieldOptions(req.Fields)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartChildSpan(ctx, "highlight.execute")
	defer span.End()
	span.SetAttr("hits", len(req.DocIDs))

	generation, err := e.store.Generation(ctx)
	if err != nil {
		e.observeRequest("error", start)
		return nil, apperrors.IndexRead(err, "reading dictionary generation")
	}
	src := &querySource{ctx: ctx, query: req.Query, key: req.Query.String(), generation: generation, exec: e}

	hits := make([]Hit, len(req.DocIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrentHits())
	for i, id := range req.DocIDs {
		g.Go(func() error {
			hits[i] = e.highlightHit(gctx, id, fields, src)
			return nil
		})
	}
	_ = g.Wait()

	result := "ok"
	for _, h := range hits {
		if h.Error != "" || len(h.FieldErrors) > 0 {
			result = "partial"
			break
		}
	}
	e.observeRequest(result, start)
	logger.FromContext(ctx).Info("highlight completed",
		"hits", len(hits),
		"generation", generation,
		"result", result,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return &Response{Hits: hits, TookMs: time.Since(start).Milliseconds()}, nil
}

func (e *Executor) observeRequest(result string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.HighlightRequests.WithLabelValues(result).Inc()
	e.metrics.HighlightLatency.Observe(time.Since(start).Seconds())
}

func (e *Executor) maxConcurrentHits() int {
	if e.cfg.MaxConcurrentHits > 0 {
		return e.cfg.MaxConcurrentHits
	}
	return 1
}

// highlightHit runs one pass under the per-hit timeout. A timed-out pass is
// abandoned; its partial result is never read.
func (e *Executor) highlightHit(ctx context.Context, id string, fields []fieldOptions, src *querySource) Hit {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "highlight.hit")
	defer span.End()
	span.SetAttr("doc_id", id)

	var hit Hit
	err := resilience.WithTimeout(ctx, e.cfg.HitTimeout, "highlighting "+id, func(ctx context.Context) error {
		h, err := e.runPass(ctx, id, fields, src)
		if err != nil {
			return err
		}
		hit = h
		return nil
	})
	if e.metrics != nil {
		e.metrics.HitsHighlighted.Inc()
	}
	if err != nil {
		logger.FromContext(ctx).Warn("hit not highlighted", "doc_id", id, "kind", apperrors.Kind(err), "error", err)
		span.SetAttr("error", err.Error())
		return Hit{DocID: id, Error: err.Error()}
	}
	e.track(ctx, hit, time.Since(start))
	return hit
}

func (e *Executor) track(ctx context.Context, hit Hit, took time.Duration) {
	if e.tracker == nil {
		return
	}
	fields := make([]string, 0, len(hit.Highlight))
	for name := range hit.Highlight {
		fields = append(fields, name)
	}
	slices.Sort(fields)
	event := analytics.HitwordsEvent{
		Type:       analytics.EventHitwords,
		DocumentID: hit.DocID,
		HitWords:   hit.HitWords,
		Fields:     fields,
		LatencyMs:  took.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if len(hit.FieldErrors) > 0 {
		event.FieldErrors = make(map[string]string, len(hit.FieldErrors))
		for name, msg := range hit.FieldErrors {
			event.FieldErrors[name] = kindOf(msg)
		}
	}
	if id, ok := logger.RequestIDFromContext(ctx); ok {
		event.RequestID = id
	}
	e.tracker.Track(event)
}

func (e *Executor) runPass(ctx context.Context, id string, fields []fieldOptions, src *querySource) (Hit, error) {
	doc, err := e.store.Get(ctx, id)
	if err != nil {
		return Hit{}, err
	}
	p := newPass(doc)
	for _, fo := range fields {
		if err := ctx.Err(); err != nil {
			return Hit{}, err
		}
		field, ok := doc.Fields[fo.name]
		if !ok {
			continue
		}
		mapping, ok := e.analyzer.Mapping(fo.name)
		if !ok {
			continue
		}
		frags, path, err := e.highlightField(ctx, p, src, fo, field, mapping)
		if err != nil {
			e.fieldFailed(ctx, p, fo.name, err)
			continue
		}
		if len(frags) == 0 {
			continue
		}
		p.highlight[fo.name] = frags
		if e.metrics != nil {
			e.metrics.FieldsHighlighted.WithLabelValues(path).Inc()
			e.metrics.FragmentsPerField.Observe(float64(len(frags)))
		}
	}

	hit := Hit{DocID: doc.ID, Title: titleOf(doc)}
	if len(p.highlight) > 0 {
		hit.Highlight = p.highlight
	}
	hit.HitWords = p.hitwords.Values()
	ingress, err := e.ingress(doc)
	if err != nil {
		e.fieldFailed(ctx, p, e.cfg.IngressField, err)
	}
	hit.Ingress = ingress
	if len(p.fieldErrors) > 0 {
		hit.FieldErrors = p.fieldErrors
	}
	return hit, nil
}

func (e *Executor) fieldFailed(ctx context.Context, p *pass, field string, err error) {
	kind := apperrors.Kind(err)
	logger.FromContext(ctx).Warn("field not highlighted",
		"doc_id", p.doc.ID,
		"field", field,
		"kind", kind,
		"error", err,
	)
	if e.metrics != nil {
		e.metrics.FieldFailures.WithLabelValues(kind).Inc()
	}
	p.fieldErrors[field] = kind + ": " + err.Error()
}

// highlightField returns the fragments of one field and the path that
// produced them.
func (e *Executor) highlightField(ctx context.Context, p *pass, src *querySource, fo fieldOptions, field *index.Field, m index.Mapping) ([]string, string, error) {
	set, err := p.termSet(ctx, src, fo.requireFieldMatch)
	if err != nil {
		return nil, "", err
	}
	terms := set.ForField(field.Name)
	if len(terms) == 0 {
		return nil, "", nil
	}

	f := p.formatter(field.Name, fo.preTag, fo.postTag)
	r := fragments.NewRenderer(fragments.Options{
		NumberOfFragments: fo.numberOfFragments,
		FragmentSize:      fo.fragmentSize,
		ScoreOrdered:      fo.scoreOrdered,
		Encoder:           fo.encoder,
	}, f)

	if m.TermVector && field.Vector != nil {
		frags, err := e.vectorPath(ctx, r, fo, field, terms)
		if err != nil {
			return nil, "", err
		}
		if len(frags) > 0 {
			p.hitwords.Merge(f.Record())
		}
		return frags, "vector", nil
	}

	if len(field.Values) == 0 {
		return nil, "", nil
	}
	frags := r.Plain(field.Values, phrase.NewMatcher(terms, nil))
	if len(frags) > 0 {
		p.hitwords.Merge(f.Record())
	}
	// Terms of any matching field count as hitwords; only the highlightable
	// ones are returned.
	if !e.highlightable(field.Name) {
		return nil, "plain", nil
	}
	return frags, "plain", nil
}

func (e *Executor) vectorPath(ctx context.Context, r *fragments.Renderer, fo fieldOptions, field *index.Field, terms []query.FlatTerm) ([]string, error) {
	shift := e.cfg.ShiftSentenceBoundaries
	tokens, err := tokensource.Reconstruct(field.Vector, shift)
	if err != nil {
		return nil, err
	}
	stats, err := e.collectionStats(ctx, field.Name, terms)
	if err != nil {
		return nil, err
	}
	matches := phrase.NewMatcher(terms, stats).Match(tokens)
	if len(matches) == 0 {
		return nil, nil
	}
	source := fragments.Joined(field.Values, index.ValueSeparator(shift))
	if fo.numberOfFragments == 0 {
		return []string{r.Whole(matches, tokens, source)}, nil
	}
	list := fraglist.ForPolicy(fo.fragList).Build(matches, fo.fragmentSize)
	return r.Render(list, tokens, source), nil
}

func (e *Executor) collectionStats(ctx context.Context, field string, terms []query.FlatTerm) (*phrase.Stats, error) {
	if !e.cfg.UseCollectionStats {
		return nil, nil
	}
	texts := make([]string, 0, len(terms))
	for _, t := range terms {
		texts = append(texts, t.Text)
	}
	df, err := e.store.DocFreq(ctx, field, texts)
	if err != nil {
		return nil, err
	}
	n, err := e.store.DocCount(ctx)
	if err != nil {
		return nil, err
	}
	return &phrase.Stats{TotalDocs: n, DocFreq: df}, nil
}

// highlightable reports whether a plain-path field may be returned.
func (e *Executor) highlightable(name string) bool {
	for _, h := range e.cfg.HighlightableFields {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}

// ingress reads the snippet sub-field back as plain text.
func (e *Executor) ingress(doc *index.StoredDocument) (string, error) {
	field, ok := doc.Fields[e.cfg.IngressField]
	if !ok || field.Vector == nil {
		return "", nil
	}
	tokens, err := tokensource.Reconstruct(field.Vector, false)
	if err != nil {
		return "", err
	}
	return tokensource.Excerpt(tokens), nil
}

// titleOf falls back to the language-specific title when the document has
// no plain title field.
func titleOf(doc *index.StoredDocument) string {
	if _, ok := doc.Fields["title"]; ok || doc.Language == "" {
		return ""
	}
	f, ok := doc.Fields["title."+doc.Language]
	if !ok {
		return ""
	}
	return strings.Join(f.Values, " ")
}

func kindOf(fieldError string) string {
	kind, _, _ := strings.Cut(fieldError, ":")
	return kind
}

// querySource resolves the request query at most once and shares the
// flattened term sets through the cache. Resolution uses the request
// context so one hit's timeout cannot fail the others.
type querySource struct {
	ctx        context.Context
	query      query.Query
	key        string
	generation int64
	exec       *Executor

	once     sync.Once
	resolved query.Query
	err      error
}

func (s *querySource) resolve() (query.Query, error) {
	s.once.Do(func() {
		s.resolved, s.err = query.Resolve(s.ctx, s.query, s.exec.store)
	})
	return s.resolved, s.err
}

func (s *querySource) termSet(fieldMatch bool) (*query.FlatTermSet, error) {
	key := cache.Key{Query: s.key, FieldMatch: fieldMatch, Generation: s.generation}
	set, _, err := s.exec.cache.GetOrBuild(s.ctx, key, func(ctx context.Context) (*query.FlatTermSet, error) {
		resolved, err := s.resolve()
		if err != nil {
			return nil, err
		}
		return query.NewFlattener(s.exec.store, fieldMatch).Flatten(ctx, resolved)
	})
	return set, err
}
