package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/tracing"
)

const maxBodyBytes = 1 << 20

type Highlighter interface {
	Execute(ctx context.Context, req *executor.Request) (*executor.Response, error)
}

type Handler struct {
	executor      Highlighter
	cache         *cache.FieldQueryCache
	tracer        *tracing.Tracer
	defaultFields []string
	logger        *slog.Logger
}

// New creates a Handler. defaultFields are searched by the plain q syntax
// when the request names no fields. qc and tracer may be nil.
func New(exec Highlighter, qc *cache.FieldQueryCache, tracer *tracing.Tracer, defaultFields []string) *Handler {
	return &Handler{
		executor:      exec,
		cache:         qc,
		tracer:        tracer,
		defaultFields: defaultFields,
		logger:        slog.Default().With("component", "highlight-handler"),
	}
}

// highlightRequest carries either a DSL query or a plain q string.
type highlightRequest struct {
	Query  json.RawMessage         `json:"query"`
	Q      string                  `json:"q"`
	DocIDs []string                `json:"doc_ids"`
	Fields []executor.FieldRequest `json:"fields"`
}

func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	requestID, _ := logger.RequestIDFromContext(ctx)
	ctx, span := h.tracer.Start(ctx, "POST /api/v1/highlight", requestID)
	defer h.tracer.Finish(span)

	var body highlightRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	q, err := h.parseQuery(body)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if len(body.DocIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "doc_ids is required")
		return
	}

	resp, err := h.executor.Execute(ctx, &executor.Request{Query: q, DocIDs: body.DocIDs, Fields: body.Fields})
	if err != nil {
		log.Error("highlight failed", "query", q.String(), "error", err)
		h.writeAppError(w, err)
		return
	}
	span.SetAttr("hits", len(resp.Hits))
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) parseQuery(body highlightRequest) (query.Query, error) {
	switch {
	case len(body.Query) > 0 && body.Q != "":
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "use either query or q, not both")
	case len(body.Query) > 0:
		return parser.Parse(body.Query)
	case body.Q != "":
		fields := h.defaultFields
		if len(body.Fields) > 0 {
			fields = make([]string, 0, len(body.Fields))
			for _, f := range body.Fields {
				fields = append(fields, f.Name)
			}
		}
		return parser.ParseSimple(body.Q, fields), nil
	default:
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query or q is required")
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":    stats,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{
		"error": err.Error(),
		"kind":  apperrors.Kind(err),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
