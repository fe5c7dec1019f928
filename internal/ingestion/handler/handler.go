package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/logger"
)

const maxBodyBytes = 8 << 20

// Ingester accepts documents for indexing. *publisher.Publisher and
// *publisher.Direct satisfy it.
type Ingester interface {
	Ingest(ctx context.Context, doc *index.Document) (*ingestion.IngestResponse, error)
	Delete(ctx context.Context, id string) (*ingestion.IngestResponse, error)
}

type Handler struct {
	ingester Ingester
	analyzer *index.Analyzer
	logger   *slog.Logger
}

func New(ingester Ingester, analyzer *index.Analyzer) *Handler {
	return &Handler{
		ingester: ingester,
		analyzer: analyzer,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the document routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var doc index.Document
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateDocument(&doc, h.analyzer); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.ingester.Ingest(ctx, &doc)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"doc_id", doc.ID,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("document accepted",
		"doc_id", resp.DocumentID,
		"status", resp.Status,
	)
	h.writeJSON(w, statusFor(resp), resp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	resp, err := h.ingester.Delete(ctx, id)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		logger.FromContext(ctx).Error("delete failed", "doc_id", id, "error", err)
		h.writeError(w, statusCode, "delete failed")
		return
	}
	h.writeJSON(w, statusFor(resp), resp)
}

// statusFor is 202 for queued work and 200 once the store has applied it.
func statusFor(resp *ingestion.IngestResponse) int {
	if resp.Status == ingestion.StatusQueued {
		return http.StatusAccepted
	}
	return http.StatusOK
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
