package handler

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/health"
)

// Register mounts the highlighter API on mux. analyticsStats and checker
// may be nil.
func (h *Handler) Register(mux *http.ServeMux, analyticsStats http.HandlerFunc, checker *health.Checker) {
	mux.HandleFunc("POST /api/v1/highlight", h.Highlight)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if analyticsStats != nil {
		mux.HandleFunc("GET /api/v1/analytics/hitwords", analyticsStats)
	}
	if checker != nil {
		mux.HandleFunc("GET /health/live", checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	}
}
