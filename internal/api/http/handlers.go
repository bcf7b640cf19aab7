package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/service"
)

const maxQuoteBody = 1 << 20

// SchedulerStatus reports whether the background jobs are scheduled.
type SchedulerStatus interface {
	IsRunning() bool
}

// Handler adapts the services to JSON over HTTP. It holds no logic of its own.
type Handler struct {
	quotes    service.QuoteService
	sync      service.SyncService
	cache     service.CacheAdminService
	scheduler SchedulerStatus
}

// NewHandler builds the handler. scheduler may be nil when no jobs run in
// this process.
func NewHandler(quotes service.QuoteService, sync service.SyncService, cache service.CacheAdminService, scheduler SchedulerStatus) *Handler {
	return &Handler{quotes: quotes, sync: sync, cache: cache, scheduler: scheduler}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.Is(err, domain.ErrCatalogUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: domain.ErrCatalogUnavailable.Error()})
	case errors.Is(err, domain.ErrSyncAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// CreateQuote handles POST /api/v1/quotes
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuoteBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	quote, err := h.quotes.ComputeQuote(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// TriggerSync handles POST /api/v1/admin/sync. A trigger that overlaps a
// running sync gets 409 with the duplicate result.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.TriggerSync(r.Context())
	if errors.Is(err, domain.ErrSyncAlreadyRunning) {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SyncStatus handles GET /api/v1/admin/sync/status
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.sync.GetSyncStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// CacheStats handles GET /api/v1/admin/cache/stats
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.GetCacheStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ClearCacheKey handles DELETE /api/v1/admin/cache/keys/{key}. Location keys
// hold raw addresses, so key may contain slashes.
func (h *Handler) ClearCacheKey(w http.ResponseWriter, r *http.Request) {
	result, err := h.cache.ClearCacheKey(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearCatalogCache handles DELETE /api/v1/admin/cache/catalog?confirm=true
func (h *Handler) ClearCatalogCache(w http.ResponseWriter, r *http.Request) {
	confirm := cast.ToBool(r.URL.Query().Get("confirm"))
	result, err := h.cache.ClearCatalogCache(r.Context(), confirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearLocationCache handles DELETE /api/v1/admin/cache/locations?pattern=
func (h *Handler) ClearLocationCache(w http.ResponseWriter, r *http.Request) {
	result, err := h.cache.ClearLocationCache(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Health handles GET /healthz. It reports 503 once the job scheduler has
// stopped, since the catalog would no longer refresh.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if !h.scheduler.IsRunning() {
		logger.WarnContext(r.Context(), "Health check failed; scheduler is not running")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "scheduler": "stopped"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scheduler": "running"})
}
