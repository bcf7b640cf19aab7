package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"rental-quote-backend/internal/logger"
)

// RegisterRoutes mounts the quote and admin endpoints. Admin routes require
// adminToken as a bearer token when it is non-empty.
func RegisterRoutes(router *mux.Router, h *Handler, adminToken string) {
	router.Use(requestLogger)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/quotes", h.CreateQuote).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(requireToken(adminToken))
	admin.HandleFunc("/sync", h.TriggerSync).Methods(http.MethodPost)
	admin.HandleFunc("/sync/status", h.SyncStatus).Methods(http.MethodGet)
	admin.HandleFunc("/cache/stats", h.CacheStats).Methods(http.MethodGet)
	admin.HandleFunc("/cache/catalog", h.ClearCatalogCache).Methods(http.MethodDelete)
	admin.HandleFunc("/cache/locations", h.ClearLocationCache).Methods(http.MethodDelete)
	admin.HandleFunc("/cache/keys/{key:.+}", h.ClearCacheKey).Methods(http.MethodDelete)
}

// requireToken checks the Authorization header against token.
func requireToken(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided"})
				return
			}
			// Remove Bearer prefix if present
			provided := strings.TrimPrefix(header, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
