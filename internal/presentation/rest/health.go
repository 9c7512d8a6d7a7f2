package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bibbank/bnpl/pkg/postgres"
)

const serviceName = "bnpl-service"

// HealthHandler serves liveness and readiness checks and the metrics
// endpoint over HTTP.
type HealthHandler struct {
	db      postgres.Pinger
	metrics http.Handler
	logger  *slog.Logger
	timeout time.Duration
}

// NewHealthHandler creates the handler. metrics may be nil when metrics are
// disabled.
func NewHealthHandler(db postgres.Pinger, metrics http.Handler, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, metrics: metrics, logger: logger, timeout: 2 * time.Second}
}

// RegisterRoutes attaches the routes to the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.liveness)
	mux.HandleFunc("GET /readyz", h.readiness)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
	})
}

func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := postgres.HealthCheck(ctx, h.db); err != nil {
		h.logger.WarnContext(ctx, "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"service": serviceName,
			"reason":  "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"service": serviceName,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}
