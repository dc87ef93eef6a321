package api

import (
	"net/http"
	"time"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store  Store
	logger log.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st Store, logger log.Logger) *HealthHandler {
	return &HealthHandler{store: st, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /admin/db-health", h.dbHealth)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive, without touching the database.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// dbHealthResponse is the database health report. LatencyMS is the full
// round trip as observed by the handler, including pool acquisition.
type dbHealthResponse struct {
	Status    string          `json:"status"`
	LatencyMS float64         `json:"latency_ms"`
	Database  *store.DBHealth `json:"database,omitempty"`
}

// dbHealth probes database connectivity and reports headline totals.
// A failed probe is a 503 with the measured latency, not an opaque error.
func (h *HealthHandler) dbHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	health, err := h.store.DBHealth(r.Context())
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		h.logger.Error("database health check failed", "error", err, "latency_ms", latency)
		writeJSON(w, h.logger, http.StatusServiceUnavailable, dbHealthResponse{
			Status:    "unavailable",
			LatencyMS: latency,
		})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, dbHealthResponse{
		Status:    "ok",
		LatencyMS: latency,
		Database:  health,
	})
}
