package api

import (
	"net/http"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/store"
)

// StatsHandler handles the dashboard reporting endpoints.
type StatsHandler struct {
	store  Store
	logger log.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(st Store, logger log.Logger) *StatsHandler {
	return &StatsHandler{store: st, logger: logger}
}

// RegisterRoutes registers reporting routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/stats", h.stats)
	mux.HandleFunc("GET /admin/activity", h.activity)
	mux.HandleFunc("GET /admin/tools", h.tools)
}

// stats returns the dashboard KPI row.
func (h *StatsHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DashboardStats(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

// activity returns the gap-filled hourly and daily message series.
func (h *StatsHandler) activity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.store.Activity(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, activity)
}

type toolsResponse struct {
	Tools []store.ToolCount `json:"tools"`
}

// tools returns the most used tools over the trailing week.
func (h *StatsHandler) tools(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit", 0)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	tools, err := h.store.TopTools(r.Context(), limit)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toolsResponse{Tools: tools})
}
