package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/store"
)

// writeJSON writes a JSON response with the given status code.
// Note: If encoding fails after WriteHeader is called, there's no way to
// notify the client since the status code is already sent. The error is
// logged for debugging but doesn't affect the response.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, logger log.Logger, status int, err string, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: err, Message: message})
}

// writeStoreError maps the data layer's error taxonomy to HTTP statuses.
// Bodies stay generic: database diagnostics never reach the client.
func writeStoreError(w http.ResponseWriter, logger log.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, logger, http.StatusServiceUnavailable, "unavailable", "database unavailable")
	default:
		writeError(w, logger, http.StatusInternalServerError, "query_failed", "query failed")
	}
}
