package api

import (
	"net/http"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/store"
)

// Error feed pagination bounds. The feed is a triage view, so its pages are
// smaller than the general message list.
const (
	defaultErrorLimit = 50
	maxErrorLimit     = 200
)

// MessageHandler handles message listing and the error feed.
type MessageHandler struct {
	store  Store
	logger log.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(st Store, logger log.Logger) *MessageHandler {
	return &MessageHandler{store: st, logger: logger}
}

// RegisterRoutes registers message routes on the given mux.
func (h *MessageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/messages", h.list)
	mux.HandleFunc("GET /admin/errors", h.errorFeed)
}

type messageListResponse struct {
	Messages []store.MessageRow `json:"messages"`
	Total    int64              `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// messageFilterFromQuery parses the message filter parameters:
// conversation_id, role, has_error, search, date_from, date_to.
func messageFilterFromQuery(r *http.Request) (store.MessageFilter, error) {
	q := r.URL.Query()
	var filter store.MessageFilter
	var err error

	if filter.ConversationID, err = queryInt64(q, "conversation_id"); err != nil {
		return filter, err
	}
	filter.Role = queryString(q, "role")
	if filter.HasError, err = queryBool(q, "has_error"); err != nil {
		return filter, err
	}
	filter.Search = queryString(q, "search")
	if filter.DateFrom, err = queryDate(q, "date_from"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = queryDate(q, "date_to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// list returns one page of messages with owner identity, most recent first.
func (h *MessageHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q, "limit", 0)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	offset, err := queryInt(q, "offset", 0)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	filter, err := messageFilterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	page, err := h.store.ListMessages(r.Context(), filter, limit, offset)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, messageListResponse{
		Messages: page.Items,
		Total:    page.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
}

type errorFeedResponse struct {
	Errors []store.MessageRow `json:"errors"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// errorFeed returns one page of failed messages, most recent first. It is
// the message list with the error predicate pinned on; the other message
// filters still apply.
func (h *MessageHandler) errorFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q, "limit", defaultErrorLimit)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if limit <= 0 {
		limit = defaultErrorLimit
	}
	if limit > maxErrorLimit {
		limit = maxErrorLimit
	}
	offset, err := queryInt(q, "offset", 0)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	filter, err := messageFilterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	hasError := true
	filter.HasError = &hasError

	page, err := h.store.ListMessages(r.Context(), filter, limit, offset)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, errorFeedResponse{
		Errors: page.Items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}
