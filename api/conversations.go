package api

import (
	"net/http"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/store"
)

// ConversationHandler handles conversation listing and detail endpoints.
type ConversationHandler struct {
	store  Store
	logger log.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(st Store, logger log.Logger) *ConversationHandler {
	return &ConversationHandler{store: st, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/conversations", h.list)
	mux.HandleFunc("GET /admin/conversations/{id}", h.get)
}

type conversationListResponse struct {
	Conversations []store.ConversationRow `json:"conversations"`
	Total         int64                   `json:"total"`
	Limit         int                     `json:"limit"`
	Offset        int                     `json:"offset"`
}

// conversationFilterFromQuery parses the shared conversation filter
// parameters: user_id, has_error, search, date_from, date_to.
func conversationFilterFromQuery(r *http.Request) (store.ConversationFilter, error) {
	q := r.URL.Query()
	var filter store.ConversationFilter
	var err error

	if filter.UserID, err = queryInt64(q, "user_id"); err != nil {
		return filter, err
	}
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

// list returns one page of conversations with owner identity and error
// aggregates, most recently active first.
func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
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
	filter, err := conversationFilterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	page, err := h.store.ListConversations(r.Context(), filter, limit, offset)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, conversationListResponse{
		Conversations: page.Items,
		Total:         page.Total,
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
}

// get returns one conversation with per-role aggregates and its complete
// message history in chronological order.
func (h *ConversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	detail, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, detail)
}
