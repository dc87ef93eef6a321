package api

import (
	"net/http"

	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/store"
)

// UserHandler handles user listing and detail endpoints.
type UserHandler struct {
	store  Store
	logger log.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(st Store, logger log.Logger) *UserHandler {
	return &UserHandler{store: st, logger: logger}
}

// RegisterRoutes registers user routes on the given mux.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/users", h.list)
	mux.HandleFunc("GET /admin/users/{id}", h.get)
}

type userListResponse struct {
	Users  []store.UserRow `json:"users"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// list returns one page of users, optionally narrowed by a search term
// matched against display name, email, and external id.
func (h *UserHandler) list(w http.ResponseWriter, r *http.Request) {
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

	filter := store.UserFilter{Search: queryString(q, "search")}

	page, err := h.store.ListUsers(r.Context(), filter, limit, offset)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, userListResponse{
		Users:  page.Items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// get returns one user with aggregates and a page of their conversations.
// conversations_limit and conversations_offset page the embedded list.
func (h *UserHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	q := r.URL.Query()
	convLimit, err := queryInt(q, "conversations_limit", 0)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	convOffset, err := queryInt(q, "conversations_offset", 0)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	detail, err := h.store.GetUser(r.Context(), id, convLimit, convOffset)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, detail)
}
