package handlers

import (
	"net/http"

	"github.com/akostadinov/chunchun/internal/services"
	"github.com/akostadinov/chunchun/types"
	"github.com/go-chi/chi/v5"
)

// FeedResponse is the feed of the session user at the session limit.
type FeedResponse struct {
	Limit int                 `json:"limit"`
	Posts []types.DisplayPost `json:"posts"`
}

// FeedHandler serves the recent posts of watched users.
type FeedHandler struct {
	sessions *services.SessionManager
}

func NewFeedHandler(sessions *services.SessionManager) *FeedHandler {
	return &FeedHandler{sessions: sessions}
}

// FeedRouter registers feed routes. All of them need a session.
func FeedRouter(r chi.Router, sessions *services.SessionManager) {
	handler := NewFeedHandler(sessions)

	r.Use(RequireSession(sessions))
	r.Get("/", handler.Recent)
	r.Post("/more", handler.More)
}

// Recent returns the feed. An optional limit replaces the session limit.
func (h *FeedHandler) Recent(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, err := parsePositive(r, "limit", 0, maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.write(w, r, sess, limit)
}

// More raises the session limit by one step and returns the longer feed.
func (h *FeedHandler) More(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess.Feed().More()
	h.write(w, r, sess, 0)
}

func (h *FeedHandler) write(w http.ResponseWriter, r *http.Request, sess *services.Session, limit int) {
	posts, err := h.sessions.Recent(r.Context(), sess, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to load feed")
		return
	}
	writeJSON(w, http.StatusOK, FeedResponse{Limit: sess.Feed().Limit(), Posts: posts})
}
