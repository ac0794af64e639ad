package handlers

import (
	"net/http"

	"github.com/akostadinov/chunchun/internal/services"
	"github.com/go-chi/chi/v5"
)

// SessionHandler logs demo accounts in and out.
type SessionHandler struct {
	sessions *services.SessionManager
}

func NewSessionHandler(sessions *services.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SessionRouter registers session routes on the given router.
func SessionRouter(r chi.Router, sessions *services.SessionManager) {
	handler := NewSessionHandler(sessions)

	r.Post("/", handler.Login)
	r.With(RequireSession(sessions)).Delete("/current", handler.Logout)
}

// Login takes the next free demo account.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Login(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to open session")
		return
	}
	w.Header().Set(SessionHeader, sess.ID)
	writeJSON(w, http.StatusCreated, sess)
}

// Logout closes the current session and frees its account.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.sessions.Logout(sess.ID); err != nil {
		writeServiceError(w, r, err, "failed to close session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
