package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/akostadinov/chunchun/internal/services"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves public user pages and the watch-list of the session
// user.
type UserHandler struct {
	social   *services.SocialService
	sessions *services.SessionManager
}

func NewUserHandler(social *services.SocialService, sessions *services.SessionManager) *UserHandler {
	return &UserHandler{social: social, sessions: sessions}
}

// UserRouter registers the public /users routes.
func UserRouter(r chi.Router, social *services.SocialService, sessions *services.SessionManager) {
	handler := NewUserHandler(social, sessions)

	r.Route("/{username}", func(r chi.Router) {
		r.Get("/", handler.Profile)
		r.Get("/posts", handler.Posts)
		r.Get("/avatar", handler.Avatar)
	})
}

// WatchRouter registers the session routes for watching and watchers.
func WatchRouter(r chi.Router, social *services.SocialService, sessions *services.SessionManager) {
	handler := NewUserHandler(social, sessions)

	r.Use(RequireSession(sessions))
	r.Get("/watching", handler.Watching)
	r.Get("/watchers", handler.Watchers)
	r.Put("/watching/{username}", handler.Watch)
	r.Delete("/watching/{username}", handler.Unwatch)
}

type WatchResponse struct {
	Watcher string `json:"watcher"`
	Target  string `json:"target"`
	Changed bool   `json:"changed"`
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.social.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) Posts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.social.UserPosts(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, r, err, "failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.social.Avatar(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, r, err, "failed to load avatar")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *UserHandler) Watching(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	profiles, err := h.social.Watching(r.Context(), sess.Username)
	if err != nil {
		writeServiceError(w, r, err, "failed to list watched users")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *UserHandler) Watchers(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	profiles, err := h.social.Watchers(r.Context(), sess.Username)
	if err != nil {
		writeServiceError(w, r, err, "failed to list watchers")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *UserHandler) Watch(w http.ResponseWriter, r *http.Request) {
	h.changeWatch(w, r, h.sessions.Watch)
}

func (h *UserHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	h.changeWatch(w, r, h.sessions.Unwatch)
}

func (h *UserHandler) changeWatch(w http.ResponseWriter, r *http.Request,
	change func(ctx context.Context, sess *services.Session, target string) (bool, error),
) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	target := chi.URLParam(r, "username")
	changed, err := change(r.Context(), sess, target)
	if err != nil {
		writeServiceError(w, r, err, "failed to update watch-list")
		return
	}
	writeJSON(w, http.StatusOK, WatchResponse{Watcher: sess.Username, Target: target, Changed: changed})
}
