package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/akostadinov/chunchun/internal/services"
	"github.com/akostadinov/chunchun/types"
	"github.com/go-chi/chi/v5"
)

const maxGeneratedPosts = 1000

// PostHandler writes and lists the posts of the session user.
type PostHandler struct {
	social *services.SocialService
}

func NewPostHandler(social *services.SocialService) *PostHandler {
	return &PostHandler{social: social}
}

// PostRouter registers post routes. All of them need a session.
func PostRouter(r chi.Router, social *services.SocialService, sessions *services.SessionManager) {
	handler := NewPostHandler(social)

	r.Use(RequireSession(sessions))
	r.Post("/", handler.CreatePosts)
	r.Get("/mine", handler.MyPosts)
	r.Delete("/mine/{timestamp}", handler.DeletePost)
}

type CreatePostRequest struct {
	Message string `json:"message"`
}

type PostsResponse struct {
	Posts []types.Post `json:"posts"`
}

// CreatePosts writes either num generated posts (?num=) or the single
// message in the JSON body.
func (h *PostHandler) CreatePosts(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if strings.TrimSpace(r.URL.Query().Get("num")) != "" {
		num, err := parsePositive(r, "num", 1, maxGeneratedPosts)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		posts, err := h.social.NewPosts(r.Context(), sess.Username, num)
		if err != nil {
			writeServiceError(w, r, err, "failed to create posts")
			return
		}
		writeJSON(w, http.StatusCreated, PostsResponse{Posts: posts})
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	post, err := h.social.Post(r.Context(), sess.Username, req.Message)
	if err != nil {
		writeServiceError(w, r, err, "failed to create post")
		return
	}
	writeJSON(w, http.StatusCreated, PostsResponse{Posts: []types.Post{post}})
}

func (h *PostHandler) MyPosts(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	posts, err := h.social.UserPosts(r.Context(), sess.Username)
	if err != nil {
		writeServiceError(w, r, err, "failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ts, err := strconv.ParseInt(chi.URLParam(r, "timestamp"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp")
		return
	}
	if err := h.social.DeletePost(r.Context(), sess.Username, ts); err != nil {
		writeServiceError(w, r, err, "failed to delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
