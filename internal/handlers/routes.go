package handlers

import (
	"github.com/akostadinov/chunchun/internal/services"
	"github.com/go-chi/chi/v5"
)

// Routes registers the whole command surface on r.
func Routes(r chi.Router, social *services.SocialService, sessions *services.SessionManager, stats *services.StatsService) {
	r.Get("/healthz", Healthz)
	r.Route("/sessions", func(r chi.Router) {
		SessionRouter(r, sessions)
	})
	r.Route("/feed", func(r chi.Router) {
		FeedRouter(r, sessions)
	})
	r.Route("/posts", func(r chi.Router) {
		PostRouter(r, social, sessions)
	})
	r.Route("/users", func(r chi.Router) {
		UserRouter(r, social, sessions)
	})
	r.Group(func(r chi.Router) {
		WatchRouter(r, social, sessions)
	})
	r.Route("/stats", func(r chi.Router) {
		StatsRouter(r, stats)
	})
}
