package handlers

import (
	"net/http"

	"github.com/akostadinov/chunchun/internal/services"
	"github.com/go-chi/chi/v5"
)

type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func StatsRouter(r chi.Router, stats *services.StatsService) {
	handler := NewStatsHandler(stats)

	r.Get("/", handler.Stats)
}

// Stats measures the watch graph. mode=detailed adds one line per user.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	detailed := r.URL.Query().Get("mode") == "detailed"
	resp, err := h.stats.Stats(r.Context(), detailed)
	if err != nil {
		writeServiceError(w, r, err, "failed to measure graph")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
