package services

import (
	"context"
	"time"

	"github.com/akostadinov/chunchun/internal/graph"
	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/store"
)

// StatsResponse is a graph report stamped with the time it was taken.
type StatsResponse struct {
	graph.Report
	GeneratedAt     time.Time `json:"generated_at"`
	MutualRatio     float64   `json:"mutual_ratio"`
	AverageWatching float64   `json:"average_watching"`
}

// StatsService measures the populated graph against the generator targets.
type StatsService struct {
	users *store.UserRepository
	cfg   graph.Config
	now   func() time.Time
}

func NewStatsService(rw kv.ReadWriter, cfg graph.Config) *StatsService {
	return &StatsService{users: store.NewUserRepository(rw), cfg: cfg, now: time.Now}
}

func (s *StatsService) Stats(ctx context.Context, detailed bool) (StatsResponse, error) {
	report, err := graph.Measure(ctx, s.users, s.cfg, detailed)
	if err != nil {
		return StatsResponse{}, err
	}
	return StatsResponse{
		Report:          report,
		GeneratedAt:     s.now().UTC(),
		MutualRatio:     report.MutualRatio(),
		AverageWatching: report.AverageWatching(),
	}, nil
}
