package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/types"
)

// UserGetter reads user records.
type UserGetter interface {
	Get(ctx context.Context, username string) (types.User, error)
}

// UserDetail is the per-user line of a detailed report.
type UserDetail struct {
	Username      string `json:"username"`
	Posts         int    `json:"posts"`
	Watching      int    `json:"watching"`
	MutualWatched int    `json:"mutual_watched"`
}

// Report describes how close a populated graph is to its targets.
type Report struct {
	Users               int          `json:"users"`
	Missing             int          `json:"missing"`
	AnticipatedWatches  int          `json:"anticipated_watches"`
	TargetMutualPercent int          `json:"target_mutual_percent"`
	TargetMutualX100    int64        `json:"target_mutual_x100"`
	LessWatches         int          `json:"less_watches"`
	MoreWatches         int          `json:"more_watches"`
	LessMutualWatches   int          `json:"less_mutual_watches"`
	MoreMutualWatches   int          `json:"more_mutual_watches"`
	WatchingSelf        int          `json:"watching_self"`
	Relationships       int          `json:"relationships"`
	MutualRelationships int          `json:"mutual_relationships"`
	Details             []UserDetail `json:"details,omitempty"`
}

// MutualRatio is the share of watch relationships that are reciprocated.
func (r Report) MutualRatio() float64 {
	if r.Relationships == 0 {
		return 0
	}
	return float64(r.MutualRelationships) / float64(r.Relationships)
}

// AverageWatching is the mean out-degree over the users found.
func (r Report) AverageWatching() float64 {
	found := r.Users - r.Missing
	if found == 0 {
		return 0
	}
	return float64(r.Relationships) / float64(found)
}

// Measure reads user1..userN and compares their watch-lists to the targets
// in cfg. Missing users are counted, not treated as errors.
func Measure(ctx context.Context, users UserGetter, cfg Config, detailed bool) (Report, error) {
	report := Report{
		Users:               cfg.Users,
		AnticipatedWatches:  cfg.Watches,
		TargetMutualPercent: cfg.MutualPercent,
		TargetMutualX100:    int64(cfg.MutualPercent) * int64(cfg.Watches),
	}

	cache := make(map[string]*types.User, cfg.Users)
	load := func(username string) (*types.User, error) {
		if u, ok := cache[username]; ok {
			return u, nil
		}
		u, err := users.Get(ctx, username)
		if errors.Is(err, kv.ErrNotFound) {
			cache[username] = nil
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", username, err)
		}
		cache[username] = &u
		return &u, nil
	}

	for i := 1; i <= cfg.Users; i++ {
		name := Username(i)
		u, err := load(name)
		if err != nil {
			return Report{}, err
		}
		if u == nil {
			report.Missing++
			continue
		}

		switch {
		case len(u.Watching) > cfg.Watches:
			report.MoreWatches++
		case len(u.Watching) < cfg.Watches:
			report.LessWatches++
		}
		if u.IsWatching(name) {
			report.WatchingSelf++
		}

		mutual := 0
		for _, other := range u.Watching {
			o, err := load(other)
			if err != nil {
				return Report{}, err
			}
			if o != nil && o.IsWatching(name) {
				mutual++
			}
		}
		report.Relationships += len(u.Watching)
		report.MutualRelationships += mutual

		switch {
		case int64(mutual)*100 < report.TargetMutualX100:
			report.LessMutualWatches++
		case int64(mutual)*100-1 >= report.TargetMutualX100:
			report.MoreMutualWatches++
		}
		if detailed {
			report.Details = append(report.Details, UserDetail{
				Username:      name,
				Posts:         len(u.Posts),
				Watching:      len(u.Watching),
				MutualWatched: mutual,
			})
		}
	}
	return report, nil
}
