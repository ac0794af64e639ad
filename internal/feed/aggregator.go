// Package feed builds the recent-posts feed of a viewer by merging the post
// streams of every watched user into a bounded frontier.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/store"
	"github.com/akostadinov/chunchun/types"
	"github.com/sirupsen/logrus"
)

// PostGetter reads posts by key.
type PostGetter interface {
	Get(ctx context.Context, key types.PostKey) (types.Post, error)
}

// Stats describes the work done by one aggregation.
type Stats struct {
	Rounds         int `json:"rounds"`
	KeysRead       int `json:"keys_read"`
	StreamsOpened  int `json:"streams_opened"`
	StreamsRetired int `json:"streams_retired"`
	MaxFrontier    int `json:"max_frontier"`
}

// Aggregator merges watched users' posts. It holds no per-call state and is
// safe for concurrent use.
type Aggregator struct {
	source   StreamSource
	posts    PostGetter
	schedule Schedule
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSchedule replaces the default AdaptiveSchedule.
func WithSchedule(s Schedule) Option {
	return func(a *Aggregator) { a.schedule = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(source StreamSource, posts PostGetter, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:   source,
		posts:    posts,
		schedule: AdaptiveSchedule{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewStoreAggregator reads users and posts from rw.
func NewStoreAggregator(rw kv.ReadWriter, opts ...Option) *Aggregator {
	return NewAggregator(
		NewStoreSource(store.NewUserRepository(rw)),
		store.NewPostRepository(rw),
		opts...,
	)
}

// GetRecentPosts returns up to limit posts of the users viewer watches,
// newest first.
func (a *Aggregator) GetRecentPosts(ctx context.Context, viewer types.User, limit int) ([]types.DisplayPost, error) {
	posts, _, err := a.recentPosts(ctx, viewer.Watching, limit, nil)
	return posts, err
}

// RecentKeys returns the keys of the limit newest posts of the watched
// users, newest first, without resolving them.
func (a *Aggregator) RecentKeys(ctx context.Context, watching []string, limit int) ([]types.PostKey, Stats, error) {
	keys, _, stats, err := a.collect(ctx, watching, limit)
	return keys, stats, err
}

func (a *Aggregator) recentPosts(ctx context.Context, watching []string, limit int, memo map[types.PostKey]types.DisplayPost) ([]types.DisplayPost, map[types.PostKey]types.DisplayPost, error) {
	keys, names, _, err := a.collect(ctx, watching, limit)
	if err != nil {
		return nil, nil, err
	}
	return a.resolve(ctx, keys, names, memo)
}

// collect runs the windowed merge and also returns the display names of the
// owners read while opening streams.
func (a *Aggregator) collect(ctx context.Context, watching []string, limit int) ([]types.PostKey, map[string]string, Stats, error) {
	var stats Stats
	if limit <= 0 || len(watching) == 0 {
		return nil, nil, stats, nil
	}

	names := make(map[string]string, len(watching))
	active := make([]PostStream, 0, len(watching))
	for _, username := range watching {
		if err := ctx.Err(); err != nil {
			return nil, nil, stats, err
		}
		s, err := a.source.Open(ctx, username)
		if err != nil {
			logrus.WithError(err).WithField("user", username).Warn("feed: skipping unreadable stream")
			continue
		}
		stats.StreamsOpened++
		names[s.Owner()] = s.Name()
		active = append(active, s)
	}

	f := newFrontier(limit)
	now := a.now().UnixMilli()
	for round := 0; len(active) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, stats, err
		}
		cutoff := a.schedule.Cutoff(now, round, len(watching))
		stats.Rounds++

		next := active[:0]
		for _, s := range active {
			if a.drain(ctx, s, f, cutoff, &stats) {
				next = append(next, s)
			} else {
				stats.StreamsRetired++
			}
		}
		active = next

		if f.len() > stats.MaxFrontier {
			stats.MaxFrontier = f.len()
		}
		// Every unread key is older than cutoff and so cannot beat the minimum.
		if f.full() && f.min().Timestamp >= cutoff {
			break
		}
	}
	return f.newestFirst(), names, stats, nil
}

// drain reads s down to cutoff, feeding the frontier. It reports whether the
// stream may still contribute in a later round.
func (a *Aggregator) drain(ctx context.Context, s PostStream, f *frontier, cutoff int64, stats *Stats) bool {
	for {
		key, err := s.Peek(ctx)
		if errors.Is(err, ErrExhausted) {
			return false
		}
		if err != nil {
			logrus.WithError(err).WithField("user", s.Owner()).Warn("feed: retiring failed stream")
			return false
		}
		if key.Timestamp < cutoff {
			return true
		}
		stats.KeysRead++
		if !f.offer(key) {
			return false
		}
		s.Advance()
	}
}

// resolve turns keys into feed entries, preferring entries from memo. It
// returns the entries and the memo for the next call.
func (a *Aggregator) resolve(ctx context.Context, keys []types.PostKey, names map[string]string, memo map[types.PostKey]types.DisplayPost) ([]types.DisplayPost, map[types.PostKey]types.DisplayPost, error) {
	out := make([]types.DisplayPost, 0, len(keys))
	next := make(map[types.PostKey]types.DisplayPost, len(keys))
	for _, key := range keys {
		if dp, ok := memo[key]; ok {
			out = append(out, dp)
			next[key] = dp
			continue
		}
		post, err := a.posts.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, kv.ErrNotFound) {
				logrus.WithError(err).WithField("post", key.String()).Warn("feed: skipping unreadable post")
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			continue
		}
		dp := types.DisplayPost{
			Name:      names[key.Owner],
			Username:  key.Owner,
			Message:   post.Message,
			Timestamp: key.Timestamp,
		}
		out = append(out, dp)
		next[key] = dp
	}
	return out, next, nil
}
