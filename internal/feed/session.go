package feed

import (
	"context"
	"sync"

	"github.com/akostadinov/chunchun/types"
)

const (
	DefaultInitialLimit = 10
	DefaultLimitStep    = 10
)

// Session is the feed state of one viewer in one login: the entries
// resolved by the last call and the number of entries to show.
type Session struct {
	agg          *Aggregator
	initialLimit int
	step         int

	mu    sync.Mutex
	limit int
	memo  map[types.PostKey]types.DisplayPost
	epoch uint64
}

// NewSession creates a session showing initialLimit entries and growing by
// step on More. Non-positive values fall back to the defaults.
func NewSession(agg *Aggregator, initialLimit, step int) *Session {
	if initialLimit <= 0 {
		initialLimit = DefaultInitialLimit
	}
	if step <= 0 {
		step = DefaultLimitStep
	}
	return &Session{agg: agg, initialLimit: initialLimit, step: step, limit: initialLimit}
}

// Recent returns the viewer's feed at the current limit. Entries resolved by
// the previous call are reused without a store lookup.
func (s *Session) Recent(ctx context.Context, viewer types.User) ([]types.DisplayPost, error) {
	s.mu.Lock()
	limit, memo, epoch := s.limit, s.memo, s.epoch
	s.mu.Unlock()

	posts, next, err := s.agg.recentPosts(ctx, viewer.Watching, limit, memo)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// A Reset during the call invalidates what was just resolved.
	if s.epoch == epoch {
		s.memo = next
	}
	s.mu.Unlock()
	return posts, nil
}

// Limit returns the number of entries the session shows.
func (s *Session) Limit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// More raises the limit by one step and returns the new limit.
func (s *Session) More() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit += s.step
	return s.limit
}

// SetLimit sets the number of entries shown. Values below 1 are ignored.
func (s *Session) SetLimit(limit int) {
	if limit < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
}

// Reset clears the memo and restores the initial limit. It must be called
// whenever the viewer's watch-list changes.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memo = nil
	s.limit = s.initialLimit
	s.epoch++
}

// Memoized returns the number of entries kept from the last call.
func (s *Session) Memoized() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memo)
}
