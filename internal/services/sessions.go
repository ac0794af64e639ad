package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akostadinov/chunchun/internal/accounts"
	"github.com/akostadinov/chunchun/internal/feed"
	"github.com/akostadinov/chunchun/internal/graph"
	"github.com/akostadinov/chunchun/internal/mq"
	"github.com/akostadinov/chunchun/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Session is one login of a demo account.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`

	account int
	feed    *feed.Session
}

// Feed returns the feed state of the session.
func (s *Session) Feed() *feed.Session {
	return s.feed
}

// SessionManager logs demo accounts in and out and keeps a feed session
// per login.
type SessionManager struct {
	pool         *accounts.Pool
	agg          *feed.Aggregator
	users        feed.UserGetter
	social       *SocialService
	initialLimit int
	step         int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager wires the pool, the aggregator and the social service.
// Non-positive limits fall back to the feed defaults.
func NewSessionManager(pool *accounts.Pool, agg *feed.Aggregator, social *SocialService, initialLimit, step int) *SessionManager {
	return &SessionManager{
		pool:         pool,
		agg:          agg,
		users:        social.users,
		social:       social,
		initialLimit: initialLimit,
		step:         step,
		sessions:     make(map[string]*Session),
	}
}

// Login acquires the lowest free demo account and opens a session for it.
// It returns accounts.ErrExhausted when every account is logged in.
func (m *SessionManager) Login(ctx context.Context) (*Session, error) {
	index, err := m.pool.Acquire()
	if err != nil {
		return nil, err
	}

	username := graph.Username(index)
	if _, err := m.users.Get(ctx, username); err != nil {
		_ = m.pool.Release(index)
		return nil, fmt.Errorf("login %s: %w", username, err)
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
		account:   index,
		feed:      feed.NewSession(m.agg, m.initialLimit, m.step),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session":  sess.ID,
		"username": username,
	}).Info("session opened")
	return sess, nil
}

// Logout closes the session and returns its account to the pool.
func (m *SessionManager) Logout(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	logrus.WithFields(logrus.Fields{
		"session":  id,
		"username": sess.Username,
	}).Info("session closed")
	return m.pool.Release(sess.account)
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Count returns the number of open sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Recent returns the feed of the session user. A positive limit replaces
// the session limit first.
func (m *SessionManager) Recent(ctx context.Context, sess *Session, limit int) ([]types.DisplayPost, error) {
	if limit > 0 {
		sess.feed.SetLimit(limit)
	}
	viewer, err := m.users.Get(ctx, sess.Username)
	if err != nil {
		return nil, err
	}
	return sess.feed.Recent(ctx, viewer)
}

// Watch changes the watch-list of the session user and resets its feed.
// Other sessions of the same user are reset through the event bus.
func (m *SessionManager) Watch(ctx context.Context, sess *Session, target string) (bool, error) {
	changed, err := m.social.Watch(ctx, sess.Username, target)
	if changed {
		sess.feed.Reset()
	}
	return changed, err
}

func (m *SessionManager) Unwatch(ctx context.Context, sess *Session, target string) (bool, error) {
	changed, err := m.social.Unwatch(ctx, sess.Username, target)
	if changed {
		sess.feed.Reset()
	}
	return changed, err
}

// HandleWatchEvent resets the feed of every session of the watcher.
func (m *SessionManager) HandleWatchEvent(_ context.Context, ev mq.WatchEvent) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reset := 0
	for _, sess := range m.sessions {
		if sess.Username == ev.Watcher {
			sess.feed.Reset()
			reset++
		}
	}
	if reset > 0 {
		logrus.WithFields(logrus.Fields{
			"watcher":  ev.Watcher,
			"action":   ev.Action,
			"sessions": reset,
		}).Debug("feed sessions reset")
	}
	return nil
}

// Run consumes watch events from bus until ctx is done.
func (m *SessionManager) Run(ctx context.Context, bus *mq.MQ) error {
	err := bus.SubscribeWatchEvents(ctx, m.HandleWatchEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
