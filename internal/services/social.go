package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/mq"
	"github.com/akostadinov/chunchun/internal/storage"
	"github.com/akostadinov/chunchun/internal/store"
	"github.com/akostadinov/chunchun/types"
	"github.com/sirupsen/logrus"
)

const avatarContentType = "image/jpeg"

// EventPublisher announces committed watch-list changes.
type EventPublisher interface {
	PublishWatchEvent(ctx context.Context, ev mq.WatchEvent) error
}

// SocialService encapsulates posting and watching use-cases. Every write
// is one kv.Tx; a lost race surfaces as kv.ErrConflict and is not retried.
type SocialService struct {
	store   kv.Store
	users   *store.UserRepository
	posts   *store.PostRepository
	avatars *storage.Storage
	events  EventPublisher
	now     func() time.Time
}

// NewSocialService constructs the service. avatars and events may be nil.
func NewSocialService(s kv.Store, avatars *storage.Storage, events EventPublisher) *SocialService {
	if avatars == nil {
		avatars = storage.NewStorage(storage.NewPartitionStorage(s, store.AvatarsPartition))
	}
	return &SocialService{
		store:   s,
		users:   store.NewUserRepository(s),
		posts:   store.NewPostRepository(s),
		avatars: avatars,
		events:  events,
		now:     time.Now,
	}
}

// User returns the full record of username.
func (s *SocialService) User(ctx context.Context, username string) (types.User, error) {
	return s.users.Get(ctx, username)
}

func (s *SocialService) Profile(ctx context.Context, username string) (types.Profile, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return types.Profile{}, err
	}
	return user.Profile(), nil
}

// Post stores a new post by username and appends it to the user's posts.
// The timestamp is moved past the user's newest post if the clock has not
// advanced, so two posts never share a key.
func (s *SocialService) Post(ctx context.Context, username, message string) (types.Post, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return types.Post{}, fmt.Errorf("%w: empty message", ErrInvalidArgument)
	}

	var post types.Post
	err := kv.RunInTx(ctx, s.store, func(tx *kv.Tx) error {
		users := store.NewUserRepository(tx)
		user, err := users.Get(ctx, username)
		if err != nil {
			return err
		}

		ts := s.now().UnixMilli()
		for _, key := range user.Posts {
			if key.Timestamp >= ts {
				ts = key.Timestamp + 1
			}
		}
		post = types.Post{Owner: username, Message: message, Timestamp: ts}

		if err := store.NewPostRepository(tx).Create(ctx, post); err != nil {
			return err
		}
		user.AddPost(post.Key())
		return users.Update(ctx, user)
	})
	if err != nil {
		return types.Post{}, fmt.Errorf("post as %s: %w", username, err)
	}
	return post, nil
}

// NewPosts writes num generated posts for username, each in its own unit
// of work. Posts written before a failure stay committed.
func (s *SocialService) NewPosts(ctx context.Context, username string, num int) ([]types.Post, error) {
	if num < 1 {
		return nil, fmt.Errorf("%w: post count %d", ErrInvalidArgument, num)
	}

	start := s.now().UnixMilli()
	posts := make([]types.Post, 0, num)
	for i := 1; i <= num; i++ {
		post, err := s.Post(ctx, username, fmt.Sprintf("New message from %s at %d, number:%d", username, start, i))
		if err != nil {
			return posts, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// DeletePost removes the post of username made at timestamp.
func (s *SocialService) DeletePost(ctx context.Context, username string, timestamp int64) error {
	key := types.PostKey{Owner: username, Timestamp: timestamp}
	err := kv.RunInTx(ctx, s.store, func(tx *kv.Tx) error {
		users := store.NewUserRepository(tx)
		user, err := users.Get(ctx, username)
		if err != nil {
			return err
		}
		if !user.RemovePost(key) {
			return store.ErrNotFound
		}
		if err := store.NewPostRepository(tx).Delete(ctx, key); err != nil {
			return err
		}
		return users.Update(ctx, user)
	})
	if err != nil {
		return fmt.Errorf("delete post %s: %w", key, err)
	}
	return nil
}

// UserPosts returns the posts of username, newest first. Posts that have
// vanished from the store are skipped.
func (s *SocialService) UserPosts(ctx context.Context, username string) ([]types.DisplayPost, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	out := make([]types.DisplayPost, 0, len(user.Posts))
	for i := len(user.Posts) - 1; i >= 0; i-- {
		post, err := s.posts.Get(ctx, user.Posts[i])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, types.DisplayPost{
			Name:      user.Name,
			Username:  user.Username,
			Message:   post.Message,
			Timestamp: post.Timestamp,
		})
	}
	return out, nil
}

// Watch makes watcher watch target. It reports false without writing when
// the relation already exists.
func (s *SocialService) Watch(ctx context.Context, watcher, target string) (bool, error) {
	return s.changeWatch(ctx, watcher, target, mq.ActionWatch)
}

// Unwatch removes the relation. It reports false without writing when
// watcher was not watching target.
func (s *SocialService) Unwatch(ctx context.Context, watcher, target string) (bool, error) {
	return s.changeWatch(ctx, watcher, target, mq.ActionUnwatch)
}

func (s *SocialService) changeWatch(ctx context.Context, watcher, target string, action mq.WatchAction) (bool, error) {
	if watcher == target {
		return false, ErrSelfWatch
	}

	var changed bool
	err := kv.RunInTx(ctx, s.store, func(tx *kv.Tx) error {
		users := store.NewUserRepository(tx)
		me, err := users.Get(ctx, watcher)
		if err != nil {
			return err
		}
		other, err := users.Get(ctx, target)
		if err != nil {
			return err
		}

		if action == mq.ActionWatch {
			changed = me.AddWatching(target)
			other.AddWatcher(watcher)
		} else {
			changed = me.RemoveWatching(target)
			other.RemoveWatcher(watcher)
		}
		if !changed {
			return nil
		}

		if err := users.Update(ctx, me); err != nil {
			return err
		}
		return users.Update(ctx, other)
	})
	if err != nil {
		return false, fmt.Errorf("%s %s -> %s: %w", action, watcher, target, err)
	}
	if changed {
		s.publish(ctx, mq.WatchEvent{Watcher: watcher, Target: target, Action: action})
	}
	return changed, nil
}

// publish runs after the commit, so a failure only delays invalidation in
// other sessions of the watcher.
func (s *SocialService) publish(ctx context.Context, ev mq.WatchEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishWatchEvent(ctx, ev); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"watcher": ev.Watcher,
			"target":  ev.Target,
			"action":  ev.Action,
		}).Warn("failed to publish watch event")
	}
}

// Watching returns the profiles of the users username watches.
func (s *SocialService) Watching(ctx context.Context, username string) ([]types.Profile, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, user.Watching)
}

// Watchers returns the profiles of the users watching username.
func (s *SocialService) Watchers(ctx context.Context, username string) ([]types.Profile, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, user.Watchers)
}

func (s *SocialService) profiles(ctx context.Context, usernames []string) ([]types.Profile, error) {
	out := make([]types.Profile, 0, len(usernames))
	for _, name := range usernames {
		user, err := s.users.Get(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, user.Profile())
	}
	return out, nil
}

// Avatar returns the picture of username and its content type.
func (s *SocialService) Avatar(ctx context.Context, username string) ([]byte, string, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if user.Avatar == "" {
		return nil, "", fmt.Errorf("user %s has no avatar: %w", username, store.ErrNotFound)
	}
	data, err := s.avatars.ReadAll(ctx, user.Avatar)
	if err != nil {
		return nil, "", err
	}
	return data, avatarContentType, nil
}
