// Package graph populates an empty store with demo users, their posts and a
// random watch graph with a target share of mutual relationships.
package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/storage"
	"github.com/akostadinov/chunchun/internal/store"
	"github.com/akostadinov/chunchun/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Summary reports what Populate wrote.
type Summary struct {
	Users         int           `json:"users"`
	Posts         int           `json:"posts"`
	Relationships int           `json:"relationships"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Generator writes the demo data set. It is meant to run once against an
// empty store and is not safe for concurrent use.
type Generator struct {
	store   kv.Store
	avatars *storage.Storage
	cfg     Config
	rng     *rand.Rand
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithAvatarStorage writes avatars to s instead of the avatars partition of
// the kv store.
func WithAvatarStorage(s *storage.Storage) Option {
	return func(g *Generator) { g.avatars = s }
}

// WithRand replaces the random source, which makes runs reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(s kv.Store, cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		store: s,
		cfg:   cfg.withDefaults(),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Username returns the username of the i-th generated user.
func Username(i int) string {
	return "user" + strconv.Itoa(i)
}

// Password returns the clear-text password of the i-th generated user.
func Password(i int) string {
	return "pass" + strconv.Itoa(i)
}

// Populate writes avatars, users with their posts and the watch graph. Each
// user and each user's graph pass is its own unit of work. The first failing
// unit writes nothing and stops population; earlier units stay committed.
func (g *Generator) Populate(ctx context.Context) (Summary, error) {
	start := g.now()
	var summary Summary

	exists, err := g.store.Exists(ctx, store.UsersPartition, CanaryUser)
	if err != nil {
		return summary, fmt.Errorf("check canary user: %w", err)
	}
	if exists {
		return summary, ErrAlreadyPopulated
	}

	logrus.WithFields(logrus.Fields{
		"users":          g.cfg.Users,
		"watches":        g.cfg.Watches,
		"mutual_percent": g.cfg.MutualPercent,
		"posts":          g.cfg.Posts,
	}).Info("populating store")

	if err := g.writeAvatars(ctx); err != nil {
		return summary, fmt.Errorf("write avatars: %w", err)
	}

	for i := 1; i <= g.cfg.Users; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := g.createUser(ctx, i); err != nil {
			return summary, fmt.Errorf("create %s: %w", Username(i), err)
		}
		summary.Users++
		summary.Posts += g.cfg.Posts
	}

	ids := make([]int, g.cfg.Users)
	for i := range ids {
		ids[i] = i + 1
	}
	for i := 1; i <= g.cfg.Users; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		added, err := g.linkUser(ctx, i, ids)
		if err != nil {
			return summary, fmt.Errorf("link %s: %w", Username(i), err)
		}
		summary.Relationships += added
		if i%1000 == 0 {
			logrus.WithField("users", i).Debug("watch graph progress")
		}
	}

	summary.Elapsed = g.now().Sub(start)
	logrus.WithFields(logrus.Fields{
		"users":         summary.Users,
		"posts":         summary.Posts,
		"relationships": summary.Relationships,
		"elapsed":       summary.Elapsed,
	}).Info("populating store completed")
	return summary, nil
}

func (g *Generator) writeAvatars(ctx context.Context) error {
	images, err := avatarImages()
	if err != nil {
		return err
	}
	names := []string{DefaultAvatar, NoPhotoAvatar}
	if g.avatars != nil {
		for _, name := range names {
			if err := g.avatars.PutBytes(ctx, name, images[name], "image/jpeg"); err != nil {
				return err
			}
		}
		return nil
	}
	return kv.RunInTx(ctx, g.store, func(tx *kv.Tx) error {
		s := storage.NewStorage(storage.NewPartitionStorage(tx, store.AvatarsPartition))
		for _, name := range names {
			if err := s.PutBytes(ctx, name, images[name], "image/jpeg"); err != nil {
				return err
			}
		}
		return nil
	})
}

// createUser writes the i-th user and its posts in one unit.
func (g *Generator) createUser(ctx context.Context, i int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(Password(i)), g.cfg.PasswordCost)
	if err != nil {
		return err
	}
	avatar := NoPhotoAvatar
	if i%2 == 1 {
		avatar = DefaultAvatar
	}
	user := types.User{
		Username:     Username(i),
		Name:         "Name" + strconv.Itoa(i),
		Surname:      "Surname" + strconv.Itoa(i),
		Whoami:       "Description of person " + strconv.Itoa(i),
		PasswordHash: string(hash),
		Avatar:       avatar,
	}

	return kv.RunInTx(ctx, g.store, func(tx *kv.Tx) error {
		posts := store.NewPostRepository(tx)
		for j, ts := range g.postTimes() {
			when := time.UnixMilli(ts)
			post := types.NewPost(user.Username,
				fmt.Sprintf("Post number %d for user %s at %s", j+1, user.Name, when.Format(time.RFC1123)), when)
			if err := posts.Create(ctx, post); err != nil {
				return err
			}
			user.AddPost(post.Key())
		}
		return store.NewUserRepository(tx).Create(ctx, user)
	})
}

// postTimes returns Posts distinct random timestamps within PostWindow,
// oldest first.
func (g *Generator) postTimes() []int64 {
	now := g.now().UnixMilli()
	window := g.cfg.PostWindow.Milliseconds()
	seen := make(map[int64]struct{}, g.cfg.Posts)
	out := make([]int64, 0, g.cfg.Posts)
	for len(out) < g.cfg.Posts {
		ts := now - g.rng.Int64N(window)
		if _, dup := seen[ts]; dup {
			continue
		}
		seen[ts] = struct{}{}
		out = append(out, ts)
	}
	slices.Sort(out)
	return out
}

// linkUser runs the graph pass of the i-th user in one unit and returns the
// number of watches it added. ids holds 1..Users in any order and is
// shuffled in place; each call draws at most len(ids) candidates.
func (g *Generator) linkUser(ctx context.Context, i int, ids []int) (int, error) {
	var added int
	err := kv.RunInTx(ctx, g.store, func(tx *kv.Tx) error {
		added = 0
		users := store.NewUserRepository(tx)
		u, err := users.Get(ctx, Username(i))
		if err != nil {
			return err
		}

		w, p := g.cfg.Watches, g.cfg.MutualPercent
		balance := SelfBalance(i, g.cfg)
		target := w - balance
		nonMutual := 0
		var deferred []types.User

		watch := func(c types.User) error {
			u.AddWatching(c.Username)
			c.AddWatcher(u.Username)
			added++
			return users.Update(ctx, c)
		}

		for k := 0; len(u.Watching) < target && k < len(ids); k++ {
			j := k + g.rng.IntN(len(ids)-k)
			ids[k], ids[j] = ids[j], ids[k]
			if ids[k] == i {
				continue
			}
			name := Username(ids[k])
			if u.IsWatching(name) {
				continue
			}
			c, err := users.Get(ctx, name)
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			if (len(u.Watching)+balance-nonMutual)*100 < w*p {
				if len(c.Watching) >= w {
					// Kept for later; used only if the draw runs dry.
					deferred = append(deferred, c)
					continue
				}
				if c.AddWatching(u.Username) {
					u.AddWatcher(c.Username)
					added++
				}
			}
			if err := watch(c); err != nil {
				return err
			}
		}

		for _, c := range deferred {
			if len(u.Watching) >= target {
				break
			}
			nonMutual++
			if err := watch(c); err != nil {
				return err
			}
		}
		return users.Update(ctx, u)
	})
	return added, err
}
