package feed

import (
	"context"
	"errors"
	"slices"

	"github.com/akostadinov/chunchun/internal/store"
	"github.com/akostadinov/chunchun/types"
)

// ErrExhausted is returned by PostStream.Peek when no older posts remain.
var ErrExhausted = errors.New("feed: stream exhausted")

// PostStream yields one user's post keys from newest to oldest.
type PostStream interface {
	// Owner is the username whose posts the stream yields.
	Owner() string
	// Name is the display name of the owner.
	Name() string
	// Peek returns the next key without consuming it.
	Peek(ctx context.Context) (types.PostKey, error)
	// Advance consumes the key returned by the last Peek.
	Advance()
}

// StreamSource opens post streams for watched users.
type StreamSource interface {
	Open(ctx context.Context, username string) (PostStream, error)
}

// UserGetter reads user records.
type UserGetter interface {
	Get(ctx context.Context, username string) (types.User, error)
}

// StoreSource opens streams by reading the user record once and walking its
// post list from the end.
type StoreSource struct {
	users UserGetter
}

func NewStoreSource(users UserGetter) *StoreSource {
	return &StoreSource{users: users}
}

var _ UserGetter = (*store.UserRepository)(nil)

func (s *StoreSource) Open(ctx context.Context, username string) (PostStream, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return newUserStream(user), nil
}

type userStream struct {
	owner string
	name  string
	keys  []types.PostKey
	next  int
}

// newUserStream walks the posts of user newest first. Post lists are kept
// in insertion order, which is normally ascending; a list that is not gets
// sorted on a private copy.
func newUserStream(user types.User) *userStream {
	keys := user.Posts
	less := func(a, b types.PostKey) int { return a.Compare(b) }
	if !slices.IsSortedFunc(keys, less) {
		keys = slices.Clone(keys)
		slices.SortFunc(keys, less)
	}
	return &userStream{owner: user.Username, name: user.Name, keys: keys, next: len(keys) - 1}
}

func (s *userStream) Owner() string { return s.owner }
func (s *userStream) Name() string  { return s.name }

func (s *userStream) Peek(context.Context) (types.PostKey, error) {
	if s.next < 0 {
		return types.PostKey{}, ErrExhausted
	}
	return s.keys[s.next], nil
}

func (s *userStream) Advance() {
	if s.next >= 0 {
		s.next--
	}
}
