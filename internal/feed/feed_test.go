package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/store"
	"github.com/akostadinov/chunchun/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseTime int64 = 1_700_000_000_000

var minute = time.Minute.Milliseconds()

// fakeSource serves streams from an in-memory user table and counts opens.
type fakeSource struct {
	users  map[string]types.User
	fail   map[string]error
	opened int
}

func newFakeSource() *fakeSource {
	return &fakeSource{users: map[string]types.User{}, fail: map[string]error{}}
}

func (s *fakeSource) Open(_ context.Context, username string) (PostStream, error) {
	s.opened++
	if err := s.fail[username]; err != nil {
		return nil, err
	}
	u, ok := s.users[username]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return newUserStream(u), nil
}

// countingPosts is a post table that counts point lookups.
type countingPosts struct {
	posts map[types.PostKey]types.Post
	gets  int
}

func newCountingPosts() *countingPosts {
	return &countingPosts{posts: map[types.PostKey]types.Post{}}
}

func (p *countingPosts) Get(_ context.Context, key types.PostKey) (types.Post, error) {
	p.gets++
	post, ok := p.posts[key]
	if !ok {
		return types.Post{}, kv.ErrNotFound
	}
	return post, nil
}

type fixture struct {
	source *fakeSource
	posts  *countingPosts
}

func newFixture() *fixture {
	return &fixture{source: newFakeSource(), posts: newCountingPosts()}
}

func (f *fixture) addUser(username string, timestamps ...int64) {
	u := types.User{Username: username, Name: "Name " + username}
	for _, ts := range timestamps {
		post := types.Post{Owner: username, Message: fmt.Sprintf("%s at %d", username, ts), Timestamp: ts}
		u.AddPost(post.Key())
		f.posts.posts[post.Key()] = post
	}
	f.source.users[username] = u
}

func (f *fixture) aggregator(opts ...Option) *Aggregator {
	opts = append([]Option{WithClock(func() time.Time { return time.UnixMilli(baseTime) })}, opts...)
	return NewAggregator(f.source, f.posts, opts...)
}

func timestamps(posts []types.DisplayPost) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.Timestamp
	}
	return out
}

func TestGetRecentPostsTwoUsers(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100, 200)
	f.addUser("B", 150)
	viewer := types.User{Username: "viewer", Watching: []string{"A", "B"}}

	posts, err := f.aggregator().GetRecentPosts(context.Background(), viewer, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, types.DisplayPost{Name: "Name A", Username: "A", Message: "A at 200", Timestamp: 200}, posts[0])
	assert.Equal(t, types.DisplayPost{Name: "Name B", Username: "B", Message: "B at 150", Timestamp: 150}, posts[1])
}

func TestGetRecentPostsMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	f := newFixture()
	var all []types.PostKey
	var watching []string
	used := map[int64]bool{}
	for u := 0; u < 30; u++ {
		name := fmt.Sprintf("user%d", u)
		var ts []int64
		n := rng.IntN(40)
		for p := 0; p < n; p++ {
			// Spread posts over about 90 days so several rounds are needed.
			stamp := baseTime - rng.Int64N(90*24*60)*minute
			if used[stamp] {
				continue
			}
			used[stamp] = true
			ts = append(ts, stamp)
		}
		slices.Sort(ts)
		f.addUser(name, ts...)
		for _, stamp := range ts {
			all = append(all, types.PostKey{Owner: name, Timestamp: stamp})
		}
		watching = append(watching, name)
	}
	slices.SortFunc(all, func(a, b types.PostKey) int { return b.Compare(a) })

	for _, schedule := range []Schedule{AdaptiveSchedule{}, DailySchedule{}, AdaptiveSchedule{MaxRounds: 1}} {
		for _, limit := range []int{1, 5, 10, 50, len(all), len(all) + 10} {
			keys, stats, err := f.aggregator(WithSchedule(schedule)).RecentKeys(context.Background(), watching, limit)
			require.NoError(t, err)

			want := all[:min(limit, len(all))]
			assert.Equal(t, want, keys, "schedule %T limit %d", schedule, limit)
			assert.LessOrEqual(t, stats.MaxFrontier, limit)
			for i := 1; i < len(keys); i++ {
				assert.Greater(t, keys[i-1].Timestamp, keys[i].Timestamp)
			}
		}
	}
}

func TestGetRecentPostsIsIdempotent(t *testing.T) {
	f := newFixture()
	f.addUser("A", baseTime-5*minute, baseTime-3*minute, baseTime-minute)
	f.addUser("B", baseTime-4*minute, baseTime-2*minute)
	viewer := types.User{Username: "viewer", Watching: []string{"A", "B"}}
	agg := f.aggregator()

	first, err := agg.GetRecentPosts(context.Background(), viewer, 4)
	require.NoError(t, err)
	second, err := agg.GetRecentPosts(context.Background(), viewer, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int64{baseTime - minute, baseTime - 2*minute, baseTime - 3*minute, baseTime - 4*minute}, timestamps(first))
}

func TestBoundedWithManyWatchedUsers(t *testing.T) {
	f := newFixture()
	var watching []string
	for i := 1; i <= 10000; i++ {
		name := fmt.Sprintf("user%d", i)
		f.addUser(name, baseTime-int64(i)*minute)
		watching = append(watching, name)
	}

	keys, stats, err := f.aggregator().RecentKeys(context.Background(), watching, 10)
	require.NoError(t, err)

	require.Len(t, keys, 10)
	assert.Equal(t, baseTime-minute, keys[0].Timestamp)
	assert.Equal(t, baseTime-10*minute, keys[9].Timestamp)
	assert.LessOrEqual(t, stats.MaxFrontier, 10)
	assert.LessOrEqual(t, stats.Rounds, 2)
	assert.LessOrEqual(t, stats.KeysRead, 100, "only the first window should be read")
	assert.Equal(t, 10000, stats.StreamsOpened)
}

func TestBoundedWithFewProlificUsers(t *testing.T) {
	f := newFixture()
	var watching []string
	for u := 0; u < 10; u++ {
		name := fmt.Sprintf("user%d", u)
		ts := make([]int64, 1000)
		for p := range ts {
			// Interleave the users, one post every 10 minutes each.
			ts[p] = baseTime - int64(999-p)*10*minute - int64(u)*minute
		}
		f.addUser(name, ts...)
		watching = append(watching, name)
	}
	viewer := types.User{Username: "viewer", Watching: watching}

	keys, stats, err := f.aggregator().RecentKeys(context.Background(), watching, 10)
	require.NoError(t, err)
	require.Len(t, keys, 10)
	assert.LessOrEqual(t, stats.MaxFrontier, 10)
	assert.LessOrEqual(t, stats.Rounds, 2)
	assert.LessOrEqual(t, stats.KeysRead, 10*(10+1))

	posts, err := f.aggregator().GetRecentPosts(context.Background(), viewer, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 10)
	assert.Equal(t, 10, f.posts.gets, "one point lookup per returned entry")
}

func TestGetRecentPostsEmptyCases(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100)
	agg := f.aggregator()

	posts, err := agg.GetRecentPosts(context.Background(), types.User{Username: "viewer"}, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, 0, f.source.opened)
	assert.Equal(t, 0, f.posts.gets)

	for _, limit := range []int{0, -3} {
		posts, err = agg.GetRecentPosts(context.Background(), types.User{Watching: []string{"A"}}, limit)
		require.NoError(t, err)
		assert.Empty(t, posts)
	}
	assert.Equal(t, 0, f.source.opened)
}

func TestDuplicateTimestampsAreDistinct(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100)
	f.addUser("B", 100)

	posts, err := f.aggregator().GetRecentPosts(context.Background(), types.User{Watching: []string{"A", "B"}}, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.ElementsMatch(t, []string{"A", "B"}, []string{posts[0].Username, posts[1].Username})
}

func TestFailingStreamIsRetired(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100, 300)
	f.addUser("B", 200)
	f.source.fail["B"] = kv.ErrUnavailable

	keys, stats, err := f.aggregator().RecentKeys(context.Background(), []string{"A", "B", "missing"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []types.PostKey{{Owner: "A", Timestamp: 300}, {Owner: "A", Timestamp: 100}}, keys)
	assert.Equal(t, 1, stats.StreamsOpened)
}

type brokenStream struct {
	PostStream
	after int
}

func (s *brokenStream) Peek(ctx context.Context) (types.PostKey, error) {
	if s.after == 0 {
		return types.PostKey{}, errors.New("shard down")
	}
	return s.PostStream.Peek(ctx)
}

func (s *brokenStream) Advance() {
	s.after--
	s.PostStream.Advance()
}

type brokenSource struct {
	*fakeSource
	broken string
}

func (s *brokenSource) Open(ctx context.Context, username string) (PostStream, error) {
	ps, err := s.fakeSource.Open(ctx, username)
	if err != nil || username != s.broken {
		return ps, err
	}
	return &brokenStream{PostStream: ps, after: 1}, nil
}

func TestStreamReadErrorRetiresStream(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100, 200, 300)
	f.addUser("B", 150)
	src := &brokenSource{fakeSource: f.source, broken: "A"}
	agg := NewAggregator(src, f.posts, WithClock(func() time.Time { return time.UnixMilli(baseTime) }))

	keys, stats, err := agg.RecentKeys(context.Background(), []string{"A", "B"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []types.PostKey{{Owner: "A", Timestamp: 300}, {Owner: "B", Timestamp: 150}}, keys)
	assert.Equal(t, 2, stats.StreamsRetired)
}

func TestDeletedPostIsSkipped(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100, 200)
	delete(f.posts.posts, types.PostKey{Owner: "A", Timestamp: 200})

	posts, err := f.aggregator().GetRecentPosts(context.Background(), types.User{Watching: []string{"A"}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, timestamps(posts))
}

func TestUnsortedPostListIsReadNewestFirst(t *testing.T) {
	f := newFixture()
	f.addUser("A", 300, 100, 200)

	keys, _, err := f.aggregator().RecentKeys(context.Background(), []string{"A"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []types.PostKey{{Owner: "A", Timestamp: 300}, {Owner: "A", Timestamp: 200}}, keys)
	assert.Equal(t, []types.PostKey{{Owner: "A", Timestamp: 300}, {Owner: "A", Timestamp: 100}, {Owner: "A", Timestamp: 200}},
		f.source.users["A"].Posts, "the stored list is not reordered")
}

func TestCancelledContext(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.aggregator().GetRecentPosts(ctx, types.User{Watching: []string{"A"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreAggregator(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryStore()
	users := store.NewUserRepository(s)
	posts := store.NewPostRepository(s)

	a := types.User{Username: "A", Name: "Alice"}
	for _, ts := range []int64{100, 200} {
		p := types.Post{Owner: "A", Message: "hi", Timestamp: ts}
		require.NoError(t, posts.Create(ctx, p))
		a.AddPost(p.Key())
	}
	require.NoError(t, users.Create(ctx, a))

	agg := NewStoreAggregator(s)
	got, err := agg.GetRecentPosts(ctx, types.User{Watching: []string{"A"}}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Name)
	assert.Equal(t, int64(200), got[0].Timestamp)
}
