package feed

import (
	"context"
	"testing"

	"github.com/akostadinov/chunchun/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionReusesMemo(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100, 200)
	f.addUser("B", 150)
	viewer := types.User{Username: "viewer", Watching: []string{"A", "B"}}
	sess := NewSession(f.aggregator(), 0, 0)

	first, err := sess.Recent(context.Background(), viewer)
	require.NoError(t, err)
	assert.Equal(t, []int64{200, 150, 100}, timestamps(first))
	assert.Equal(t, 3, f.posts.gets)
	assert.Equal(t, 3, sess.Memoized())

	second, err := sess.Recent(context.Background(), viewer)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, f.posts.gets, "memoized entries need no lookup")
}

func TestSessionLimits(t *testing.T) {
	sess := NewSession(newFixture().aggregator(), 0, 0)
	assert.Equal(t, DefaultInitialLimit, sess.Limit())
	assert.Equal(t, 20, sess.More())
	sess.SetLimit(3)
	assert.Equal(t, 3, sess.Limit())
	sess.SetLimit(0)
	assert.Equal(t, 3, sess.Limit())
	sess.Reset()
	assert.Equal(t, DefaultInitialLimit, sess.Limit())

	custom := NewSession(newFixture().aggregator(), 5, 2)
	assert.Equal(t, 7, custom.More())
}

func TestSessionRespectsLimit(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100, 200, 300)
	sess := NewSession(f.aggregator(), 2, 1)
	viewer := types.User{Watching: []string{"A"}}

	posts, err := sess.Recent(context.Background(), viewer)
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200}, timestamps(posts))

	sess.More()
	posts, err = sess.Recent(context.Background(), viewer)
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200, 100}, timestamps(posts))
	assert.Equal(t, 3, f.posts.gets)
}

func TestSessionResetAfterUnwatch(t *testing.T) {
	f := newFixture()
	f.addUser("A", 100, 200)
	f.addUser("B", 150)
	viewer := types.User{Username: "viewer", Watching: []string{"A", "B"}}
	sess := NewSession(f.aggregator(), 0, 0)

	_, err := sess.Recent(context.Background(), viewer)
	require.NoError(t, err)

	viewer.RemoveWatching("A")
	sess.Reset()
	assert.Equal(t, 0, sess.Memoized())

	posts, err := sess.Recent(context.Background(), viewer)
	require.NoError(t, err)
	assert.Equal(t, []int64{150}, timestamps(posts))
	for _, p := range posts {
		assert.NotEqual(t, "A", p.Username)
	}
}
