package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "users", "user1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "users", "user1", []byte("a")))
	e, err := s.Get(ctx, "users", "user1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), e.Value)
	assert.Equal(t, int64(1), e.Version)

	require.NoError(t, s.Put(ctx, "users", "user1", []byte("b")))
	e, err = s.Get(ctx, "users", "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Version)

	ok, err := s.Exists(ctx, "users", "user1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "posts", "user1")
	require.NoError(t, err)
	assert.False(t, ok, "partitions are separate")
}

func TestMemoryStoreReplace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Replace(ctx, "users", "user1", []byte("x"), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "users", "user1", []byte("a")))
	require.NoError(t, s.Replace(ctx, "users", "user1", []byte("b"), 1))

	err = s.Replace(ctx, "users", "user1", []byte("c"), 1)
	assert.ErrorIs(t, err, ErrConflict)

	e, err := s.Get(ctx, "users", "user1")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), e.Value)
	assert.Equal(t, int64(2), e.Version)
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Delete(ctx, "posts", "missing"))
	require.NoError(t, s.Put(ctx, "posts", "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "posts", "k"))
	require.NoError(t, s.Delete(ctx, "posts", "k"))

	_, err := s.Get(ctx, "posts", "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreApplyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "users", "a", []byte("a1")))

	err := s.Apply(ctx, []Op{
		{Kind: OpPut, Partition: "users", Key: "b", Value: []byte("b1")},
		{Kind: OpReplace, Partition: "users", Key: "a", Value: []byte("a2"), Version: 7},
	})
	assert.ErrorIs(t, err, ErrConflict)

	ok, err := s.Exists(ctx, "users", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	e, err := s.Get(ctx, "users", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("a1"), e.Value)
}

func TestMemoryStoreValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, s.Put(ctx, "p", "k", value))
	value[0] = 'z'

	e, err := s.Get(ctx, "p", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), e.Value)
	assert.Equal(t, 1, s.Len("p"))
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "p", "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(ctx, "p", "k", nil), ErrClosed)
}
