package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxReadsPendingWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "users", "a", []byte("a1")))

	tx := Begin(s)
	require.NoError(t, tx.Put(ctx, "users", "b", []byte("b1")))
	require.NoError(t, tx.Delete(ctx, "users", "a"))

	e, err := tx.Get(ctx, "users", "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("b1"), e.Value)

	ok, err := tx.Exists(ctx, "users", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	// Nothing reaches the store before commit.
	ok, err = s.Exists(ctx, "users", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.Commit(ctx))

	ok, err = s.Exists(ctx, "users", "b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists(ctx, "users", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTxRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tx := Begin(s)
	require.NoError(t, tx.Put(ctx, "users", "a", []byte("a1")))
	tx.Rollback()

	assert.Equal(t, 0, s.Len("users"))
	assert.ErrorIs(t, tx.Put(ctx, "users", "a", nil), ErrTxDone)
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := RunInTx(ctx, s, func(tx *Tx) error {
		require.NoError(t, tx.Put(ctx, "users", "a", []byte("a1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len("users"))

	err = RunInTx(ctx, s, func(tx *Tx) error {
		return tx.Put(ctx, "users", "a", []byte("a1"))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len("users"))
}

func TestRunInTxSurfacesCommitConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "users", "a", []byte("a1")))

	err := RunInTx(ctx, s, func(tx *Tx) error {
		e, err := tx.Get(ctx, "users", "a")
		if err != nil {
			return err
		}
		// Someone else writes between our read and our commit.
		require.NoError(t, s.Put(ctx, "users", "a", []byte("other")))
		return tx.Replace(ctx, "users", "a", []byte("mine"), e.Version)
	})
	assert.ErrorIs(t, err, ErrConflict)

	e, err := s.Get(ctx, "users", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), e.Value)
}

func TestTxKeepsFirstPrecondition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "users", "a", []byte("a1")))

	tx := Begin(s)
	require.NoError(t, tx.Replace(ctx, "users", "a", []byte("a2"), 1))

	e, err := tx.Get(ctx, "users", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Version)

	require.NoError(t, tx.Replace(ctx, "users", "a", []byte("a3"), e.Version))
	assert.ErrorIs(t, tx.Replace(ctx, "users", "a", []byte("a4"), 5), ErrConflict)
	require.NoError(t, tx.Put(ctx, "users", "a", []byte("a5")))
	assert.Equal(t, 1, tx.Pending())
	require.NoError(t, tx.Commit(ctx))

	e, err = s.Get(ctx, "users", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("a5"), e.Value)
	assert.Equal(t, int64(2), e.Version)
}

func TestTxReplaceAfterPendingPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tx := Begin(s)
	require.NoError(t, tx.Put(ctx, "users", "new", []byte("v1")))
	e, err := tx.Get(ctx, "users", "new")
	require.NoError(t, err)
	require.NoError(t, tx.Replace(ctx, "users", "new", []byte("v2"), e.Version))
	require.NoError(t, tx.Commit(ctx))

	e, err = s.Get(ctx, "users", "new")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), e.Value)
}

func TestTxReplaceAfterPendingDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tx := Begin(s)
	require.NoError(t, tx.Delete(ctx, "users", "a"))
	assert.ErrorIs(t, tx.Replace(ctx, "users", "a", []byte("v"), 0), ErrNotFound)
}
