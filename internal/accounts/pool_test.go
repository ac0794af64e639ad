package accounts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireLowestFirst(t *testing.T) {
	p := NewPool(3)

	for want := 1; want <= 3; want++ {
		got, err := p.Acquire()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, p.Available())
}

func TestPoolExhaustionAndRelease(t *testing.T) {
	p := NewPool(2)
	_, _ = p.Acquire()
	_, _ = p.Acquire()

	_, err := p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, p.Release(1))
	got, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestPoolReleaseInvalid(t *testing.T) {
	p := NewPool(2)

	assert.ErrorIs(t, p.Release(1), ErrNotAcquired)
	assert.ErrorIs(t, p.Release(0), ErrNotAcquired)
	assert.ErrorIs(t, p.Release(3), ErrNotAcquired)

	i, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(i))
	assert.ErrorIs(t, p.Release(i), ErrNotAcquired)
}

func TestPoolEmpty(t *testing.T) {
	p := NewPool(0)
	_, err := p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 0, p.Size())
}

func TestPoolConcurrentAcquireIsUnique(t *testing.T) {
	const size = 200
	p := NewPool(size)

	var (
		mu   sync.Mutex
		seen = map[int]bool{}
		wg   sync.WaitGroup
	)
	for n := 0; n < size; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			i, err := p.Acquire()
			if err != nil {
				return
			}
			mu.Lock()
			seen[i] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, size)
	assert.Equal(t, 0, p.Available())
}
