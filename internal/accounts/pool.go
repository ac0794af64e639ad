// Package accounts hands out the generated demo logins to sessions.
package accounts

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrExhausted is returned by Acquire when every account is in use.
	ErrExhausted = errors.New("all demo accounts are in use")
	// ErrNotAcquired is returned when releasing an index that is not held.
	ErrNotAcquired = errors.New("account not acquired")
)

// Pool tracks which of the accounts 1..size are taken. Acquire always
// returns the lowest free index.
type Pool struct {
	mu    sync.Mutex
	taken []bool
	free  int
}

// NewPool returns a pool of size accounts, all free.
func NewPool(size int) *Pool {
	if size < 0 {
		size = 0
	}
	return &Pool{taken: make([]bool, size+1), free: size}
}

func (p *Pool) Acquire() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.free == 0 {
		return 0, ErrExhausted
	}
	for i := 1; i < len(p.taken); i++ {
		if !p.taken[i] {
			p.taken[i] = true
			p.free--
			return i, nil
		}
	}
	return 0, ErrExhausted
}

func (p *Pool) Release(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 1 || index >= len(p.taken) || !p.taken[index] {
		return fmt.Errorf("%w: %d", ErrNotAcquired, index)
	}
	p.taken[index] = false
	p.free++
	return nil
}

// Size is the number of accounts in the pool.
func (p *Pool) Size() int {
	return len(p.taken) - 1
}

// Available is the number of free accounts.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}
