package kv

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps all partitions in process memory. It is used by tests
// and by single-node demos.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[recordKey]Entry
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[recordKey]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, partition, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Entry{}, ErrClosed
	}
	e, ok := s.data[recordKey{partition, key}]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Value: slices.Clone(e.Value), Version: e.Version}, nil
}

func (s *MemoryStore) Exists(_ context.Context, partition, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.data[recordKey{partition, key}]
	return ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, partition, key string, value []byte) error {
	return single(ctx, s, Op{Kind: OpPut, Partition: partition, Key: key, Value: value})
}

func (s *MemoryStore) Replace(ctx context.Context, partition, key string, value []byte, version int64) error {
	return single(ctx, s, Op{Kind: OpReplace, Partition: partition, Key: key, Value: value, Version: version})
}

func (s *MemoryStore) Delete(ctx context.Context, partition, key string) error {
	return single(ctx, s, Op{Kind: OpDelete, Partition: partition, Key: key})
}

// Apply checks every precondition first and only then writes, so a failed
// batch leaves the store untouched.
func (s *MemoryStore) Apply(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	staged := make(map[recordKey]*Entry, len(ops))
	lookup := func(rk recordKey) *Entry {
		if e, ok := staged[rk]; ok {
			return e
		}
		if e, ok := s.data[rk]; ok {
			return &e
		}
		return nil
	}

	for _, op := range ops {
		rk := recordKey{op.Partition, op.Key}
		cur := lookup(rk)
		var version int64
		if cur != nil {
			version = cur.Version
		}
		if err := op.check(version, cur != nil); err != nil {
			return err
		}
		if op.Kind == OpDelete {
			staged[rk] = nil
			continue
		}
		staged[rk] = &Entry{Value: slices.Clone(op.Value), Version: version + 1}
	}

	for rk, e := range staged {
		if e == nil {
			delete(s.data, rk)
			continue
		}
		s.data[rk] = *e
	}
	return nil
}

// Len returns the number of records in partition.
func (s *MemoryStore) Len(partition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for rk := range s.data {
		if rk.partition == partition {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
