package kv

import (
	"context"
	"errors"
	"slices"
)

// ErrTxDone is returned when a committed or rolled back transaction is used.
var ErrTxDone = errors.New("kv: transaction already finished")

// Tx is a unit of work. Writes are buffered in order and sent to the store
// in a single Apply on Commit. Reads go to the store unless the key has a
// pending write, in which case the pending value is returned.
//
// A Tx is not safe for concurrent use.
type Tx struct {
	store   Store
	ops     []Op
	pending map[recordKey]int
	done    bool
}

// Begin starts a unit of work against store.
func Begin(store Store) *Tx {
	return &Tx{store: store, pending: make(map[recordKey]int)}
}

// RunInTx runs fn inside a unit of work and commits it if fn succeeds.
// The unit is rolled back on every other path.
func RunInTx(ctx context.Context, store Store, fn func(tx *Tx) error) error {
	tx := Begin(store)
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns the pending value of key if there is one, and otherwise reads
// from the store. The version of a pending record is the precondition it
// carries, so a later Replace with that version succeeds.
func (tx *Tx) Get(ctx context.Context, partition, key string) (Entry, error) {
	if tx.done {
		return Entry{}, ErrTxDone
	}
	if i, ok := tx.pending[recordKey{partition, key}]; ok {
		op := tx.ops[i]
		if op.Kind == OpDelete {
			return Entry{}, ErrNotFound
		}
		return Entry{Value: slices.Clone(op.Value), Version: op.Version}, nil
	}
	return tx.store.Get(ctx, partition, key)
}

func (tx *Tx) Exists(ctx context.Context, partition, key string) (bool, error) {
	_, err := tx.Get(ctx, partition, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (tx *Tx) Put(_ context.Context, partition, key string, value []byte) error {
	return tx.add(Op{Kind: OpPut, Partition: partition, Key: key, Value: value})
}

func (tx *Tx) Replace(_ context.Context, partition, key string, value []byte, version int64) error {
	return tx.add(Op{Kind: OpReplace, Partition: partition, Key: key, Value: value, Version: version})
}

func (tx *Tx) Delete(_ context.Context, partition, key string) error {
	return tx.add(Op{Kind: OpDelete, Partition: partition, Key: key})
}

// add buffers op. A second write to the same key replaces the first one but
// keeps its precondition.
func (tx *Tx) add(op Op) error {
	if tx.done {
		return ErrTxDone
	}
	op.Value = slices.Clone(op.Value)

	rk := recordKey{op.Partition, op.Key}
	i, ok := tx.pending[rk]
	if !ok {
		tx.pending[rk] = len(tx.ops)
		tx.ops = append(tx.ops, op)
		return nil
	}

	prev := tx.ops[i]
	if op.Kind == OpReplace {
		if prev.Kind == OpDelete {
			return ErrNotFound
		}
		if op.Version != prev.Version {
			return ErrConflict
		}
	}
	conditional := prev.Kind == OpReplace || (prev.Kind == OpDelete && prev.Version != 0)
	switch {
	case op.Kind == OpDelete:
		op.Version = 0
		if conditional {
			op.Version = prev.Version
		}
	case conditional:
		op.Kind, op.Version = OpReplace, prev.Version
	default:
		op.Kind, op.Version = OpPut, 0
	}
	tx.ops[i] = op
	return nil
}

// Pending returns the number of buffered writes.
func (tx *Tx) Pending() int {
	return len(tx.ops)
}

// Commit applies the buffered writes atomically. After Commit the Tx is
// finished whether or not Apply succeeded.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	ops := tx.ops
	tx.ops, tx.pending = nil, nil
	if len(ops) == 0 {
		return nil
	}
	return tx.store.Apply(ctx, ops)
}

// Rollback discards the buffered writes. It is a no-op on a finished Tx.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.ops, tx.pending = nil, nil
}
