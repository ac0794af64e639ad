// Package kv is a small facade over partitioned key-value stores. Records
// carry a version that is bumped on every write, which gives callers
// compare-and-replace, and batches of writes can be applied atomically.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key does not exist in a partition.
	ErrNotFound = errors.New("kv: not found")
	// ErrConflict is returned when a version precondition no longer holds.
	// The caller may retry with fresh reads.
	ErrConflict = errors.New("kv: version conflict")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("kv: backend unavailable")
	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("kv: store closed")
)

// Entry is a stored value together with its version. Versions start at 1.
type Entry struct {
	Value   []byte
	Version int64
}

// Reader reads records.
type Reader interface {
	Get(ctx context.Context, partition, key string) (Entry, error)
	Exists(ctx context.Context, partition, key string) (bool, error)
}

// ReadWriter reads and writes single records.
type ReadWriter interface {
	Reader

	// Put stores value under key, creating it or overwriting any version.
	Put(ctx context.Context, partition, key string, value []byte) error
	// Replace stores value only if the current version equals version.
	Replace(ctx context.Context, partition, key string, value []byte, version int64) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, partition, key string) error
}

// Store is a backend that can also apply a batch of writes all-or-nothing.
type Store interface {
	ReadWriter

	Apply(ctx context.Context, ops []Op) error
	Close() error
}

// OpKind is the kind of a write operation.
type OpKind int

const (
	OpPut OpKind = iota + 1
	OpReplace
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpReplace:
		return "replace"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a single write in a batch.
//
// Replace requires the record to exist at Version. A Delete with a
// non-zero Version is conditional in the same way. Put ignores Version.
type Op struct {
	Kind      OpKind
	Partition string
	Key       string
	Value     []byte
	Version   int64
}

// check verifies the precondition of op against the current state of the
// record. found reports whether the record exists.
func (op Op) check(current int64, found bool) error {
	switch op.Kind {
	case OpReplace:
		if !found {
			return ErrNotFound
		}
		if current != op.Version {
			return ErrConflict
		}
	case OpDelete:
		if op.Version != 0 && (!found || current != op.Version) {
			return ErrConflict
		}
	case OpPut:
	default:
		return errors.New("kv: unknown operation kind")
	}
	return nil
}

// single applies one op through s.Apply. Backends use it for the
// ReadWriter methods.
func single(ctx context.Context, s Store, op Op) error {
	return s.Apply(ctx, []Op{op})
}

type recordKey struct {
	partition string
	key       string
}
