package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ShardedStore spreads records over several stores with a consistent-hash
// ring. A batch whose keys all live on one shard is applied atomically by
// that shard. A batch spanning shards is applied shard by shard, and when a
// shard fails the shards already written are restored from before-images.
// A concurrent writer can still observe the intermediate state.
type ShardedStore struct {
	shards []Store
	ring   *Ring
}

func NewShardedStore(shards []Store, replicas int) (*ShardedStore, error) {
	if len(shards) == 0 {
		return nil, errors.New("kv: sharded store needs at least one shard")
	}
	return &ShardedStore{shards: shards, ring: NewRing(len(shards), replicas)}, nil
}

func (s *ShardedStore) shard(partition, key string) Store {
	return s.shards[s.ring.Owner(partition, key)]
}

func (s *ShardedStore) Get(ctx context.Context, partition, key string) (Entry, error) {
	return s.shard(partition, key).Get(ctx, partition, key)
}

func (s *ShardedStore) Exists(ctx context.Context, partition, key string) (bool, error) {
	return s.shard(partition, key).Exists(ctx, partition, key)
}

func (s *ShardedStore) Put(ctx context.Context, partition, key string, value []byte) error {
	return s.shard(partition, key).Put(ctx, partition, key, value)
}

func (s *ShardedStore) Replace(ctx context.Context, partition, key string, value []byte, version int64) error {
	return s.shard(partition, key).Replace(ctx, partition, key, value, version)
}

func (s *ShardedStore) Delete(ctx context.Context, partition, key string) error {
	return s.shard(partition, key).Delete(ctx, partition, key)
}

type beforeImage struct {
	op    Op
	entry Entry
	found bool
}

func (s *ShardedStore) Apply(ctx context.Context, ops []Op) error {
	groups := make(map[int][]Op)
	var order []int
	for _, op := range ops {
		idx := s.ring.Owner(op.Partition, op.Key)
		if _, ok := groups[idx]; !ok {
			order = append(order, idx)
		}
		groups[idx] = append(groups[idx], op)
	}
	switch len(order) {
	case 0:
		return nil
	case 1:
		return s.shards[order[0]].Apply(ctx, groups[order[0]])
	}

	var applied []int
	images := make(map[int][]beforeImage, len(order))
	for _, idx := range order {
		shard := s.shards[idx]
		imgs, err := snapshot(ctx, shard, groups[idx])
		if err != nil {
			s.restore(ctx, applied, images)
			return err
		}
		if err := shard.Apply(ctx, groups[idx]); err != nil {
			s.restore(ctx, applied, images)
			return err
		}
		images[idx] = imgs
		applied = append(applied, idx)
	}
	return nil
}

func snapshot(ctx context.Context, shard Store, ops []Op) ([]beforeImage, error) {
	imgs := make([]beforeImage, 0, len(ops))
	for _, op := range ops {
		e, err := shard.Get(ctx, op.Partition, op.Key)
		switch {
		case errors.Is(err, ErrNotFound):
			imgs = append(imgs, beforeImage{op: op})
		case err != nil:
			return nil, fmt.Errorf("kv: snapshot %s/%s: %w", op.Partition, op.Key, err)
		default:
			imgs = append(imgs, beforeImage{op: op, entry: e, found: true})
		}
	}
	return imgs, nil
}

// restore writes back the before-images of shards that were already
// applied. Failures are logged since the original error is what the caller
// needs to see.
func (s *ShardedStore) restore(ctx context.Context, applied []int, images map[int][]beforeImage) {
	for _, idx := range applied {
		restore := make([]Op, 0, len(images[idx]))
		for _, img := range images[idx] {
			if img.found {
				restore = append(restore, Op{Kind: OpPut, Partition: img.op.Partition, Key: img.op.Key, Value: img.entry.Value})
			} else {
				restore = append(restore, Op{Kind: OpDelete, Partition: img.op.Partition, Key: img.op.Key})
			}
		}
		if err := s.shards[idx].Apply(ctx, restore); err != nil {
			logrus.WithError(err).WithField("shard", idx).Error("kv: failed to restore shard after partial apply")
		}
	}
}

func (s *ShardedStore) Close() error {
	var errs []error
	for _, shard := range s.shards {
		if err := shard.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
