package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// RedisStore keeps each record in a hash with a value and a version field.
// Batches are applied with WATCH and MULTI/EXEC, so a concurrent write to any
// key of the batch makes Apply fail with ErrConflict.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "chunchun:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", ErrUnavailable, addr, err)
	}
	return client, nil
}

func (s *RedisStore) recordKey(partition, key string) string {
	return s.keyPrefix + partition + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, partition, key string) (Entry, error) {
	vals, err := s.client.HMGet(ctx, s.recordKey(partition, key), fieldValue, fieldVersion).Result()
	if err != nil {
		return Entry{}, unavailable(err)
	}
	return decodeHash(vals)
}

func (s *RedisStore) Exists(ctx context.Context, partition, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.recordKey(partition, key)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (s *RedisStore) Put(ctx context.Context, partition, key string, value []byte) error {
	return single(ctx, s, Op{Kind: OpPut, Partition: partition, Key: key, Value: value})
}

func (s *RedisStore) Replace(ctx context.Context, partition, key string, value []byte, version int64) error {
	return single(ctx, s, Op{Kind: OpReplace, Partition: partition, Key: key, Value: value, Version: version})
}

func (s *RedisStore) Delete(ctx context.Context, partition, key string) error {
	return single(ctx, s, Op{Kind: OpDelete, Partition: partition, Key: key})
}

func (s *RedisStore) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ops))
	for _, op := range ops {
		keys = append(keys, s.recordKey(op.Partition, op.Key))
	}

	txf := func(tx *redis.Tx) error {
		versions := make(map[string]int64, len(ops))
		exists := make(map[string]bool, len(ops))
		for i, op := range ops {
			rk := keys[i]
			if _, seen := exists[rk]; !seen {
				v, err := tx.HGet(ctx, rk, fieldVersion).Int64()
				switch {
				case errors.Is(err, redis.Nil):
					exists[rk] = false
				case err != nil:
					return unavailable(err)
				default:
					exists[rk], versions[rk] = true, v
				}
			}
			if err := op.check(versions[rk], exists[rk]); err != nil {
				return err
			}
			if op.Kind == OpDelete {
				exists[rk], versions[rk] = false, 0
			} else {
				exists[rk] = true
				versions[rk]++
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, op := range ops {
				rk := keys[i]
				if op.Kind == OpDelete {
					pipe.Del(ctx, rk)
					continue
				}
				pipe.HSet(ctx, rk, fieldValue, op.Value, fieldVersion, versions[rk])
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, keys...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrUnavailable):
		return err
	default:
		return unavailable(err)
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeHash(vals []interface{}) (Entry, error) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Entry{}, ErrNotFound
	}
	value, ok := vals[0].(string)
	if !ok {
		return Entry{}, fmt.Errorf("kv: unexpected redis value type %T", vals[0])
	}
	raw, ok := vals[1].(string)
	if !ok {
		return Entry{}, fmt.Errorf("kv: unexpected redis version type %T", vals[1])
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("kv: bad redis version %q: %w", raw, err)
	}
	return Entry{Value: []byte(value), Version: version}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: redis: %v", ErrUnavailable, err)
}
