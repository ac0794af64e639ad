package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akostadinov/chunchun/config"
	"github.com/akostadinov/chunchun/internal/db"
	"github.com/akostadinov/chunchun/internal/graph"
	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/mq"
	"github.com/akostadinov/chunchun/internal/storage"
	"github.com/akostadinov/chunchun/internal/store"
	"github.com/sirupsen/logrus"
)

// OpenStore builds the kv backend named by cfg.Store.Backend.
func OpenStore(ctx context.Context, cfg config.Config) (kv.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	logrus.WithField("backend", backend).Info("opening kv store")

	switch backend {
	case "", "memory":
		return kv.NewMemoryStore(), nil
	case "redis":
		client, err := kv.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return kv.NewRedisStore(client, cfg.Redis.KeyPrefix), nil
	case "postgres":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", kv.ErrUnavailable, err)
		}
		return kv.NewPostgresStore(conn), nil
	case "sharded":
		if len(cfg.Redis.Shards) == 0 {
			return nil, fmt.Errorf("sharded store needs REDIS_SHARDS")
		}
		shards := make([]kv.Store, 0, len(cfg.Redis.Shards))
		for _, addr := range cfg.Redis.Shards {
			client, err := kv.NewRedisClient(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				for _, s := range shards {
					_ = s.Close()
				}
				return nil, fmt.Errorf("shard %s: %w", addr, err)
			}
			shards = append(shards, kv.NewRedisStore(client, cfg.Redis.KeyPrefix))
		}
		sharded, err := kv.NewShardedStore(shards, cfg.Redis.ShardReplicas)
		if err != nil {
			for _, s := range shards {
				_ = s.Close()
			}
			return nil, err
		}
		return sharded, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// OpenStorage builds the avatar storage named by cfg.Storage.Backend. The
// kv backend keeps avatars in the avatars partition of s.
func OpenStorage(ctx context.Context, cfg config.Config, s kv.Store) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "kv":
		backend = storage.NewPartitionStorage(s, store.AvatarsPartition)
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	objects := storage.NewStorage(backend)
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
	}
	return objects, nil
}

// OpenMQ builds the event bus named by cfg.MQ.Backend.
func OpenMQ(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MQ.Backend)) {
	case "", "local":
		return mq.New(mq.NewLocalBroker()), nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// GraphConfig maps the CHUNCHUN_INIT_* settings to generator settings.
func GraphConfig(cfg config.Config) graph.Config {
	return graph.Config{
		Users:          cfg.Init.Users,
		Watches:        cfg.Init.Watches,
		MutualPercent:  cfg.Init.MutualPercent,
		Posts:          cfg.Init.Posts,
		BalanceDivisor: cfg.Init.BalanceDivisor,
		PasswordCost:   cfg.Init.PasswordCost,
	}
}

// Populate runs the generator once. An already populated store is not an
// error.
func Populate(ctx context.Context, s kv.Store, avatars *storage.Storage, cfg graph.Config) (graph.Summary, error) {
	g, err := graph.NewGenerator(s, cfg, graph.WithAvatarStorage(avatars))
	if err != nil {
		return graph.Summary{}, err
	}
	summary, err := g.Populate(ctx)
	if errors.Is(err, graph.ErrAlreadyPopulated) {
		logrus.Info("store already populated, skipping generation")
		return summary, nil
	}
	return summary, err
}
