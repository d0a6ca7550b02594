package cache

import (
	"context"

	"github.com/edgebank/assist/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Backends groups the KV stores for the components that share caching.
type Backends struct {
	fx.Out

	Retrieval KV `name:"retrieval_kv"`
	Disambig  KV `name:"disambig_kv"`
}

var Module = fx.Module("cache",
	fx.Provide(
		NewRedisClient,
		NewBackends,
	),
)

// NewRedisClient connects when the redis backend is selected. Deployments on
// the in-memory backend get a nil client.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.CacheBackend != "redis" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			log.Info("redis cache backend connected", zap.String("addr", cfg.RedisAddr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client
}

func NewBackends(client *redis.Client) Backends {
	if client == nil {
		return Backends{
			Retrieval: NewMemoryKV(),
			Disambig:  NewMemoryKV(),
		}
	}
	return Backends{
		Retrieval: NewRedisKV(client, "retrieval"),
		Disambig:  NewRedisKV(client, "disambig"),
	}
}
