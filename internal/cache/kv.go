package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the byte-payload store behind the retrieval cache and the
// disambiguation store. The memory backend is volatile; the redis backend
// survives process restarts.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take returns and deletes the value atomically (single consumption).
	Take(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	// Sweep evicts expired entries. Redis expires keys natively, so its
	// implementation is a no-op.
	Sweep()
}

type memoryKV struct {
	inner Cache[string, []byte]
}

// NewMemoryKV returns the in-process KV backend.
func NewMemoryKV() KV {
	return &memoryKV{inner: NewTTLCache[string, []byte]()}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.inner.Get(key)
	return v, ok, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.inner.Set(key, value, ttl)
	return nil
}

func (m *memoryKV) Take(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.inner.Take(key)
	return v, ok, nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.inner.Delete(key)
	return nil
}

func (m *memoryKV) Sweep() {
	m.inner.Sweep()
}

type redisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV returns a redis-backed KV store. Keys are namespaced by prefix.
func NewRedisKV(client *redis.Client, prefix string) KV {
	return &redisKV{client: client, prefix: prefix}
}

func (r *redisKV) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *redisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *redisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisKV) Take(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *redisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *redisKV) Sweep() {}
