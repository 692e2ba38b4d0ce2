package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// KV implements ports.TTLStore on Redis strings. Expiry is enforced by
// Redis itself through the key TTL.
type KV struct {
	client *redis.Client
	prefix string
}

// NewKV wraps the given client. prefix namespaces every key.
func NewKV(client *redis.Client, prefix string) *KV {
	return &KV{client: client, prefix: prefix}
}

func (k *KV) key(key string) string {
	return k.prefix + key
}

// Get returns domain.ErrKeyNotFound for missing or expired keys.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := k.client.Get(ctx, k.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Set stores value with ttl; a non-positive ttl keeps the key forever.
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := k.client.Set(ctx, k.key(key), value, ttlArg(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetMany writes every entry inside MULTI/EXEC.
func (k *KV) SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	_, err := k.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, k.key(key), value, ttlArg(ttl))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set many: %w", err)
	}
	return nil
}

// Delete removes keys; missing keys are ignored.
func (k *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = k.key(key)
	}
	if err := k.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}

func ttlArg(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
