package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisWindowStore shares sliding-window counters across processes using a
// Redis sorted set per key, scored by event timestamp. Grounded on the
// teacher's ZAdd/ZRemRangeByScore/ZCard sorted-set primitives in
// core/redis_client.go, which the teacher itself reserves DB 1 for
// ("Rate limiting"). This store follows that same namespacing idiom.
type RedisWindowStore struct {
	client    *redis.Client
	namespace string
	seq       atomic.Uint64
}

// RedisWindowStoreOptions configures a RedisWindowStore.
type RedisWindowStoreOptions struct {
	Client    *redis.Client
	Namespace string
}

// NewRedisWindowStore builds a distributed WindowStore backed by Redis.
func NewRedisWindowStore(opts RedisWindowStoreOptions) *RedisWindowStore {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "astraweave:ratelimit"
	}
	return &RedisWindowStore{client: opts.Client, namespace: namespace}
}

func (s *RedisWindowStore) formatKey(key string) string {
	return fmt.Sprintf("%s:%s", s.namespace, key)
}

func (s *RedisWindowStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	fullKey := s.formatKey(key)
	score := float64(now.UnixNano())
	// Member must be unique per event even when two events share a
	// timestamp (common with a mocked clock), so a sorted set entry is
	// never silently overwritten instead of added.
	member := fmt.Sprintf("%d:%d", now.UnixNano(), s.seq.Add(1))

	cutoff := fmt.Sprintf("%d", now.Add(-window).UnixNano())

	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "-inf", cutoff)
	pipe.ZAdd(ctx, fullKey, &redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, fullKey, window)
	card := pipe.ZCard(ctx, fullKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("resilience: redis window record failed: %w", err)
	}
	return int(card.Val()), nil
}

func (s *RedisWindowStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	fullKey := s.formatKey(key)
	cutoff := fmt.Sprintf("%d", now.Add(-window).UnixNano())

	if err := s.client.ZRemRangeByScore(ctx, fullKey, "-inf", cutoff).Err(); err != nil {
		return 0, fmt.Errorf("resilience: redis window count failed: %w", err)
	}
	count, err := s.client.ZCard(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("resilience: redis window count failed: %w", err)
	}
	return int(count), nil
}
