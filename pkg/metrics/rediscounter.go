package metrics

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCounter mirrors Counter's Inc/Add/Value surface but backs the value
// with a shared Redis key, so cache-hit counts recorded by one process
// (e.g. an ingest worker) are visible to another (e.g. the API server)
// reading the same Snapshot.
type RedisCounter struct {
	rdb *redis.Client
	key string
}

// NewRedisCounter returns a counter backed by the given Redis key.
func NewRedisCounter(rdb *redis.Client, key string) *RedisCounter {
	return &RedisCounter{rdb: rdb, key: key}
}

// Inc increments the shared counter by 1.
func (c *RedisCounter) Inc(ctx context.Context) error {
	return c.Add(ctx, 1)
}

// Add increments the shared counter by n.
func (c *RedisCounter) Add(ctx context.Context, n int64) error {
	return c.rdb.IncrBy(ctx, c.key, n).Err()
}

// Value reads the current counter value. A missing key reads as 0.
func (c *RedisCounter) Value(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, c.key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// RedisCachePair tracks a hit/miss counter pair under Redis keys
// "<prefix>:hits" and "<prefix>:misses", following the same naming
// convention Snapshot uses for in-process cache counters.
type RedisCachePair struct {
	Name   string
	hits   *RedisCounter
	misses *RedisCounter
}

// NewRedisCachePair builds a hit/miss pair sharing a Redis client.
func NewRedisCachePair(rdb *redis.Client, name string) *RedisCachePair {
	return &RedisCachePair{
		Name:   name,
		hits:   NewRedisCounter(rdb, name+":hits"),
		misses: NewRedisCounter(rdb, name+":misses"),
	}
}

// Hit records a cache hit.
func (p *RedisCachePair) Hit(ctx context.Context) error { return p.hits.Inc(ctx) }

// Miss records a cache miss.
func (p *RedisCachePair) Miss(ctx context.Context) error { return p.misses.Inc(ctx) }

// Stats reads the current cross-process hit/miss counts and derives a rate.
func (p *RedisCachePair) Stats(ctx context.Context) (CacheStats, error) {
	hits, err := p.hits.Value(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	misses, err := p.misses.Value(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	stats := CacheStats{Name: p.Name, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats, nil
}
