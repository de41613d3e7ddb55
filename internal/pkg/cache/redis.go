package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store on top of go-redis.
type Redis struct {
	rdb *redis.Client
}

// Connect creates a Redis-backed store and verifies connectivity.
func Connect(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Raw returns the underlying redis.Client for advanced usage (queues, pub/sub).
func (c *Redis) Raw() *redis.Client { return c.rdb }

// Ping checks connectivity.
func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == KeepTTL {
		ttl = redis.KeepTTL
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Redis) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func (c *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis maps the raw TTL sentinels through as -1 (no expiry) and
	// -2 (missing key) nanosecond durations.
	switch d {
	case -1:
		return 0, nil
	case -2:
		return -1, nil
	}
	return d, nil
}

func (c *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	return c.rdb.SAdd(ctx, key, toAny(members)...).Err()
}

func (c *Redis) SRem(ctx context.Context, key string, members ...string) error {
	return c.rdb.SRem(ctx, key, toAny(members)...).Err()
}

func (c *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.rdb.SMembers(ctx, key).Result()
}

func (c *Redis) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

func (c *Redis) Pipelined(ctx context.Context, fn func(p Pipeliner)) error {
	pipe := c.rdb.TxPipeline()
	fn(&redisPipe{ctx: ctx, pipe: pipe})
	_, err := pipe.Exec(ctx)
	return err
}

type redisPipe struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (p *redisPipe) Set(key, value string, ttl time.Duration) {
	if ttl == KeepTTL {
		ttl = redis.KeepTTL
	}
	p.pipe.Set(p.ctx, key, value, ttl)
}

func (p *redisPipe) Del(keys ...string) {
	p.pipe.Del(p.ctx, keys...)
}

func (p *redisPipe) SAdd(key string, members ...string) {
	p.pipe.SAdd(p.ctx, key, toAny(members)...)
}

func (p *redisPipe) SRem(key string, members ...string) {
	p.pipe.SRem(p.ctx, key, toAny(members)...)
}

func toAny(members []string) []interface{} {
	out := make([]interface{}, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}
