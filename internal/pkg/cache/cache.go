package cache

import (
	"context"
	"time"
)

// KeepTTL asks Set to preserve the key's current expiry.
const KeepTTL = time.Duration(-1)

// Pipeliner batches write commands. Batches are issued together but carry no
// all-or-nothing guarantee beyond the backend's per-command semantics; readers
// of multi-key structures must tolerate partially applied batches.
type Pipeliner interface {
	Set(key, value string, ttl time.Duration)
	Del(keys ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
}

// Store is the TTL key-value surface the auth subsystem runs on.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes a value. ttl of 0 means no expiry; KeepTTL preserves the
	// key's existing expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining lifetime, 0 when the key has no expiry and
	// a negative duration when the key does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// MGet returns the present keys and their values; absent keys are omitted.
	MGet(ctx context.Context, keys ...string) (map[string]string, error)

	// Pipelined runs fn against a batch and flushes it.
	Pipelined(ctx context.Context, fn func(p Pipeliner)) error
}
