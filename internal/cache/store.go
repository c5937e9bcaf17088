// Package cache holds short-lived state shared by every directory server instance: write
// rate counters under "rl:" and recorded Idempotency-Key responses under "idem:".
// Redis backs it when configured; otherwise the cache_entries table does.
package cache

import (
	"context"
	"time"
)

// Store is implemented by RedisStore and DatabaseStore.
type Store interface {
	// IncrementWithTTL bumps a fixed-window counter and reports the count and the time left
	// in the window. The window starts at the first increment.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get reports found=false for missing and expired keys.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

const defaultWindow = time.Minute
