package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/cache"
)

const (
	defaultRateWindow = time.Minute
	sweepInterval     = time.Minute
)

// RateStore counts hits per key in fixed windows.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

type rateWindow struct {
	hits int
	ends time.Time
}

// MemoryRateStore counts in process memory. Lapsed windows are dropped during Increment at
// most once per sweepInterval, so it needs no background goroutine. Only the HTTP test
// harness and single-instance setups should use it.
type MemoryRateStore struct {
	mu        sync.Mutex
	windows   map[string]*rateWindow
	lastSweep time.Time
	clock     func() time.Time
}

// NewMemoryRateStore returns an empty store.
func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{windows: make(map[string]*rateWindow), clock: time.Now}
}

func (s *MemoryRateStore) Increment(_ context.Context, key string, length time.Duration) (int, time.Duration, error) {
	if length <= 0 {
		length = defaultRateWindow
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= sweepInterval {
		for k, w := range s.windows {
			if now.After(w.ends) {
				delete(s.windows, k)
			}
		}
		s.lastSweep = now
	}

	w, ok := s.windows[key]
	if !ok || now.After(w.ends) {
		w = &rateWindow{ends: now.Add(length)}
		s.windows[key] = w
	}
	w.hits++
	return w.hits, w.ends.Sub(now), nil
}

// Len reports how many windows are tracked.
func (s *MemoryRateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

type cacheRateStore struct {
	cache cache.Store
}

// NewCacheRateStore counts in the shared cache (Redis or cache_entries) so limits hold
// across server instances. A nil cache yields a nil RateStore, which disables limiting.
func NewCacheRateStore(c cache.Store) RateStore {
	if c == nil {
		return nil
	}
	return cacheRateStore{cache: c}
}

func (s cacheRateStore) Increment(ctx context.Context, key string, length time.Duration) (int, time.Duration, error) {
	if length <= 0 {
		length = defaultRateWindow
	}
	count, ttl, err := s.cache.IncrementWithTTL(ctx, key, length)
	return int(count), ttl, err
}
