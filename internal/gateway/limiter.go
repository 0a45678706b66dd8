package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may proceed. When it
// may not, the returned duration is how long to wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type fixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, time.Duration, error)
}

// RedisLimiter is a fixed window shared by every gateway replica.
type RedisLimiter struct {
	store  fixedWindowStore
	limit  int64
	window time.Duration
}

func NewRedisLimiter(store fixedWindowStore, limit int, window time.Duration) (*RedisLimiter, error) {
	if store == nil {
		return nil, fmt.Errorf("redis limiter requires a store")
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate limit and window must be positive")
	}
	return &RedisLimiter{store: store, limit: int64(limit), window: window}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return l.store.FixedWindowAllow(ctx, "gateway:"+key, l.limit, l.window)
}

// maxBuckets bounds the in-process limiter; idle buckets are swept once it
// is reached.
const maxBuckets = 10000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a token bucket per key, local to one gateway process.
type MemoryLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	idle    time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemoryLimiter refills limit tokens per window with the given burst.
func NewMemoryLimiter(limit int, window time.Duration, burst int) (*MemoryLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate limit and window must be positive")
	}
	if burst <= 0 {
		burst = 1
	}
	return &MemoryLimiter{
		every:   rate.Limit(float64(limit) / window.Seconds()),
		burst:   burst,
		idle:    window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}, nil
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.sweep(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, l.idle, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, key)
		}
	}
}
