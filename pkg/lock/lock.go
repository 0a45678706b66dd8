// Package lock provides short-lived mutual exclusion keyed by string, backed
// by Redis SETNX with an owner token so only the holder can release.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Second

// Lock is a single exclusive lease.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Locker hands out locks for arbitrary keys.
type Locker interface {
	For(key string) Lock
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

// RedisLock implements Lock using SETNX + TTL. The TTL bounds how long a
// crashed holder can block others.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches, so an
// expired lease never deletes someone else's lock.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// RedisLocker builds RedisLocks under a scope, e.g. "inventory".
type RedisLocker struct {
	client redisStore
	scope  string
	ttl    time.Duration
}

func NewRedisLocker(client redisStore, scope string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	return &RedisLocker{client: client, scope: scope, ttl: ttl}, nil
}

func (l *RedisLocker) For(key string) Lock {
	return &RedisLock{client: l.client, key: l.client.LockKey(l.scope, key), ttl: l.ttlOrDefault()}
}

func (l *RedisLocker) ttlOrDefault() time.Duration {
	if l.ttl <= 0 {
		return defaultTTL
	}
	return l.ttl
}

// MemoryLocker is a process-local Locker for single-replica deployments
// without Redis and for tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (m *MemoryLocker) For(key string) Lock {
	return &memoryLock{parent: m, key: key}
}

// Held reports whether key is currently locked.
func (m *MemoryLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}

type memoryLock struct {
	parent *MemoryLocker
	key    string
	owned  bool
}

func (l *memoryLock) Acquire(context.Context) (bool, error) {
	l.parent.mu.Lock()
	defer l.parent.mu.Unlock()
	if _, taken := l.parent.held[l.key]; taken {
		return false, nil
	}
	l.parent.held[l.key] = struct{}{}
	l.owned = true
	return true, nil
}

func (l *memoryLock) Release(context.Context) error {
	if !l.owned {
		return nil
	}
	l.parent.mu.Lock()
	defer l.parent.mu.Unlock()
	delete(l.parent.held, l.key)
	l.owned = false
	return nil
}
