package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/pkg/platform/sentinel"
)

// Locker serializes screening runs per subject. Duplicate concurrent runs
// for the same subject would both diff against the same stale prior check,
// so only one run may hold a subject's lock at a time.
type Locker interface {
	// Acquire takes the lock for key, returning sentinel.ErrLocked when it
	// is already held. The returned release func is safe to call once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker implements the per-subject lock with SET NX PX.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire subject lock: %w", err)
	}
	if !ok {
		return nil, sentinel.ErrLocked
	}
	release := func() {
		// Best-effort; the TTL bounds the damage of a failed delete.
		_ = l.client.Del(context.WithoutCancel(ctx), key).Err()
	}
	return release, nil
}

// MemoryLocker is an in-process Locker for tests and database-less runs.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, sentinel.ErrLocked
	}
	l.held[key] = true
	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, key)
		})
	}
	return release, nil
}
