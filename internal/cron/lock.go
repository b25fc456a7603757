package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

const defaultLockTTL = 55 * time.Minute

// Lock keeps a cron cycle to one worker replica at a time.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type obtainFunc func(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)

// RedisLock is a non-blocking lease on a single key. Acquire reports false
// when another replica holds it.
type RedisLock struct {
	obtain obtainFunc
	key    string
	ttl    time.Duration

	mu      sync.Mutex
	release func(context.Context) error
}

func NewRedisLock(client redislock.RedisClient, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	locks := redislock.New(client)
	return newLeaseLock(func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
		lease, err := locks.Obtain(ctx, key, ttl, nil)
		if err != nil {
			return nil, err
		}
		return lease.Release, nil
	}, key, ttl)
}

func newLeaseLock(obtain obtainFunc, key string, ttl time.Duration) (*RedisLock, error) {
	if obtain == nil {
		return nil, errors.New("lock backend required")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{obtain: obtain, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.release != nil {
		return false, nil
	}
	release, err := l.obtain(ctx, l.key, l.ttl)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("obtain %s: %w", l.key, err)
	}
	l.release = release
	return true, nil
}

// Release is a no-op when this instance holds nothing, or when the lease
// already expired.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.release == nil {
		return nil
	}
	err := l.release(ctx)
	l.release = nil
	if err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
