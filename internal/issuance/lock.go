package issuance

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// ErrLockNotObtained is returned when another holder kept the lock for the
// whole wait window.
var ErrLockNotObtained = errors.New("issuance lock not obtained")

// RequestLocker serializes work on one material request across API replicas.
type RequestLocker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// RedisLocker is a RequestLocker backed by bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client redislock.RedisClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: redislock.New(client), ttl: ttl, wait: wait}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{}
	if l.wait > 0 {
		backoff := redislock.LinearBackoff(100 * time.Millisecond)
		attempts := int(l.wait / (100 * time.Millisecond))
		opts.RetryStrategy = redislock.LimitRetry(backoff, attempts)
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// detached so a cancelled request still frees the key
		_ = lock.Release(context.Background())
	}, nil
}

type noopLocker struct{}

func (noopLocker) Obtain(context.Context, string) (func(), error) {
	return func() {}, nil
}
