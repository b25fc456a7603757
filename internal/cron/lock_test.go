package cron

import (
	"context"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leaseTable stands in for redis: one holder per key, released by token.
type leaseTable struct {
	holders map[string]int
	next    int
}

func (t *leaseTable) obtain(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	if _, held := t.holders[key]; held {
		return nil, redislock.ErrNotObtained
	}
	t.next++
	token := t.next
	t.holders[key] = token
	return func(context.Context) error {
		if t.holders[key] != token {
			return redislock.ErrLockNotHeld
		}
		delete(t.holders, key)
		return nil
	}, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	table := &leaseTable{holders: map[string]int{}}
	ctx := context.Background()
	first, err := newLeaseLock(table.obtain, "sitestock:cron:lock", time.Hour)
	require.NoError(t, err)
	second, err := newLeaseLock(table.obtain, "sitestock:cron:lock", time.Hour)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, table.holders, "sitestock:cron:lock", "non-holder release must not free the key")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	table := &leaseTable{holders: map[string]int{}}
	lock, err := newLeaseLock(table.obtain, "k", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	delete(table.holders, "k")
	assert.NoError(t, lock.Release(context.Background()))
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = newLeaseLock((&leaseTable{}).obtain, "", time.Minute)
	assert.Error(t, err)
}
