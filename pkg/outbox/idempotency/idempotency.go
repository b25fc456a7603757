// Package idempotency dedupes Pub/Sub deliveries per consumer. A consumer
// claims an event id before handling it and forgets the claim when handling
// fails, so the redelivery is processed again.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager keeps claims for ttl. Zero ttl keeps them until deleted.
func NewManager(s store, ttl time.Duration) (*Manager, error) {
	switch {
	case s == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: s, ttl: ttl, now: time.Now}, nil
}

// Claim reports whether this call is the first to see eventID for consumer.
// A false result means a previous delivery already claimed it.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return fresh, nil
}

// Forget drops a claim after a failed attempt.
func (m *Manager) Forget(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
