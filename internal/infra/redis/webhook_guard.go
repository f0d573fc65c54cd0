package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultEventTTL = 24 * time.Hour

// EventGuard records processed provider event ids with SETNX so redeliveries
// short-circuit before touching the database.
type EventGuard struct {
	client RedisClient
	ttl    time.Duration
}

func NewEventGuard(client RedisClient, ttl time.Duration) (*EventGuard, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &EventGuard{client: client, ttl: ttl}, nil
}

func EventKey(scope, eventID string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, eventID)
}

// CheckAndMark returns true when this call is the first to see eventID.
func (g *EventGuard) CheckAndMark(ctx context.Context, scope, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.client.SetNX(ctx, EventKey(scope, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return set, nil
}

// Release forgets eventID so a redelivery is processed again.
func (g *EventGuard) Release(ctx context.Context, scope, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.client.Del(ctx, EventKey(scope, eventID))
}
