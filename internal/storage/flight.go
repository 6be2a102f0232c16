package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const flightKeyTemplate = "flight:%s"

// FlightGate marks a browser as having a login request outstanding, so the
// form can be rendered disabled and duplicate submits refused. The TTL only
// covers holders that die without releasing.
type FlightGate struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFlightGate(client *redis.Client, ttl time.Duration) *FlightGate {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &FlightGate{client: client, ttl: ttl}
}

// Acquire reports false when another submission already holds the gate.
func (g *FlightGate) Acquire(ctx context.Context, clientID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, fmt.Sprintf(flightKeyTemplate, clientID), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire submission gate: %w", err)
	}
	return ok, nil
}

func (g *FlightGate) Release(ctx context.Context, clientID string) error {
	if err := g.client.Del(ctx, fmt.Sprintf(flightKeyTemplate, clientID)).Err(); err != nil {
		return fmt.Errorf("failed to release submission gate: %w", err)
	}
	return nil
}

// Held reports whether a submission is in flight for the browser.
func (g *FlightGate) Held(ctx context.Context, clientID string) (bool, error) {
	n, err := g.client.Exists(ctx, fmt.Sprintf(flightKeyTemplate, clientID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read submission gate: %w", err)
	}
	return n > 0, nil
}
