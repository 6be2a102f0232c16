package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const durableKeyTemplate = "durable:%s"

// RedisStore is the durable key-value area of one browser. Values survive
// browser restarts and have no expiry.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore scopes a durable store to the given browser identity.
func NewRedisStore(client *redis.Client, clientID string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf(durableKeyTemplate, clientID),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
