package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"InventoryChat/internal/backend"
)

const redisKeyPrefix = "invchat:reply:"

// redisClient is the subset of *redis.Client the cache uses
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Redis shares cached replies between processes
type Redis struct {
	client redisClient
	ttl    time.Duration
}

// NewRedis wraps an existing client. Entries expire after ttl.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (backend.Reply, bool, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return backend.Reply{}, false, nil
		}
		return backend.Reply{}, false, fmt.Errorf("failed to read cached reply: %w", err)
	}

	var reply backend.Reply
	if err := json.Unmarshal([]byte(val), &reply); err != nil {
		return backend.Reply{}, false, fmt.Errorf("failed to unmarshal cached reply: %w", err)
	}
	return reply, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, reply backend.Reply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache reply: %w", err)
	}
	return nil
}
