package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rescam/phishguard/internal/core"
)

const watchKeyPrefix = "phishguard:watch:"

// RedisWatchRepository stores watch cursors in Redis. Suited for setups
// that already run Redis for webhook deduplication.
type RedisWatchRepository struct {
	client *redis.Client
}

// NewRedisWatchRepository connects to the Redis instance at addr
func NewRedisWatchRepository(addr string) (*RedisWatchRepository, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &RedisWatchRepository{client: client}, nil
}

// NewRedisWatchRepositoryWithClient wraps an existing client, sharing the
// connection pool with other Redis users in the process.
func NewRedisWatchRepositoryWithClient(client *redis.Client) *RedisWatchRepository {
	return &RedisWatchRepository{client: client}
}

// Get retrieves the watch state for a user, returning (nil, nil) when none exists
func (r *RedisWatchRepository) Get(ctx context.Context, user string) (*core.WatchState, error) {
	raw, err := r.client.Get(ctx, watchKeyPrefix+user).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch state: %w", err)
	}

	var state core.WatchState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode watch state: %w", err)
	}
	return &state, nil
}

// Set stores the watch state for a user
func (r *RedisWatchRepository) Set(ctx context.Context, state *core.WatchState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode watch state: %w", err)
	}
	if err := r.client.Set(ctx, watchKeyPrefix+state.User, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store watch state: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisWatchRepository) Close() error {
	return r.client.Close()
}
