package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator tracks Pub/Sub message ids so at-least-once push deliveries
// collapse to one pipeline run.
type Deduplicator interface {
	// MarkSeen records the id and reports whether it was fresh.
	MarkSeen(ctx context.Context, messageID string) (bool, error)
}

const dedupeKeyPrefix = "phishguard:webhook:"

// RedisDeduplicator uses SET NX with a TTL, so deduplication works across
// detector replicas sharing one Redis.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: ttl}
}

func (d *RedisDeduplicator) MarkSeen(ctx context.Context, messageID string) (bool, error) {
	fresh, err := d.client.SetNX(ctx, dedupeKeyPrefix+messageID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message seen: %w", err)
	}
	return fresh, nil
}

// MemoryDeduplicator keeps seen ids in a TTL map. Single-process only.
type MemoryDeduplicator struct {
	seen map[string]time.Time
	ttl  time.Duration
	mu   sync.Mutex
}

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (d *MemoryDeduplicator) MarkSeen(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, id)
		}
	}

	if _, ok := d.seen[messageID]; ok {
		return false, nil
	}
	d.seen[messageID] = now.Add(d.ttl)
	return true, nil
}
