package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// CooldownStore gates repeated alerts on the same key. Allow returns
// true when the key is cold and arms the cooldown; it returns false
// while a previous alert on the key is still cooling down.
type CooldownStore interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryCooldown is the in-process cooldown store.
type MemoryCooldown struct {
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
	last map[string]time.Time
}

// NewMemoryCooldown creates an in-memory store with the given TTL.
func NewMemoryCooldown(ttl time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		ttl:  ttl,
		now:  time.Now,
		last: make(map[string]time.Time),
	}
}

// WithClock overrides the clock, for tests.
func (c *MemoryCooldown) WithClock(now func() time.Time) *MemoryCooldown {
	c.now = now
	return c
}

// Allow reports whether the key is cold and arms its cooldown.
func (c *MemoryCooldown) Allow(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if fired, ok := c.last[key]; ok && now.Sub(fired) < c.ttl {
		return false, nil
	}
	c.last[key] = now

	// Opportunistic sweep keeps the map from growing without bound.
	for k, fired := range c.last {
		if now.Sub(fired) >= c.ttl {
			delete(c.last, k)
		}
	}
	return true, nil
}

// RedisCooldown backs the cooldown with Redis so multiple pipeline
// processes share suppression state.
type RedisCooldown struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCooldown creates a Redis-backed store with the given TTL.
func NewRedisCooldown(client *redis.Client, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, ttl: ttl, prefix: "plantpulse:cooldown:"}
}

// Allow arms the key via SET NX with expiry; the write succeeding
// means the key was cold.
func (c *RedisCooldown) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("alerting: redis cooldown: %w", err)
	}
	return ok, nil
}
