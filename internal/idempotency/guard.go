// Package idempotency remembers processed keys so redelivered webhook updates run once.
package idempotency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard marks keys as seen. FirstSeen returns true only for the first call with a key within ttl.
type Guard interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisGuard struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Guard = (*RedisGuard)(nil)

func NewRedisGuard(client *redis.Client, log *slog.Logger) *RedisGuard {
	if log == nil {
		log = slog.Default()
	}

	return &RedisGuard{client: client, log: log}
}

func (g *RedisGuard) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := g.client.SetNX(ctx, recordKey(key), 1, ttl).Result()
	if err != nil {
		g.log.Error("failed to mark idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func recordKey(key string) string {
	return "idempotency:" + key
}

// MemoryGuard is the in-process Guard used without Redis.
type MemoryGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

var _ Guard = (*MemoryGuard)(nil)

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{keys: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if expires, ok := g.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.keys[key] = now.Add(ttl)
	return true, nil
}

// Prune drops expired keys and returns how many were removed.
func (g *MemoryGuard) Prune() int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, expires := range g.keys {
		if !now.Before(expires) {
			delete(g.keys, key)
			removed++
		}
	}
	return removed
}
