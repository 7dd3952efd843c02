package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// MaxCallbackData is the Telegram limit for callback_data, in bytes.
	MaxCallbackData = 64

	refPrefix        = "#"
	payloadKeyPrefix = "cbp:"
	payloadTTL       = 24 * time.Hour
	memoryCapacity   = 10000
)

// PayloadStore keeps callback payloads that do not fit into a button.
type PayloadStore interface {
	Put(ctx context.Context, payload string) (string, error)
	Get(ctx context.Context, key string) (string, bool, error)
}

// RedisPayloadStore stores payloads under a content hash, so the same payload always maps to one key.
type RedisPayloadStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PayloadStore = (*RedisPayloadStore)(nil)

func NewRedisPayloadStore(client *redis.Client) *RedisPayloadStore {
	return &RedisPayloadStore{client: client, ttl: payloadTTL}
}

func (s *RedisPayloadStore) Put(ctx context.Context, payload string) (string, error) {
	sum := sha256.Sum256([]byte(payload))
	key := hex.EncodeToString(sum[:16])
	if err := s.client.Set(ctx, payloadKeyPrefix+key, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store callback payload: %w", err)
	}
	return key, nil
}

func (s *RedisPayloadStore) Get(ctx context.Context, key string) (string, bool, error) {
	payload, err := s.client.Get(ctx, payloadKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load callback payload: %w", err)
	}
	return payload, true, nil
}

// MemoryPayloadStore is the in-process fallback. The oldest payloads are evicted past its capacity.
type MemoryPayloadStore struct {
	mu       sync.Mutex
	byKey    map[string]string
	byValue  map[string]string
	order    []string
	capacity int
}

var _ PayloadStore = (*MemoryPayloadStore)(nil)

func NewMemoryPayloadStore() *MemoryPayloadStore {
	return &MemoryPayloadStore{
		byKey:    make(map[string]string),
		byValue:  make(map[string]string),
		capacity: memoryCapacity,
	}
}

func (s *MemoryPayloadStore) Put(_ context.Context, payload string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.byValue[payload]; ok {
		return key, nil
	}

	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.byKey[key] = payload
	s.byValue[payload] = key
	s.order = append(s.order, key)

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byValue, s.byKey[oldest])
		delete(s.byKey, oldest)
	}
	return key, nil
}

func (s *MemoryPayloadStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.byKey[key]
	return payload, ok, nil
}

// shrink returns payload itself when it fits into callback_data, otherwise a "#key" reference.
func shrink(ctx context.Context, store PayloadStore, payload string) (string, error) {
	if len(payload) <= MaxCallbackData || store == nil {
		return payload, nil
	}
	key, err := store.Put(ctx, payload)
	if err != nil {
		return "", err
	}
	return refPrefix + key, nil
}

// expand resolves a "#key" reference. Unknown or expired references are returned unchanged.
func expand(ctx context.Context, store PayloadStore, data string) (string, error) {
	if store == nil || !strings.HasPrefix(data, refPrefix) {
		return data, nil
	}
	payload, ok, err := store.Get(ctx, strings.TrimPrefix(data, refPrefix))
	if err != nil {
		return data, err
	}
	if !ok {
		return data, nil
	}
	return payload, nil
}
