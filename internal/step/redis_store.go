package step

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/stepbot/internal/platform"
)

const (
	stepKeyPrefix   = "step:pending:"
	stepScanPattern = "step:pending:*"
	stepScanCount   = 100
)

// RedisStore keeps pending steps in Redis. A zero ttl keeps steps until consumed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{client: client, ttl: ttl, log: log}
}

func (s *RedisStore) WriteIfAbsent(ctx context.Context, index string, u platform.Update) error {
	data, err := encodeUpdate(u)
	if err != nil {
		return err
	}

	if err := s.client.SetNX(ctx, stepKey(index), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to write step to redis", "index", index, "error", err)
		return err
	}

	return nil
}

func (s *RedisStore) Exists(ctx context.Context, index string) (bool, error) {
	return exists(ctx, s, index)
}

func (s *RedisStore) Delete(ctx context.Context, index string) error {
	if err := s.client.Del(ctx, stepKey(index)).Err(); err != nil {
		s.log.Error("failed to delete step", "index", index, "error", err)
		return err
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, index string) (platform.Update, error) {
	data, err := s.client.Get(ctx, stepKey(index)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStepNotFound
		}

		s.log.Error("failed to get step from redis", "index", index, "error", err)
		return nil, err
	}

	return decodeUpdate(s.log, index, data)
}

func (s *RedisStore) All(ctx context.Context) (map[string]platform.Update, error) {
	var cursor uint64
	result := make(map[string]platform.Update)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, stepScanPattern, stepScanCount).Result()
		if err != nil {
			s.log.Error("failed to scan steps", "error", err)
			return nil, err
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}

				s.log.Error("failed to fetch step", "key", key, "error", err)
				return nil, err
			}

			index := strings.TrimPrefix(key, stepKeyPrefix)
			u, err := decodeUpdate(s.log, index, data)
			if err != nil {
				continue
			}
			result[index] = u
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func stepKey(index string) string {
	return stepKeyPrefix + index
}
