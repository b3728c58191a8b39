package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore хранит окна в Redis, поэтому лимит общий для всех реплик.
// Ключи вида ratelimit:<key> живут до конца окна.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisStore создаёт RedisStore поверх готового клиента.
func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window}
}

// Allow реализует Store через SET NX: запись удаётся только первому
// запросу в окне.
func (s *RedisStore) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), "1", s.window).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit check: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) key(key string) string {
	return "ratelimit:" + key
}
