// redis.go — Redis-backed GuestStore.
//
// Guest identities are session-scoped: each entry carries a TTL and Redis
// handles expiry. When Redis is not configured the gateway falls back to the
// in-memory store — guest sessions then survive only as long as the process.
package store

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const guestKeyPrefix = "chat:guest:"

// RedisGuestStore holds guest identities in Redis with TTL-based expiry.
type RedisGuestStore struct {
	rdb *goredis.Client
}

// NewRedisGuestStore wraps a connected Redis client.
func NewRedisGuestStore(rdb *goredis.Client) *RedisGuestStore {
	return &RedisGuestStore{rdb: rdb}
}

func (s *RedisGuestStore) Get(ctx context.Context, sessionKey string) (string, error) {
	val, err := s.rdb.Get(ctx, guestKeyPrefix+sessionKey).Result()
	if err == goredis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get guest id: %w", err)
	}
	return val, nil
}

func (s *RedisGuestStore) Set(ctx context.Context, sessionKey, guestID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, guestKeyPrefix+sessionKey, guestID, ttl).Err(); err != nil {
		return fmt.Errorf("set guest id: %w", err)
	}
	return nil
}

var _ GuestStore = (*RedisGuestStore)(nil)
