package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the credential in Redis so that separate CLI
// invocations share one session. Entries expire with the given TTL; an
// expired entry reads back as empty, which callers treat the same as a
// missing credential.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed credential store. sessionID
// namespaces the key so concurrent sessions do not overwrite each other.
func NewRedisStore(client *redis.Client, sessionID string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    "stickies:credential:" + sessionID,
		ttl:    ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, credential string) error {
	if err := s.client.Set(ctx, s.key, credential, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
