package optout

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const prefKeyPrefix = "driftgate:optout:"

// RedisStore is the production preference store for distributed deployments
// where multiple instances share opt-out state.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed preference store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, scope string) (*Preference, error) {
	val, err := s.client.Get(ctx, prefKeyPrefix+scope).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &Preference{Scope: scope, Disabled: val == "1"}, nil
}

func (s *RedisStore) Put(ctx context.Context, pref Preference) error {
	val := "0"
	if pref.Disabled {
		val = "1"
	}
	if err := s.client.Set(ctx, prefKeyPrefix+pref.Scope, val, 0).Err(); err != nil {
		return fmt.Errorf("put preference: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, scope string) error {
	n, err := s.client.Del(ctx, prefKeyPrefix+scope).Result()
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
