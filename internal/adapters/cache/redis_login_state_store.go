package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgeworks/auth-connector/internal/ports"
)

const loginStateKeyPrefix = "auth:login:state:"

// RedisLoginStateStore keeps short-lived login state envelopes keyed by the
// opaque state parameter. Entries expire via Redis TTL so an abandoned login
// leaves nothing behind.
type RedisLoginStateStore struct {
	client *redis.Client
}

func NewRedisLoginStateStore(client *redis.Client) *RedisLoginStateStore {
	return &RedisLoginStateStore{client: client}
}

func (s *RedisLoginStateStore) Put(ctx context.Context, state string, value ports.LoginState, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal login state: %w", err)
	}
	return s.client.Set(ctx, loginStateKeyPrefix+state, raw, ttl).Err()
}

// Get returns (nil, nil) when the state is unknown or already expired.
func (s *RedisLoginStateStore) Get(ctx context.Context, state string) (*ports.LoginState, error) {
	raw, err := s.client.Get(ctx, loginStateKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out ports.LoginState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal login state: %w", err)
	}
	return &out, nil
}

func (s *RedisLoginStateStore) Delete(ctx context.Context, state string) error {
	return s.client.Del(ctx, loginStateKeyPrefix+state).Err()
}
