package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/model"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "authstate:"

// RedisStateRegistry keeps in-flight authorization states in Redis. GETDEL
// makes consumption single-use across concurrent requests and across service
// instances; Redis TTL enforces expiry without a sweeper.
type RedisStateRegistry struct {
	client *redis.Client
}

func NewRedisStateRegistry(client *redis.Client) *RedisStateRegistry {
	return &RedisStateRegistry{client: client}
}

func (r *RedisStateRegistry) Issue(ctx context.Context, state *model.AuthState, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}
	ok, err := r.client.SetNX(ctx, stateKeyPrefix+state.State, raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("store auth state: %w", err)
	}
	if !ok {
		return fmt.Errorf("auth state collision for %q", state.State)
	}
	return nil
}

func (r *RedisStateRegistry) VerifyAndConsume(ctx context.Context, state string) (*model.AuthState, error) {
	raw, err := r.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autherror.ErrInvalidState
		}
		return nil, fmt.Errorf("consume auth state: %w", err)
	}
	stored := &model.AuthState{}
	if err := json.Unmarshal([]byte(raw), stored); err != nil {
		return nil, fmt.Errorf("unmarshal auth state: %w", err)
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, autherror.ErrInvalidState
	}
	return stored, nil
}
