package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewCache connects a Redis client; callers treat a nil client as "Redis not
// available" and fall back to the in-memory registry.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
