package cache

import (
	"context"
	"sync"
	"time"

	"social-gateway/domain/autherror"
	"social-gateway/domain/model"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStateRegistry backs the state registry with a TTL cache for
// environments without Redis (local development, tests). Single-instance
// only; the mutex makes verify-and-consume atomic within the process.
type MemoryStateRegistry struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *model.AuthState]
}

func NewMemoryStateRegistry() *MemoryStateRegistry {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *model.AuthState](),
	)
	go c.Start()
	return &MemoryStateRegistry{cache: c}
}

func (r *MemoryStateRegistry) Issue(_ context.Context, state *model.AuthState, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(state.State, state, ttl)
	return nil
}

func (r *MemoryStateRegistry) VerifyAndConsume(_ context.Context, state string) (*model.AuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.cache.Get(state)
	if item == nil {
		return nil, autherror.ErrInvalidState
	}
	r.cache.Delete(state)
	stored := item.Value()
	if time.Now().After(stored.ExpiresAt) {
		return nil, autherror.ErrInvalidState
	}
	return stored, nil
}

// Close stops the expiration goroutine.
func (r *MemoryStateRegistry) Close() {
	r.cache.Stop()
}
