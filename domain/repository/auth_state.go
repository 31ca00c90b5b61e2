package repository

import (
	"context"
	"time"

	"social-gateway/domain/model"
)

// IAuthState issues and verifies the single-use CSRF state tokens that bind
// an authorization attempt to a user. VerifyAndConsume must be atomic: two
// calls with the same state can never both succeed, even across instances.
type IAuthState interface {
	// Issue stores the attempt under its state token with the given TTL.
	Issue(ctx context.Context, state *model.AuthState, ttl time.Duration) error
	// VerifyAndConsume atomically looks up and deletes the state. It returns
	// autherror.ErrInvalidState when the state is absent, expired or was
	// already consumed.
	VerifyAndConsume(ctx context.Context, state string) (*model.AuthState, error)
}
