package repository

import (
	"context"

	"social-gateway/domain/model"
)

// IPlatformConnector encapsulates everything one platform does differently:
// URL construction, code exchange, token lifetime rules, refresh, and the
// post/account operations. The auth and social usecases stay platform-agnostic;
// adding a platform means one new implementation, registered in the lookup
// table at startup.
type IPlatformConnector interface {
	// Platform returns the connector's platform tag (model.PlatformThreads, ...).
	Platform() string

	// BuildAuthorizationURL constructs the platform's consent URL embedding
	// the state token. Pure; no side effects.
	BuildAuthorizationURL(state *model.AuthState) (string, error)

	// ExchangeCode trades an authorization code for tokens. Fails with
	// *autherror.UpstreamAuthError on rejection and
	// *autherror.MalformedResponseError when required fields are absent.
	ExchangeCode(ctx context.Context, code string, state *model.AuthState) (*model.TokenGrant, error)

	// CalculateExpirationTime returns the token lifetime in seconds, or nil
	// for tokens that never expire.
	CalculateExpirationTime(credential *model.Credential) *int64

	// CanRefreshToken reports whether this credential can be refreshed under
	// the platform's token semantics.
	CanRefreshToken(credential *model.Credential) bool

	// Refresh obtains a new grant. Fails with autherror.ErrRefreshUnsupported
	// when CanRefreshToken is false.
	Refresh(ctx context.Context, credential *model.Credential) (*model.TokenGrant, error)

	// FetchAccount and Publish are the platform operations. Both fail with
	// autherror.ErrTokenExpired when the platform signals an invalid token,
	// and *autherror.UpstreamError for other failures.
	FetchAccount(ctx context.Context, credential *model.Credential) (*model.AccountInfo, error)
	Publish(ctx context.Context, credential *model.Credential, content string) (*model.PostResult, error)
}
