package autherror

import (
	"errors"
	"fmt"
)

// Sentinel errors raised by the connectors and the auth usecase. The social
// usecase is the only place these are mapped to response envelopes.
var (
	// ErrInvalidState means the CSRF state was missing, expired or already consumed.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrAuthorizationDenied means the user declined the consent screen.
	ErrAuthorizationDenied = errors.New("authorization denied by user")

	// ErrTokenExpired means the platform rejected a stored token on an operation.
	ErrTokenExpired = errors.New("access token invalid or expired")

	// ErrRefreshUnsupported means the credential's token type cannot be refreshed.
	ErrRefreshUnsupported = errors.New("token refresh not supported")

	// ErrCredentialNotFound means no credential is stored for the user/platform pair.
	ErrCredentialNotFound = errors.New("credential not found")
)

// UpstreamAuthError means the platform rejected a code exchange or refresh.
type UpstreamAuthError struct {
	Platform   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("%s %s rejected upstream (status %d)", e.Platform, e.Operation, e.StatusCode)
}

// MalformedResponseError means a platform response was missing required fields.
type MalformedResponseError struct {
	Platform string
	Field    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s response missing required field %q", e.Platform, e.Field)
}

// UpstreamError covers other platform failures (network errors, 5xx on
// operations) that are not token or exchange rejections.
type UpstreamError struct {
	Platform  string
	Operation string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s failed upstream: %v", e.Platform, e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
