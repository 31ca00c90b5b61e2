package model

import "time"

// Platform identifiers for the supported connectors
const (
	PlatformThreads = "threads"
	PlatformTwitter = "twitter"
)

// Credential stores one user's OAuth link to one platform. Token fields are
// encrypted at rest by the persistence layer; in-memory values are plaintext.
type Credential struct {
	UserID       string     `json:"user_id"`
	Platform     string     `json:"platform"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsExpired reports whether the access token is past its expiry.
// Credentials without an expiry never expire.
func (c *Credential) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return now.After(*c.ExpiresAt)
}

// HasRefreshToken reports whether a separate refresh token was issued.
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// TokenGrant is the normalized result of a code exchange or token refresh.
// ExpiresIn of zero means the platform issued a non-expiring token.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scopes       []string
}

// TokenValidity is computed on demand from a credential; never persisted.
type TokenValidity struct {
	IsConnected      bool   `json:"is_connected"`
	IsValid          bool   `json:"is_valid"`
	ExpiresInSeconds *int64 `json:"expires_in_seconds"`
	CanRefresh       bool   `json:"can_refresh"`
}

// AccountInfo is the platform-agnostic shape of a fetched account.
type AccountInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// PostResult identifies a published post on the platform.
type PostResult struct {
	PostID    string    `json:"post_id"`
	Permalink string    `json:"permalink,omitempty"`
	PostedAt  time.Time `json:"posted_at"`
}
