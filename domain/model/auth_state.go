package model

import "time"

// AuthState binds one in-flight authorize/callback round trip to a user.
// States are single-use: the registry deletes them on first verification.
type AuthState struct {
	State        string    `json:"state"`
	UserID       string    `json:"user_id"`
	Platform     string    `json:"platform"`
	CodeVerifier string    `json:"code_verifier,omitempty"` // PKCE, when the platform uses it
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ConnectionEvent is published when a credential is created, refreshed or
// removed, so downstream consumers (e.g. the bot) can notify the user.
type ConnectionEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Platform   string    `json:"platform"`
	Action     string    `json:"action"` // connected | refreshed | disconnected
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventConnected    = "connected"
	EventRefreshed    = "refreshed"
	EventDisconnected = "disconnected"
)
