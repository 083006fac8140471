// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into an audit trail.
package queue

import "time"

// Security event types published to the auth.events queue.
const (
	EventUserRegistered = "user.registered"
	EventTokenReuse     = "token.reuse"
	EventAccountLocked  = "account.locked"
)

// AuthEvent is published when something security-relevant happens in the
// identity core: a new account, a lockout, or a consumed refresh token being
// presented again (possible theft). It carries enough for downstream
// consumers to alert or audit without querying the primary database.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	TokenID    string    `json:"token_id,omitempty"`
	RemoteIP   string    `json:"remote_ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
