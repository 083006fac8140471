package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken models a row in the `refresh_tokens` table. The token column
// holds the opaque value handed to the client and is unique. JwtID links the
// row to the `jti` claim of the access token issued alongside it.
//
// A token is active iff it is neither used nor revoked and has not expired.
// Consumption (is_used) happens at most once, on successful rotation.
// Revocation is permanent; there is no un-revoke.
type RefreshToken struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Token       string
	JwtID       uuid.UUID
	ExpiresAt   time.Time
	IsUsed      bool
	IsRevoked   bool
	RevokedAt   *time.Time
	CreatedByIP string
	DeviceName  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the token may still be rotated at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.IsUsed && !t.IsRevoked && now.Before(t.ExpiresAt)
}

// Expired reports whether the token's lifetime has passed, regardless of its
// used/revoked state.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
