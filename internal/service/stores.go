// Package service implements the identity core use cases: registration,
// login, token rotation, SSO, permission aggregation and authorization
// decisions. It owns no persistence; everything flows through the seams
// declared here, which the host wires to concrete implementations.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storegate/internal/model"
	"storegate/internal/queue"
)

// UserStore is the user persistence seam. Implementations must exclude
// soft-deleted rows from every lookup.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	EmailInUse(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
	UsernameInUse(ctx context.Context, username string, exclude uuid.UUID) (bool, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	SetLockoutState(ctx context.Context, id uuid.UUID, failedCount int, lockoutEnd *time.Time, now time.Time) error
	// CreateWithRole provisions the user, the named role (created when
	// absent), the assignment and the initial refresh token atomically.
	CreateWithRole(ctx context.Context, u *model.User, roleName string, rt *model.RefreshToken) error
}

// RoleStore answers flat id-set queries over roles and permissions.
type RoleStore interface {
	RoleIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	PermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]model.Permission, error)
	FindRoleByName(ctx context.Context, name string) (*model.Role, error)
}

// TokenStore is the refresh token persistence seam. ConsumeAndReplace must
// be atomic: of two concurrent calls for the same old token, exactly one may
// return true.
type TokenStore interface {
	GetByValue(ctx context.Context, token string) (*model.RefreshToken, error)
	Insert(ctx context.Context, t *model.RefreshToken) error
	ConsumeAndReplace(ctx context.Context, oldID uuid.UUID, next *model.RefreshToken, now time.Time) (bool, error)
	Revoke(ctx context.Context, token string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

// Identity is what an external SSO provider asserts about a user.
type Identity struct {
	Email     string
	FirstName string
	LastName  string
}

// IdentityVerifier validates a provider-issued credential (e.g. a Google ID
// token) and returns the asserted identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, provider, token string) (Identity, error)
}

// EventPublisher emits security events. Publish failures must not fail the
// request that triggered them; the service logs and continues.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}
