package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Authentication providers recognised by the users table. Accounts created
// through an external provider may have no password hash at all.
const (
	ProviderLocal    = "local"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// User represents a row in the `users` table. Email and username are unique
// among rows where is_deleted = 0; soft-deleted rows are invisible to every
// repository lookup.
//
// Fields:
//  ID                – primary key (UUID, stored as CHAR(36)).
//  Email             – unique, stored lower-cased.
//  Username          – unique login/display handle.
//  FirstName         – given name.
//  LastName          – family name.
//  PhoneNumber       – optional contact number ("" when unset).
//  PasswordHash      – PBKDF2 hash; nil for externally authenticated accounts.
//  Provider          – "local", "google" or "facebook".
//  EmailConfirmed    – whether the address has been verified.
//  AccessFailedCount – consecutive failed login attempts since last success.
//  LockoutEnd        – end of the current lockout window; nil when not locked.
//  CreatedAt/UpdatedAt/DeletedAt – audit timestamps.
//  IsDeleted         – soft-delete flag.
type User struct {
	ID                uuid.UUID
	Email             string
	Username          string
	FirstName         string
	LastName          string
	PhoneNumber       string
	PasswordHash      *string
	Provider          string
	EmailConfirmed    bool
	AccessFailedCount int
	LockoutEnd        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
	IsDeleted         bool
}

// IsLockedOut reports whether the account is inside a lockout window at the
// given instant.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

// Role is a named grouping of permissions. NormalizedName holds the
// upper-cased form used for case-insensitive lookups.
type Role struct {
	ID             uuid.UUID
	Name           string
	NormalizedName string
	CreatedAt      time.Time
}

// NormalizeRoleName returns the canonical lookup form of a role name.
func NormalizeRoleName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Permission is an atomic capability described by (module, action, resource).
// Resource is optional; the canonical string form is "module.action" or
// "module.action.resource".
type Permission struct {
	ID       uuid.UUID
	Module   string
	Action   string
	Resource string
}

// String returns the canonical permission string.
func (p Permission) String() string {
	if p.Resource == "" {
		return p.Module + "." + p.Action
	}
	return p.Module + "." + p.Action + "." + p.Resource
}

// UserRole joins users to roles and records who made the assignment.
type UserRole struct {
	UserID     uuid.UUID
	RoleID     uuid.UUID
	AssignedBy uuid.UUID
	AssignedAt time.Time
}

// RolePermission joins roles to permissions and records the grant audit.
type RolePermission struct {
	RoleID       uuid.UUID
	PermissionID uuid.UUID
	GrantedBy    uuid.UUID
	GrantedAt    time.Time
}
