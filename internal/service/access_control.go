package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"storegate/internal/auth"
	"storegate/internal/repository"
)

// Role names with built-in meaning. AdminRole short-circuits every
// authorization check; DefaultRole is assigned on registration.
const (
	AdminRole   = "Admin"
	DefaultRole = "User"
)

// Decision is the outcome of an authorization check. Reason is a short
// human-readable explanation suitable for audit logs.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// AccessControl answers "may user U perform action A on resource R[id]?".
// It re-reads roles on every call; there is no decision cache.
type AccessControl struct {
	users    UserStore
	resolver *PermissionResolver
}

func NewAccessControl(users UserStore, resolver *PermissionResolver) *AccessControl {
	return &AccessControl{users: users, resolver: resolver}
}

// Evaluate walks the decision procedure in order, first match wins:
// admin role, then the ownership policy for "user" resources, then deny.
// A caller that does not exist is an error (auth.ErrUserNotFound), not a
// deny. Action and resource type comparisons are case-insensitive. A caller
// with zero roles can still be granted self access.
func (a *AccessControl) Evaluate(ctx context.Context, callerID uuid.UUID, action, resourceType string, resourceID *uuid.UUID) (Decision, error) {
	if _, err := a.users.GetByID(ctx, callerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Decision{}, auth.ErrUserNotFound
		}
		return Decision{}, err
	}

	roles, err := a.resolver.Roles(ctx, callerID)
	if err != nil {
		return Decision{}, err
	}
	for _, r := range roles {
		if strings.EqualFold(r, AdminRole) {
			return Decision{Allowed: true, Reason: "admin role"}, nil
		}
	}

	if strings.EqualFold(resourceType, "user") {
		switch {
		case resourceID != nil && *resourceID == callerID:
			return Decision{Allowed: true, Reason: "resource ownership"}, nil
		case resourceID == nil && strings.EqualFold(action, "read"):
			return Decision{Allowed: true, Reason: "self read access"}, nil
		default:
			return Decision{Allowed: false, Reason: "no ownership or admin access"}, nil
		}
	}

	return Decision{Allowed: false, Reason: "resource not supported"}, nil
}
