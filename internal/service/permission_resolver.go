package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// PermissionResolver aggregates a user's effective permission set from role
// assignments. It is a pure read layer: no caching, no side effects, so role
// changes apply on the very next request.
type PermissionResolver struct {
	roles RoleStore
}

func NewPermissionResolver(roles RoleStore) *PermissionResolver {
	return &PermissionResolver{roles: roles}
}

// Roles returns the user's role names, de-duplicated and sorted. A user with
// no assignments gets an empty slice, not an error.
func (r *PermissionResolver) Roles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	names, err := r.roles.RoleNamesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dedupeSorted(names), nil
}

// EffectivePermissions returns the de-duplicated union of permission strings
// granted by all of the user's roles, in canonical "module.action[.resource]"
// form.
func (r *PermissionResolver) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	roleIDs, err := r.roles.RoleIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) == 0 {
		return []string{}, nil
	}
	perms, err := r.roles.PermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	strs := make([]string, 0, len(perms))
	for _, p := range perms {
		strs = append(strs, p.String())
	}
	return dedupeSorted(strs), nil
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
