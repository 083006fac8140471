package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/internal/model"
)

func perm(module, action, resource string) model.Permission {
	return model.Permission{ID: uuid.New(), Module: module, Action: action, Resource: resource}
}

func TestEffectivePermissionsUnion(t *testing.T) {
	st := newMemStore()
	r := NewPermissionResolver(st)
	userID := uuid.New()

	// Two roles with an overlapping grant; the union must de-duplicate.
	st.grantRole(userID, "Editor",
		perm("catalog", "read", ""),
		perm("catalog", "write", ""))
	st.grantRole(userID, "Viewer",
		perm("catalog", "read", ""),
		perm("reports", "read", "sales"))

	perms, err := r.EffectivePermissions(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"catalog.read",
		"catalog.write",
		"reports.read.sales",
	}, perms)
}

func TestEffectivePermissionsNoRoles(t *testing.T) {
	st := newMemStore()
	r := NewPermissionResolver(st)

	perms, err := r.EffectivePermissions(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}

func TestRolesSortedDeduped(t *testing.T) {
	st := newMemStore()
	r := NewPermissionResolver(st)
	userID := uuid.New()

	st.grantRole(userID, "Viewer")
	st.grantRole(userID, "Editor")
	st.grantRole(userID, "Editor") // duplicate assignment

	roles, err := r.Roles(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Editor", "Viewer"}, roles)
}

func TestPermissionStringForms(t *testing.T) {
	assert.Equal(t, "catalog.read", perm("catalog", "read", "").String())
	assert.Equal(t, "catalog.read.products", perm("catalog", "read", "products").String())
}
