package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"storegate/internal/model"
)

// RoleRepo answers the flat id-set queries the permission resolver is built
// on: user -> role ids -> permission strings. No object graphs, no caching;
// every call re-reads current state so role changes apply immediately.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// RoleIDsForUser returns the ids of every role assigned to the user.
func (r *RoleRepo) RoleIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT role_id FROM user_roles WHERE user_id=?", userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RoleNamesForUser returns the display names of the user's roles.
func (r *RoleRepo) RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT ro.name FROM user_roles ur
		   JOIN roles ro ON ro.id = ur.role_id
		 WHERE ur.user_id=?`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// PermissionsForRoles returns every permission granted to any of the given
// roles. An empty role set yields an empty result without touching the DB.
func (r *RoleRepo) PermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]model.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(roleIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id.String()
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, p.module, p.action, COALESCE(p.resource, '')
		   FROM role_permissions rp
		   JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []model.Permission
	for rows.Next() {
		var (
			raw string
			p   model.Permission
		)
		if err := rows.Scan(&raw, &p.Module, &p.Action, &p.Resource); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(raw); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// FindRoleByName looks a role up by its normalized (case-insensitive) name.
func (r *RoleRepo) FindRoleByName(ctx context.Context, name string) (*model.Role, error) {
	var (
		ro  model.Role
		raw string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, normalized_name, created_at FROM roles WHERE normalized_name=? LIMIT 1",
		model.NormalizeRoleName(name)).
		Scan(&raw, &ro.Name, &ro.NormalizedName, &ro.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ro.ID, err = uuid.Parse(raw); err != nil {
		return nil, err
	}
	return &ro, nil
}

// EnsureRole returns the id of the named role, creating it when absent.
func (r *RoleRepo) EnsureRole(ctx context.Context, name string, now time.Time) (uuid.UUID, error) {
	return ensureRoleTx(ctx, r.DB, name, now)
}

// AssignRole links a user to a role, recording who made the assignment.
// Re-assigning an existing pair is a no-op.
func (r *RoleRepo) AssignRole(ctx context.Context, userID, roleID, assignedBy uuid.UUID, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at) VALUES (?,?,?,?)",
		userID.String(), roleID.String(), assignedBy.String(), now)
	if isDuplicateErr(err, "") {
		return nil
	}
	return err
}

type queryExecer interface {
	execer
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ensureRoleTx works against either *sql.DB or *sql.Tx so user provisioning
// can create the default role inside its transaction.
func ensureRoleTx(ctx context.Context, db queryExecer, name string, now time.Time) (uuid.UUID, error) {
	normalized := model.NormalizeRoleName(name)
	var raw string
	err := db.QueryRowContext(ctx,
		"SELECT id FROM roles WHERE normalized_name=? LIMIT 1", normalized).Scan(&raw)
	if err == nil {
		return uuid.Parse(raw)
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err = db.ExecContext(ctx,
		"INSERT INTO roles (id, name, normalized_name, created_at) VALUES (?,?,?,?)",
		id.String(), name, normalized, now)
	if isDuplicateErr(err, "") {
		// Lost a race with a concurrent insert; read the winner.
		if scanErr := db.QueryRowContext(ctx,
			"SELECT id FROM roles WHERE normalized_name=? LIMIT 1", normalized).Scan(&raw); scanErr == nil {
			return uuid.Parse(raw)
		}
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
