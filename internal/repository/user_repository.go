package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storegate/internal/auth"
	"storegate/internal/model"
)

const userCols = "id, email, username, first_name, last_name, phone_number, " +
	"password_hash, provider, email_confirmed, access_failed_count, lockout_end, " +
	"created_at, updated_at, deleted_at, is_deleted"

// UserRepo persists users. All lookups carry the is_deleted = 0 predicate.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u          model.User
		id         string
		pwHash     sql.NullString
		phone      sql.NullString
		lockoutEnd sql.NullTime
		deletedAt  sql.NullTime
	)
	err := row.Scan(&id, &u.Email, &u.Username, &u.FirstName, &u.LastName, &phone,
		&pwHash, &u.Provider, &u.EmailConfirmed, &u.AccessFailedCount, &lockoutEnd,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt, &u.IsDeleted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("users row %q: %w", id, err)
	}
	if pwHash.Valid {
		u.PasswordHash = &pwHash.String
	}
	u.PhoneNumber = phone.String
	if lockoutEnd.Valid {
		t := lockoutEnd.Time
		u.LockoutEnd = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

// GetByEmail fetches a non-deleted user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? AND is_deleted=0 LIMIT 1", email)
	return scanUser(row)
}

// GetByID fetches a non-deleted user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? AND is_deleted=0 LIMIT 1", id.String())
	return scanUser(row)
}

// EmailInUse reports whether a non-deleted user other than exclude holds the
// email. Pass uuid.Nil to check against everyone.
func (r *UserRepo) EmailInUse(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email=? AND is_deleted=0 AND id<>?",
		email, exclude.String()).Scan(&n)
	return n > 0, err
}

// UsernameInUse is the username counterpart of EmailInUse.
func (r *UserRepo) UsernameInUse(ctx context.Context, username string, exclude uuid.UUID) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE username=? AND is_deleted=0 AND id<>?",
		strings.TrimSpace(username), exclude.String()).Scan(&n)
	return n > 0, err
}

// Create inserts a user row. Duplicate email/username map to the taxonomy
// errors so callers need no SQL knowledge.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	return insertUser(ctx, r.DB, u)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, u *model.User) error {
	var pwHash any
	if u.PasswordHash != nil {
		pwHash = *u.PasswordHash
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, first_name, last_name, phone_number,
		   password_hash, provider, email_confirmed, access_failed_count, lockout_end,
		   created_at, updated_at, is_deleted)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,0)`,
		u.ID.String(), strings.ToLower(strings.TrimSpace(u.Email)), u.Username,
		u.FirstName, u.LastName, nullStr(u.PhoneNumber), pwHash, u.Provider,
		u.EmailConfirmed, u.AccessFailedCount, nullTime(u.LockoutEnd),
		u.CreatedAt, u.UpdatedAt)
	switch {
	case isDuplicateErr(err, "email"):
		return auth.ErrEmailExists
	case isDuplicateErr(err, "username"):
		return auth.ErrUsernameTaken
	case isDuplicateErr(err, ""):
		return ErrDuplicate
	}
	return err
}

// Update rewrites the mutable columns of a user row, including the lockout
// state and audit timestamps.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	var pwHash any
	if u.PasswordHash != nil {
		pwHash = *u.PasswordHash
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, username=?, first_name=?, last_name=?, phone_number=?,
		   password_hash=?, provider=?, email_confirmed=?, access_failed_count=?,
		   lockout_end=?, updated_at=?
		 WHERE id=? AND is_deleted=0`,
		strings.ToLower(strings.TrimSpace(u.Email)), u.Username, u.FirstName, u.LastName,
		nullStr(u.PhoneNumber), pwHash, u.Provider, u.EmailConfirmed,
		u.AccessFailedCount, nullTime(u.LockoutEnd), u.UpdatedAt, u.ID.String())
	switch {
	case isDuplicateErr(err, "email"):
		return auth.ErrEmailExists
	case isDuplicateErr(err, "username"):
		return auth.ErrUsernameTaken
	case err != nil:
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLockoutState persists only the failure counter and lockout window. Used
// on the login path so a password change racing a failed attempt is not
// clobbered by a full-row update.
func (r *UserRepo) SetLockoutState(ctx context.Context, id uuid.UUID, failedCount int, lockoutEnd *time.Time, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET access_failed_count=?, lockout_end=?, updated_at=? WHERE id=? AND is_deleted=0",
		failedCount, nullTime(lockoutEnd), now, id.String())
	return err
}

// CreateWithRole provisions a user inside a single transaction: the user row,
// the role (created when absent), the role assignment and the initial refresh
// token all commit together or not at all.
func (r *UserRepo) CreateWithRole(ctx context.Context, u *model.User, roleName string, rt *model.RefreshToken) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	roleID, err := ensureRoleTx(ctx, tx, roleName, u.CreatedAt)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at) VALUES (?,?,?,?)",
		u.ID.String(), roleID.String(), u.ID.String(), u.CreatedAt); err != nil {
		return err
	}
	if err := insertRefreshToken(ctx, tx, rt); err != nil {
		return err
	}
	return tx.Commit()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
