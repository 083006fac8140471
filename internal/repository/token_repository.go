package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"storegate/internal/model"
)

const tokenCols = "id, user_id, token, jwt_id, expires_at, is_used, is_revoked, " +
	"revoked_at, created_by_ip, device_name, created_at, updated_at"

// TokenRepo persists refresh tokens. Consumption is a compare-and-swap on the
// is_used flag so two concurrent rotations of one token cannot both succeed,
// even across processes.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

func scanToken(row rowScanner) (*model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		id, user  string
		jwtID     string
		revokedAt sql.NullTime
		ip, dev   sql.NullString
	)
	err := row.Scan(&id, &user, &t.Token, &jwtID, &t.ExpiresAt, &t.IsUsed,
		&t.IsRevoked, &revokedAt, &ip, &dev, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if t.UserID, err = uuid.Parse(user); err != nil {
		return nil, err
	}
	if t.JwtID, err = uuid.Parse(jwtID); err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		t.RevokedAt = &at
	}
	t.CreatedByIP = ip.String
	t.DeviceName = dev.String
	return &t, nil
}

// GetByValue looks a refresh token up by its opaque value.
func (r *TokenRepo) GetByValue(ctx context.Context, token string) (*model.RefreshToken, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenCols+" FROM refresh_tokens WHERE token=? LIMIT 1", token)
	return scanToken(row)
}

// Insert stores a new refresh token row.
func (r *TokenRepo) Insert(ctx context.Context, t *model.RefreshToken) error {
	return insertRefreshToken(ctx, r.DB, t)
}

func insertRefreshToken(ctx context.Context, db execer, t *model.RefreshToken) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, jwt_id, expires_at, is_used,
		   is_revoked, created_by_ip, device_name, created_at, updated_at)
		 VALUES (?,?,?,?,?,0,0,?,?,?,?)`,
		t.ID.String(), t.UserID.String(), t.Token, t.JwtID.String(), t.ExpiresAt,
		nullStr(t.CreatedByIP), nullStr(t.DeviceName), t.CreatedAt, t.UpdatedAt)
	return err
}

// ConsumeAndReplace marks the old token used and inserts its replacement in
// one transaction. It returns false when the old token was no longer active
// (already used or revoked); in that case nothing is written. The loser of a
// concurrent rotation observes exactly this.
func (r *TokenRepo) ConsumeAndReplace(ctx context.Context, oldID uuid.UUID, next *model.RefreshToken, now time.Time) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_used=1, updated_at=? WHERE id=? AND is_used=0 AND is_revoked=0",
		now, oldID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := insertRefreshToken(ctx, tx, next); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// Revoke marks a single token revoked. Revoking a token that is already
// used, revoked or unknown is a no-op, not an error.
func (r *TokenRepo) Revoke(ctx context.Context, token string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked=1, revoked_at=?, updated_at=?
		 WHERE token=? AND is_revoked=0 AND is_used=0`,
		now, now, token)
	return err
}

// RevokeAllForUser revokes every currently-active token of a user and
// returns how many were affected. Idempotent by construction.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked=1, revoked_at=?, updated_at=?
		 WHERE user_id=? AND is_revoked=0 AND is_used=0 AND expires_at>?`,
		now, now, userID.String(), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
