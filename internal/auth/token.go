package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storegate/internal/model"
)

// refreshTokenBytes is the entropy of an opaque refresh token. 64 random
// bytes base64-encode to an 88-character value.
const refreshTokenBytes = 64

// TokenConfig carries the signing material and lifetimes for issued tokens.
// All values come from configuration; nothing here is hardcoded.
type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AccessToken is a signed JWT together with its jti and expiry.
type AccessToken struct {
	Token string
	ID    uuid.UUID
	Exp   time.Time
}

// Issuer mints access and refresh tokens. The clock is injected so tests can
// control expiry.
type Issuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewIssuer builds an Issuer. A nil clock defaults to time.Now.
func NewIssuer(cfg TokenConfig, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{cfg: cfg, now: now}
}

// AccessToken signs an HS256 JWT carrying the user's identity plus one claim
// entry per role and per permission string. The jti is a fresh UUID and is
// returned so the refresh token row can reference it.
func (i *Issuer) AccessToken(u *model.User, roles, perms []string) (AccessToken, error) {
	now := i.now().UTC()
	exp := now.Add(i.cfg.AccessTTL)
	jti := uuid.New()
	claims := jwt.MapClaims{
		"sub":      u.ID.String(),
		"email":    u.Email,
		"username": u.Username,
		"jti":      jti.String(),
		"roles":    roles,
		"perms":    perms,
		"iss":      i.cfg.Issuer,
		"aud":      i.cfg.Audience,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, ID: jti, Exp: exp}, nil
}

// RefreshToken builds an unsaved refresh token row for the user, linked to
// the given access token id. The value is 64 bytes of CSPRNG output,
// base64-encoded; the storage layer treats it as unique.
func (i *Issuer) RefreshToken(userID, jwtID uuid.UUID) (model.RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return model.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}
	now := i.now().UTC()
	return model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     base64.StdEncoding.EncodeToString(buf),
		JwtID:     jwtID,
		ExpiresAt: now.Add(i.cfg.RefreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
