package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/internal/model"
)

func testIssuer(now time.Time) *Issuer {
	return NewIssuer(TokenConfig{
		Secret:     "unit-test-secret",
		Issuer:     "storegate",
		Audience:   "storegate-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, func() time.Time { return now })
}

func TestAccessTokenClaims(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := testIssuer(now)
	u := &model.User{ID: uuid.New(), Email: "alice@example.com", Username: "alice"}

	at, err := iss.AccessToken(u, []string{"User"}, []string{"users.read", "orders.create"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, at.ID)
	assert.Equal(t, now.Add(15*time.Minute), at.Exp)

	tok, err := jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("unit-test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, tok.Valid)

	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, u.ID.String(), claims["sub"])
	assert.Equal(t, "alice@example.com", claims["email"])
	assert.Equal(t, "alice", claims["username"])
	assert.Equal(t, at.ID.String(), claims["jti"])
	assert.Equal(t, "storegate", claims["iss"])
	assert.Len(t, claims["roles"], 1)
	assert.Len(t, claims["perms"], 2)
}

func TestAccessTokenUniqueJTI(t *testing.T) {
	iss := testIssuer(time.Now())
	u := &model.User{ID: uuid.New(), Email: "a@b.c", Username: "a"}

	a1, err := iss.AccessToken(u, nil, nil)
	require.NoError(t, err)
	a2, err := iss.AccessToken(u, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a1.ID, a2.ID)
}

func TestRefreshTokenShape(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := testIssuer(now)
	userID, jwtID := uuid.New(), uuid.New()

	rt, err := iss.RefreshToken(userID, jwtID)
	require.NoError(t, err)
	assert.Equal(t, userID, rt.UserID)
	assert.Equal(t, jwtID, rt.JwtID)
	assert.Equal(t, now.Add(7*24*time.Hour), rt.ExpiresAt)
	assert.Len(t, rt.Token, 88) // base64 of 64 bytes
	assert.False(t, rt.IsUsed)
	assert.False(t, rt.IsRevoked)

	other, err := iss.RefreshToken(userID, jwtID)
	require.NoError(t, err)
	assert.NotEqual(t, rt.Token, other.Token)
}
