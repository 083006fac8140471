package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/internal/auth"
	"storegate/internal/model"
)

const testSecret = "middleware-test-secret"

func signedToken(t *testing.T, roles, perms []string) string {
	t.Helper()
	issuer := auth.NewIssuer(auth.TokenConfig{
		Secret:    testSecret,
		Issuer:    "storegate",
		Audience:  "storegate-api",
		AccessTTL: 15 * time.Minute,
	}, nil)
	u := &model.User{ID: uuid.New(), Email: "anna@example.com", Username: "anna"}
	at, err := issuer.AccessToken(u, roles, perms)
	require.NoError(t, err)
	return at.Token
}

func doRequest(mw []echo.MiddlewareFunc, token string) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	_ = h(c)
	return rec, c
}

func TestJWTAuthInjectsClaims(t *testing.T) {
	token := signedToken(t, []string{"User"}, []string{"catalog.read"})
	rec, c := doRequest([]echo.MiddlewareFunc{JWTAuth(testSecret)}, token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, c.Get(CtxUserID))
	assert.Equal(t, []string{"User"}, c.Get(CtxRoles))
	assert.Equal(t, []string{"catalog.read"}, c.Get(CtxPerms))
	assert.NotEmpty(t, c.Get(CtxJTI))
}

func TestJWTAuthRejections(t *testing.T) {
	rec, _ := doRequest([]echo.MiddlewareFunc{JWTAuth(testSecret)}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doRequest([]echo.MiddlewareFunc{JWTAuth(testSecret)}, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongKey := signedTokenWithSecret(t, "some-other-secret")
	rec, _ = doRequest([]echo.MiddlewareFunc{JWTAuth(testSecret)}, wrongKey)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("Admin")}

	rec, _ := doRequest(mw, signedToken(t, []string{"User"}, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doRequest(mw, signedToken(t, []string{"User", "admin"}, nil))
	assert.Equal(t, http.StatusOK, rec.Code, "role match is case-insensitive")
}

func TestRequirePermission(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(testSecret), RequirePermission("users.read", "users.update")}

	rec, _ := doRequest(mw, signedToken(t, nil, []string{"users.read"}))
	assert.Equal(t, http.StatusForbidden, rec.Code, "all named permissions are required")

	rec, _ = doRequest(mw, signedToken(t, nil, []string{"users.read", "users.update", "extra.perm"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func signedTokenWithSecret(t *testing.T, secret string) string {
	t.Helper()
	issuer := auth.NewIssuer(auth.TokenConfig{
		Secret:    secret,
		AccessTTL: 15 * time.Minute,
	}, nil)
	u := &model.User{ID: uuid.New(), Email: "anna@example.com", Username: "anna"}
	at, err := issuer.AccessToken(u, nil, nil)
	require.NoError(t, err)
	return at.Token
}
