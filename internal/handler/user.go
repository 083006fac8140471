package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"storegate/internal/middleware"
	"storegate/internal/repository"
	"storegate/internal/service"
)

// UserHandler serves the authenticated user surface: profile reads and
// updates, password changes, session teardown and access-decision probes.
type UserHandler struct {
	Auth  *service.AuthService
	Users *repository.UserRepo
}

func NewUserHandler(svc *service.AuthService, users *repository.UserRepo) *UserHandler {
	return &UserHandler{Auth: svc, Users: users}
}

type updateUserReq struct {
	Email           *string `json:"email"`
	Username        *string `json:"username"`
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	PhoneNumber     *string `json:"phone_number"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type accessCheckReq struct {
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

type profileResp struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	PhoneNumber    string    `json:"phone_number"`
	Provider       string    `json:"provider"`
	EmailConfirmed bool      `json:"email_confirmed"`
	Roles          []string  `json:"roles"`
	Permissions    []string  `json:"permissions"`
}

// callerID extracts the authenticated subject placed by the JWT middleware.
func callerID(c echo.Context) (uuid.UUID, bool) {
	s, _ := c.Get(middleware.CtxUserID).(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Me returns the caller's profile with freshly resolved roles and
// permissions, not the possibly stale claims of the access token.
func (h *UserHandler) Me(c echo.Context) error {
	id, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	roles, err := h.Auth.Resolver().Roles(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	perms, err := h.Auth.Resolver().EffectivePermissions(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, profileResp{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PhoneNumber:    u.PhoneNumber,
		Provider:       u.Provider,
		EmailConfirmed: u.EmailConfirmed,
		Roles:          roles,
		Permissions:    perms,
	})
}

// Update applies profile changes to the user in the path. The service
// enforces that the caller is the target or an admin.
func (h *UserHandler) Update(c echo.Context) error {
	caller, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	err = h.Auth.UpdateUser(ctx, caller, target, service.UpdateUserInput{
		Email:           req.Email,
		Username:        req.Username,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		PhoneNumber:     req.PhoneNumber,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "updated"})
}

// ChangePassword is the self-service password change.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	id, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// LogoutAll revokes every active session of the caller.
func (h *UserHandler) LogoutAll(c echo.Context) error {
	id, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Auth.LogoutAllDevices(ctx, id)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked_sessions": n})
}

// AdminGet returns any user's profile. The route is guarded by the Admin
// role middleware; the handler itself only reads.
func (h *UserHandler) AdminGet(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	roles, err := h.Auth.Resolver().Roles(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	perms, err := h.Auth.Resolver().EffectivePermissions(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, profileResp{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PhoneNumber:    u.PhoneNumber,
		Provider:       u.Provider,
		EmailConfirmed: u.EmailConfirmed,
		Roles:          roles,
		Permissions:    perms,
	})
}

// AccessCheck runs the decision engine for the caller against an arbitrary
// action/resource pair and reports the decision with its reason. Useful for
// UIs that want to hide controls the caller cannot use.
func (h *UserHandler) AccessCheck(c echo.Context) error {
	caller, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	var req accessCheckReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Action == "" || req.ResourceType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action/resource_type required"})
	}

	var resourceID *uuid.UUID
	if req.ResourceID != "" {
		id, err := uuid.Parse(req.ResourceID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
		}
		resourceID = &id
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	decision, err := h.Auth.AccessControl().Evaluate(ctx, caller, req.Action, req.ResourceType, resourceID)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, decision)
}
