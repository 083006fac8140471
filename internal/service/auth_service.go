package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storegate/internal/auth"
	"storegate/internal/model"
	"storegate/internal/queue"
	"storegate/internal/repository"
)

// AuthConfig carries the tunables of the auth flows.
type AuthConfig struct {
	LockoutThreshold      int           // consecutive failures before a lockout window opens
	LockoutWindow         time.Duration // length of the lockout window
	RequireConfirmedEmail bool          // gate local logins on a confirmed address
}

// AuthResult is returned by every flow that ends in a signed-in session.
type AuthResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Roles        []string  `json:"roles"`
	Permissions  []string  `json:"permissions"`
}

// RegisterInput is the payload of the Register use case.
type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// UpdateUserInput carries the mutable fields of UpdateUser. Nil pointers
// mean "leave unchanged".
type UpdateUserInput struct {
	Email           *string
	Username        *string
	FirstName       *string
	LastName        *string
	PhoneNumber     *string
	CurrentPassword *string
	NewPassword     *string
}

// AuthService orchestrates the identity core: it composes the password
// hasher, token issuer, permission resolver and the persistence seams into
// the Register/Login/Refresh/SSO/Logout/Update use cases. It holds no state
// between requests.
type AuthService struct {
	cfg      AuthConfig
	users    UserStore
	roles    RoleStore
	tokens   TokenStore
	resolver *PermissionResolver
	access   *AccessControl
	issuer   *auth.Issuer
	verifier IdentityVerifier
	events   EventPublisher
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewAuthService wires the auth flows. verifier and events may be nil when
// SSO or event publishing is not configured; now defaults to time.Now.
func NewAuthService(cfg AuthConfig, users UserStore, roles RoleStore, tokens TokenStore,
	issuer *auth.Issuer, verifier IdentityVerifier, events EventPublisher,
	log *zap.SugaredLogger, now func() time.Time) *AuthService {
	if now == nil {
		now = time.Now
	}
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = 15 * time.Minute
	}
	resolver := NewPermissionResolver(roles)
	return &AuthService{
		cfg:      cfg,
		users:    users,
		roles:    roles,
		tokens:   tokens,
		resolver: resolver,
		access:   NewAccessControl(users, resolver),
		issuer:   issuer,
		verifier: verifier,
		events:   events,
		log:      log,
		now:      now,
	}
}

// AccessControl exposes the authorization decision engine sharing this
// service's stores.
func (s *AuthService) AccessControl() *AccessControl { return s.access }

// Resolver exposes the permission resolver.
func (s *AuthService) Resolver() *PermissionResolver { return s.resolver }

// Register creates a local account. Email and username must be unique among
// non-deleted users; the default role is assigned (created when absent) and
// the user row, role assignment and initial refresh token commit as one unit.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return nil, auth.ErrValidation
	}

	if taken, err := s.users.EmailInUse(ctx, email, uuid.Nil); err != nil {
		return nil, err
	} else if taken {
		return nil, auth.ErrEmailExists
	}
	if taken, err := s.users.UsernameInUse(ctx, username, uuid.Nil); err != nil {
		return nil, err
	} else if taken {
		return nil, auth.ErrUsernameTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &model.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		PasswordHash: &hash,
		Provider:     model.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.provision(ctx, u)
}

// provision creates the user with the default role and first token pair in
// one unit of work, then reports the registration event.
func (s *AuthService) provision(ctx context.Context, u *model.User) (*AuthResult, error) {
	roles := []string{DefaultRole}
	perms, err := s.permissionsForRoleName(ctx, DefaultRole)
	if err != nil {
		return nil, err
	}
	access, err := s.issuer.AccessToken(u, roles, perms)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.RefreshToken(u.ID, access.ID)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateWithRole(ctx, u, DefaultRole, &refresh); err != nil {
		return nil, err
	}
	s.publish(ctx, queue.AuthEvent{
		Type:       queue.EventUserRegistered,
		UserID:     u.ID.String(),
		Email:      u.Email,
		Provider:   u.Provider,
		OccurredAt: s.now().UTC(),
	})
	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.Exp,
		UserID:       u.ID,
		Email:        u.Email,
		Roles:        roles,
		Permissions:  perms,
	}, nil
}

// permissionsForRoleName resolves the permission strings of a single role;
// an absent role yields an empty set.
func (s *AuthService) permissionsForRoleName(ctx context.Context, name string) ([]string, error) {
	role, err := s.roles.FindRoleByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	perms, err := s.roles.PermissionsForRoles(ctx, []uuid.UUID{role.ID})
	if err != nil {
		return nil, err
	}
	strs := make([]string, 0, len(perms))
	for _, p := range perms {
		strs = append(strs, p.String())
	}
	return dedupeSorted(strs), nil
}

// Login verifies an email/password pair. Failures are uniform: a missing
// account and a wrong password both return ErrInvalidCredentials. After
// LockoutThreshold consecutive failures a lockout window opens and even the
// correct password is rejected with ErrAccountLocked until it passes.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if u.IsLockedOut(now) {
		return nil, auth.ErrAccountLocked
	}
	if s.cfg.RequireConfirmedEmail && !u.EmailConfirmed {
		return nil, auth.ErrEmailNotConfirmed
	}

	if u.Provider == model.ProviderLocal {
		if u.PasswordHash == nil || !auth.VerifyPassword(*u.PasswordHash, password) {
			return nil, s.recordFailedAttempt(ctx, u, now)
		}
	} else if u.PasswordHash == nil {
		// Externally authenticated account with no local credential.
		return nil, auth.ErrInvalidCredentials
	} else if !auth.VerifyPassword(*u.PasswordHash, password) {
		return nil, s.recordFailedAttempt(ctx, u, now)
	}

	if u.AccessFailedCount != 0 || u.LockoutEnd != nil {
		if err := s.users.SetLockoutState(ctx, u.ID, 0, nil, now); err != nil {
			return nil, err
		}
	}
	return s.issueTokens(ctx, u)
}

// recordFailedAttempt bumps the failure counter, opens the lockout window at
// the threshold, persists, and returns the uniform credential error.
func (s *AuthService) recordFailedAttempt(ctx context.Context, u *model.User, now time.Time) error {
	count := u.AccessFailedCount + 1
	var lockoutEnd *time.Time
	if count >= s.cfg.LockoutThreshold {
		end := now.Add(s.cfg.LockoutWindow)
		lockoutEnd = &end
		s.publish(ctx, queue.AuthEvent{
			Type:       queue.EventAccountLocked,
			UserID:     u.ID.String(),
			Email:      u.Email,
			OccurredAt: now,
		})
	}
	if err := s.users.SetLockoutState(ctx, u.ID, count, lockoutEnd, now); err != nil {
		return err
	}
	return auth.ErrInvalidCredentials
}

// issueTokens mints a fresh access+refresh pair for an authenticated user
// and persists the refresh row.
func (s *AuthService) issueTokens(ctx context.Context, u *model.User) (*AuthResult, error) {
	roles, err := s.resolver.Roles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	perms, err := s.resolver.EffectivePermissions(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	access, err := s.issuer.AccessToken(u, roles, perms)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.RefreshToken(u.ID, access.ID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Insert(ctx, &refresh); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.Exp,
		UserID:       u.ID,
		Email:        u.Email,
		Roles:        roles,
		Permissions:  perms,
	}, nil
}

// Refresh rotates a refresh token: the presented token is consumed exactly
// once and a brand-new pair is issued. Unknown, used and revoked tokens all
// fail identically with ErrInvalidToken so a probing attacker learns nothing;
// presenting an already-consumed token additionally revokes the owner's
// remaining sessions and emits a reuse event.
func (s *AuthService) Refresh(ctx context.Context, token string) (*AuthResult, error) {
	t, err := s.tokens.GetByValue(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if t.IsUsed || t.IsRevoked {
		s.handleReuse(ctx, t, now)
		return nil, auth.ErrInvalidToken
	}
	if t.Expired(now) {
		return nil, auth.ErrTokenExpired
	}

	u, err := s.users.GetByID(ctx, t.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	roles, err := s.resolver.Roles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	perms, err := s.resolver.EffectivePermissions(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	access, err := s.issuer.AccessToken(u, roles, perms)
	if err != nil {
		return nil, err
	}
	next, err := s.issuer.RefreshToken(u.ID, access.ID)
	if err != nil {
		return nil, err
	}
	// Session metadata travels to the replacement token.
	next.CreatedByIP = t.CreatedByIP
	next.DeviceName = t.DeviceName

	ok, err := s.tokens.ConsumeAndReplace(ctx, t.ID, &next, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: someone consumed this token between our read and
		// the compare-and-swap. Same treatment as reuse.
		return nil, auth.ErrInvalidToken
	}

	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: next.Token,
		ExpiresAt:    access.Exp,
		UserID:       u.ID,
		Email:        u.Email,
		Roles:        roles,
		Permissions:  perms,
	}, nil
}

// handleReuse reacts to a consumed or revoked token being presented again:
// every remaining active session of the owner is revoked and an event is
// published. Failures here are logged, never surfaced; the caller already
// gets ErrInvalidToken.
func (s *AuthService) handleReuse(ctx context.Context, t *model.RefreshToken, now time.Time) {
	if _, err := s.tokens.RevokeAllForUser(ctx, t.UserID, now); err != nil && s.log != nil {
		s.log.Errorw("revoke-all after token reuse failed", "user_id", t.UserID, "error", err)
	}
	s.publish(ctx, queue.AuthEvent{
		Type:       queue.EventTokenReuse,
		UserID:     t.UserID.String(),
		TokenID:    t.ID.String(),
		RemoteIP:   t.CreatedByIP,
		OccurredAt: now,
	})
}

// SSOLogin authenticates against an external provider. A matching email logs
// the existing user in; otherwise a new account is provisioned with the
// provider recorded and the email pre-confirmed.
func (s *AuthService) SSOLogin(ctx context.Context, provider, token string) (*AuthResult, error) {
	if s.verifier == nil {
		return nil, auth.ErrValidation
	}
	ident, err := s.verifier.Verify(ctx, provider, token)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	email := strings.ToLower(strings.TrimSpace(ident.Email))
	if email == "" {
		return nil, auth.ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		if u.IsLockedOut(s.now().UTC()) {
			return nil, auth.ErrAccountLocked
		}
		return s.issueTokens(ctx, u)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	username, err := s.availableUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u = &model.User{
		ID:             uuid.New(),
		Email:          email,
		Username:       username,
		FirstName:      ident.FirstName,
		LastName:       ident.LastName,
		Provider:       provider,
		EmailConfirmed: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.provision(ctx, u)
}

// availableUsername derives a username from the email local part, suffixing
// it when taken.
func (s *AuthService) availableUsername(ctx context.Context, email string) (string, error) {
	base := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		base = email[:i]
	}
	taken, err := s.users.UsernameInUse(ctx, base, uuid.Nil)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	return base + "-" + uuid.NewString()[:8], nil
}

// Logout invalidates a single refresh token. Unknown or already-inactive
// tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token, s.now().UTC())
}

// LogoutAllDevices revokes every active refresh token of a user and returns
// how many were revoked. Idempotent: a second call revokes zero.
func (s *AuthService) LogoutAllDevices(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.tokens.RevokeAllForUser(ctx, userID, s.now().UTC())
}

// ChangePassword is the self-service password change: the current password
// is always verified first.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error {
	return s.UpdateUser(ctx, userID, userID, UpdateUserInput{
		CurrentPassword: &current,
		NewPassword:     &newPassword,
	})
}

// UpdateUser applies profile changes to the target user. The caller must be
// the target or an admin. Email/username changes re-validate uniqueness;
// password changes verify the current password unless the caller is an
// admin acting on someone else's account.
func (s *AuthService) UpdateUser(ctx context.Context, callerID, targetID uuid.UUID, in UpdateUserInput) error {
	decision, err := s.access.Evaluate(ctx, callerID, "update", "user", &targetID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return auth.ErrAccessDenied
	}
	isAdmin := decision.Reason == "admin role"

	u, err := s.users.GetByID(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return auth.ErrUserNotFound
	}
	if err != nil {
		return err
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return auth.ErrValidation
		}
		if email != u.Email {
			if taken, err := s.users.EmailInUse(ctx, email, u.ID); err != nil {
				return err
			} else if taken {
				return auth.ErrEmailExists
			}
			u.Email = email
			u.EmailConfirmed = false
		}
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return auth.ErrValidation
		}
		if username != u.Username {
			if taken, err := s.users.UsernameInUse(ctx, username, u.ID); err != nil {
				return err
			} else if taken {
				return auth.ErrUsernameTaken
			}
			u.Username = username
		}
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}

	if in.NewPassword != nil {
		if *in.NewPassword == "" {
			return auth.ErrValidation
		}
		if !isAdmin {
			if in.CurrentPassword == nil || u.PasswordHash == nil ||
				!auth.VerifyPassword(*u.PasswordHash, *in.CurrentPassword) {
				return auth.ErrInvalidCredentials
			}
		}
		hash, err := auth.HashPassword(*in.NewPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = &hash
	}

	u.UpdatedAt = s.now().UTC()
	return s.users.Update(ctx, u)
}

// publish emits an event when a publisher is wired; failures are logged and
// swallowed so they never break the request flow.
func (s *AuthService) publish(ctx context.Context, ev queue.AuthEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil && s.log != nil {
		s.log.Warnw("publish auth event failed", "type", ev.Type, "error", err)
	}
}
