package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storegate/internal/auth"
	"storegate/internal/model"
	"storegate/internal/queue"
	"storegate/internal/repository"
)

// memStore is an in-memory implementation of the persistence seams, good
// enough to drive the service flows without a database.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*model.User
	roles     map[uuid.UUID]*model.Role
	userRoles map[uuid.UUID][]uuid.UUID
	perms     map[uuid.UUID][]model.Permission
	tokens    map[uuid.UUID]*model.RefreshToken
	events    []queue.AuthEvent
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uuid.UUID]*model.User{},
		roles:     map[uuid.UUID]*model.Role{},
		userRoles: map[uuid.UUID][]uuid.UUID{},
		perms:     map[uuid.UUID][]model.Permission{},
		tokens:    map[uuid.UUID]*model.RefreshToken{},
	}
}

// ----- UserStore -----

func (m *memStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if !u.IsDeleted && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok && !u.IsDeleted {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) EmailInUse(_ context.Context, email string, exclude uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if !u.IsDeleted && u.Email == email && u.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UsernameInUse(_ context.Context, username string, exclude uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if !u.IsDeleted && u.Username == username && u.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) SetLockoutState(_ context.Context, id uuid.UUID, failedCount int, lockoutEnd *time.Time, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.AccessFailedCount = failedCount
	u.LockoutEnd = lockoutEnd
	u.UpdatedAt = now
	return nil
}

func (m *memStore) CreateWithRole(_ context.Context, u *model.User, roleName string, rt *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	role := m.findRoleLocked(roleName)
	if role == nil {
		role = &model.Role{
			ID:             uuid.New(),
			Name:           roleName,
			NormalizedName: model.NormalizeRoleName(roleName),
			CreatedAt:      u.CreatedAt,
		}
		m.roles[role.ID] = role
	}
	m.userRoles[u.ID] = append(m.userRoles[u.ID], role.ID)
	tcp := *rt
	m.tokens[rt.ID] = &tcp
	return nil
}

// ----- RoleStore -----

func (m *memStore) findRoleLocked(name string) *model.Role {
	norm := model.NormalizeRoleName(name)
	for _, r := range m.roles {
		if r.NormalizedName == norm {
			return r
		}
	}
	return nil
}

func (m *memStore) RoleIDsForUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID{}, m.userRoles[userID]...), nil
}

func (m *memStore) RoleNamesForUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, id := range m.userRoles[userID] {
		if r, ok := m.roles[id]; ok {
			names = append(names, r.Name)
		}
	}
	return names, nil
}

func (m *memStore) PermissionsForRoles(_ context.Context, roleIDs []uuid.UUID) ([]model.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Permission
	for _, id := range roleIDs {
		out = append(out, m.perms[id]...)
	}
	return out, nil
}

func (m *memStore) FindRoleByName(_ context.Context, name string) (*model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.findRoleLocked(name); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

// ----- TokenStore -----

func (m *memStore) GetByValue(_ context.Context, token string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) Insert(_ context.Context, t *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.ID] = &cp
	return nil
}

func (m *memStore) ConsumeAndReplace(_ context.Context, oldID uuid.UUID, next *model.RefreshToken, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tokens[oldID]
	if !ok || old.IsUsed || old.IsRevoked {
		return false, nil
	}
	old.IsUsed = true
	old.UpdatedAt = now
	cp := *next
	m.tokens[next.ID] = &cp
	return true, nil
}

func (m *memStore) Revoke(_ context.Context, token string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == token && !t.IsRevoked {
			t.IsRevoked = true
			t.RevokedAt = &now
			t.UpdatedAt = now
		}
	}
	return nil
}

func (m *memStore) RevokeAllForUser(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.tokens {
		if t.UserID == userID && !t.IsUsed && !t.IsRevoked && now.Before(t.ExpiresAt) {
			t.IsRevoked = true
			t.RevokedAt = &now
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ----- EventPublisher -----

func (m *memStore) Publish(_ context.Context, ev queue.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

// grantRole assigns an existing or new role to a user, with optional
// permissions attached.
func (m *memStore) grantRole(userID uuid.UUID, roleName string, perms ...model.Permission) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	role := m.findRoleLocked(roleName)
	if role == nil {
		role = &model.Role{
			ID:             uuid.New(),
			Name:           roleName,
			NormalizedName: model.NormalizeRoleName(roleName),
		}
		m.roles[role.ID] = role
	}
	m.userRoles[userID] = append(m.userRoles[userID], role.ID)
	m.perms[role.ID] = append(m.perms[role.ID], perms...)
	return role.ID
}

// fakeVerifier returns a fixed identity, or an error when failing is set.
type fakeVerifier struct {
	identity Identity
	fail     bool
}

func (v *fakeVerifier) Verify(_ context.Context, _, _ string) (Identity, error) {
	if v.fail {
		return Identity{}, auth.ErrInvalidCredentials
	}
	return v.identity, nil
}

// newTestService wires an AuthService over a fresh memStore with a fixed
// clock controllable through the returned pointer.
func newTestService(cfg AuthConfig, verifier IdentityVerifier) (*AuthService, *memStore, *time.Time) {
	st := newMemStore()
	clock := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	now := &clock
	issuer := auth.NewIssuer(auth.TokenConfig{
		Secret:     "test-secret",
		Issuer:     "storegate",
		Audience:   "storegate-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, func() time.Time { return *now })
	svc := NewAuthService(cfg, st, st, st, issuer, verifier, st,
		zap.NewNop().Sugar(), func() time.Time { return *now })
	return svc, st, now
}
