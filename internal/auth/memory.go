package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mesaplatform/mesa/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store used by tests and the memory adapter. A
// single mutex stands in for the transactional guarantees the SQL store gets
// from the database.
type MemStore struct {
	mu            sync.Mutex
	organizations map[string]*Organization
	users         map[string]*User
	sessions      map[string]*Session
	roles         map[string]*Role
	permissions   map[string]*Permission      // by key
	scopes        map[string]*PermissionScope // by name
	assignments   []RoleAssignment
	roleGrants    map[string][]Grant
}

func NewMemStore() *MemStore {
	return &MemStore{
		organizations: map[string]*Organization{},
		users:         map[string]*User{},
		sessions:      map[string]*Session{},
		roles:         map[string]*Role{},
		permissions:   map[string]*Permission{},
		scopes:        map[string]*PermissionScope{},
		roleGrants:    map[string][]Grant{},
	}
}

func (m *MemStore) Organizations() OrganizationStore { return (*memOrgStore)(m) }
func (m *MemStore) Users() UserStore                 { return (*memUserStore)(m) }
func (m *MemStore) Sessions() SessionStore           { return (*memSessionStore)(m) }
func (m *MemStore) Roles() RoleStore                 { return (*memRoleStore)(m) }
func (m *MemStore) Permissions() PermissionStore     { return (*memPermissionStore)(m) }

type memOrgStore MemStore

func (m *memOrgStore) Create(_ context.Context, org *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if org.ID == "" {
		org.ID = ids.New()
	}
	for _, existing := range m.organizations {
		if existing.Name == org.Name {
			return ErrConflict
		}
	}
	cp := *org
	m.organizations[org.ID] = &cp
	return nil
}

func (m *memOrgStore) Find(_ context.Context, id string) (*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.organizations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (m *memOrgStore) List(_ context.Context) ([]*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*Organization
	for _, org := range m.organizations {
		cp := *org
		res = append(res, &cp)
	}
	return res, nil
}

type memUserStore MemStore

func (m *memUserStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserStore) Find(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUserStore) SetActive(_ context.Context, userID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUserStore) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (m *memUserStore) UpdatePasswordAndRevokeSessions(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

type memSessionStore MemStore

func (m *memSessionStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = ids.New()
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) Find(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionStore) DeleteForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessionStore) Rotate(_ context.Context, oldID string, replacement *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[oldID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, oldID)
	if replacement.ID == "" {
		replacement.ID = ids.New()
	}
	cp := *replacement
	m.sessions[replacement.ID] = &cp
	return nil
}

func (m *memSessionStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

type memRoleStore MemStore

func (m *memRoleStore) Create(_ context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role.ID == "" {
		role.ID = ids.New()
	}
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return ErrConflict
		}
	}
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoleStore) Find(_ context.Context, id string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (m *memRoleStore) FindByName(_ context.Context, name string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRoleStore) List(_ context.Context) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*Role
	for _, role := range m.roles {
		cp := *role
		res = append(res, &cp)
	}
	return res, nil
}

func sameOrg(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memRoleStore) Assign(_ context.Context, a RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID && sameOrg(existing.OrganizationID, a.OrganizationID) {
			return nil
		}
	}
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *memRoleStore) Unassign(_ context.Context, userID, roleID string, organizationID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.assignments[:0]
	for _, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID && sameOrg(a.OrganizationID, organizationID) {
			continue
		}
		kept = append(kept, a)
	}
	m.assignments = kept
	return nil
}

func (m *memRoleStore) AssignmentsForUser(_ context.Context, userID string) ([]RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []RoleAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			res = append(res, a)
		}
	}
	return res, nil
}

type memPermissionStore MemStore

func (m *memPermissionStore) Ensure(_ context.Context, perms []Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range perms {
		if _, ok := m.permissions[p.Key]; ok {
			continue
		}
		if p.ID == "" {
			p.ID = ids.New()
		}
		cp := p
		m.permissions[p.Key] = &cp
	}
	return nil
}

func (m *memPermissionStore) EnsureScopes(_ context.Context, scopes []PermissionScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range scopes {
		if _, ok := m.scopes[sc.Name]; ok {
			continue
		}
		if sc.ID == "" {
			sc.ID = ids.New()
		}
		cp := sc
		m.scopes[sc.Name] = &cp
	}
	return nil
}

func (m *memPermissionStore) List(_ context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Permission
	for _, p := range m.permissions {
		res = append(res, *p)
	}
	return res, nil
}

func (m *memPermissionStore) SetForRole(_ context.Context, roleID string, grants []GrantSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var resolved []Grant
	for _, g := range grants {
		if _, ok := m.permissions[g.Permission]; !ok {
			continue
		}
		if g.Scope != nil {
			if _, ok := m.scopes[*g.Scope]; !ok {
				continue
			}
		}
		resolved = append(resolved, Grant{Permission: g.Permission, Scope: g.Scope})
	}
	m.roleGrants[roleID] = resolved
	return nil
}

func (m *memPermissionStore) GrantsForRole(_ context.Context, roleID string) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grants := m.roleGrants[roleID]
	res := make([]Grant, len(grants))
	copy(res, grants)
	return res, nil
}
