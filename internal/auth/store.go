package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
// Composite operations that must be all-or-nothing (password change plus
// session purge, session rotation) are single store methods; implementations
// run them in one transaction.
type Store interface {
	Organizations() OrganizationStore
	Users() UserStore
	Sessions() SessionStore
	Roles() RoleStore
	Permissions() PermissionStore
}

// OrganizationStore manages tenants.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
}

// UserStore manages accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetActive(ctx context.Context, userID string, active bool) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	// UpdatePasswordAndRevokeSessions replaces the credential and deletes
	// every session of the user atomically.
	UpdatePasswordAndRevokeSessions(ctx context.Context, userID, passwordHash string) error
}

// SessionStore manages the session lifecycle.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	// Delete is idempotent; deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) error
	// Rotate deletes the old session and inserts its replacement in one
	// transaction. Returns ErrNotFound when the old row is already gone,
	// which callers treat as a stale-session outcome.
	Rotate(ctx context.Context, oldID string, replacement *Session) error
	// PurgeExpired removes sessions past their expiry and reports the count.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// RoleStore manages roles and role assignments.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Assign(ctx context.Context, a RoleAssignment) error
	Unassign(ctx context.Context, userID, roleID string, organizationID *string) error
	AssignmentsForUser(ctx context.Context, userID string) ([]RoleAssignment, error)
}

// PermissionStore manages the permission and scope catalogs and role grants.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	EnsureScopes(ctx context.Context, scopes []PermissionScope) error
	List(ctx context.Context) ([]Permission, error)
	// SetForRole replaces the role's grants transactionally.
	SetForRole(ctx context.Context, roleID string, grants []GrantSpec) error
	GrantsForRole(ctx context.Context, roleID string) ([]Grant, error)
}
