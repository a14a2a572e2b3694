package auth

import "time"

// Organization is a tenant boundary. Role assignments may be scoped to one.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a platform account. Users are deactivated, never hard-deleted.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session is a server-side login session. Token is an opaque secondary
// identifier; lookups go through the session ID carried by the signed
// assertion. CSRFToken is an independent secret compared on mutating calls.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	CSRFToken string    `json:"-"`
	Origin    string    `json:"origin,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionMetadata carries optional request context recorded on the session.
type SessionMetadata struct {
	Origin    string
	UserAgent string
}

// Role groups permission grants. System roles reject ordinary mutation.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	Description string    `json:"description,omitempty"`
	System      bool      `json:"system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a named capability, independent of scope and organization.
type Permission struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionScope narrows what a granted permission covers. Scope semantics
// belong to the resource-owning code; the resolver only matches identity.
type PermissionScope struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleAssignment links a user to a role, optionally scoped to one
// organization. A nil OrganizationID means the assignment is global.
type RoleAssignment struct {
	UserID         string    `json:"user_id"`
	RoleID         string    `json:"role_id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// GrantSpec names one (permission, optional scope) pair when replacing a
// role's grants.
type GrantSpec struct {
	Permission string  `json:"permission"`
	Scope      *string `json:"scope,omitempty"`
}
