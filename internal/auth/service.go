package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesaplatform/mesa/internal/ids"
)

// SessionTTL is the fixed session lifetime. The signed assertion expires on
// the same horizon.
const SessionTTL = 7 * 24 * time.Hour

// Service provides account, session and role/permission operations. All
// collaborators are injected at construction; there are no package-level
// singletons.
type Service struct {
	store      Store
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithIssuer overrides the assertion issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithSessionTTL overrides the session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service.
func NewService(store Store, secret string, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	svc := &Service{
		store:      store,
		secret:     []byte(secret),
		issuer:     "mesa",
		sessionTTL: SessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// EnsureBuiltins seeds the permission and scope catalogs.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	if err := s.store.Permissions().Ensure(ctx, BuiltinPermissions); err != nil {
		return err
	}
	return s.store.Permissions().EnsureScopes(ctx, BuiltinScopes)
}

// NormalizeEmail lower-cases and trims an email address. Uniqueness is
// enforced on the normalized form.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates an account and opens its first session.
func (s *Service) Register(ctx context.Context, email, password string, meta SessionMetadata) (*User, *Session, string, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, nil, "", fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, "", err
	}
	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, nil, "", err
	}
	session, assertion, err := s.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, "", err
	}
	return user, session, assertion, nil
}

// Login authenticates credentials and opens a session. Every failure mode
// costs one bcrypt comparison and surfaces the same ErrUnauthenticated; the
// caller-visible message never reveals whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string, meta SessionMetadata) (*User, *Session, string, error) {
	email = NormalizeEmail(email)
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		verifyDummy(password)
		return nil, nil, "", ErrUnauthenticated
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, nil, "", ErrUnauthenticated
	}
	if !user.Active {
		return nil, nil, "", ErrUnauthenticated
	}
	now := s.now().UTC()
	if err := s.store.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, nil, "", err
	}
	user.LastLoginAt = &now
	session, assertion, err := s.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, "", err
	}
	return user, session, assertion, nil
}

// ChangePassword verifies the current password and replaces the credential.
// The credential update and the revocation of every session of the user are
// one transaction: a password change that leaves sessions alive would be a
// security defect.
func (s *Service) ChangePassword(ctx context.Context, userID, current, replacement string) error {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(user.PasswordHash, current) {
		return ErrUnauthenticated
	}
	if len(replacement) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(replacement)
	if err != nil {
		return err
	}
	return s.store.Users().UpdatePasswordAndRevokeSessions(ctx, userID, hash)
}

// DeactivateUser soft-deletes the account and drops its sessions. Validation
// re-checks the active flag, so even a session row that survives a partial
// failure here is rejected at the gate.
func (s *Service) DeactivateUser(ctx context.Context, userID string) error {
	if err := s.store.Users().SetActive(ctx, userID, false); err != nil {
		return err
	}
	return s.store.Sessions().DeleteForUser(ctx, userID)
}

// User loads an account by ID.
func (s *Service) User(ctx context.Context, userID string) (*User, error) {
	return s.store.Users().Find(ctx, userID)
}

// Identity flattens the user's role assignments and grants into the snapshot
// consulted by the authorization gate. Built once per authenticated request.
func (s *Service) Identity(ctx context.Context, userID string) (Identity, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	assignments, err := s.store.Roles().AssignmentsForUser(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	identity := Identity{UserID: user.ID, Email: user.Email}
	for _, a := range assignments {
		role, err := s.store.Roles().Find(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Identity{}, err
		}
		grants, err := s.store.Permissions().GrantsForRole(ctx, a.RoleID)
		if err != nil {
			return Identity{}, err
		}
		identity.Assignments = append(identity.Assignments, AssignmentGrant{
			Role:           role.Name,
			Domain:         role.Domain,
			OrganizationID: a.OrganizationID,
			Grants:         grants,
		})
	}
	return identity, nil
}

// CreateOrganization creates a tenant.
func (s *Service) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	org := &Organization{ID: ids.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Organizations().Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Organization loads a tenant by ID.
func (s *Service) Organization(ctx context.Context, id string) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Organizations().Find(ctx, id)
}

// ListOrganizations lists all tenants.
func (s *Service) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.store.Organizations().List(ctx)
}

// CreateRole creates a domain-tagged role.
func (s *Service) CreateRole(ctx context.Context, name, domain, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	domain = strings.TrimSpace(strings.ToLower(domain))
	if !validDomain(domain) {
		return nil, fmt.Errorf("%w: unsupported role domain %q", ErrInvalidInput, domain)
	}
	now := s.now().UTC()
	role := &Role{
		ID:          ids.New(),
		Name:        name,
		Domain:      domain,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Roles().Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles lists all roles.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles().List(ctx)
}

// SetRolePermissions replaces the role's grants. System roles are immutable
// through this path.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, grants []GrantSpec) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := s.store.Roles().Find(ctx, roleID)
	if err != nil {
		return err
	}
	if role.System {
		return fmt.Errorf("%w: system role %q is immutable", ErrForbidden, role.Name)
	}
	deduped := make([]GrantSpec, 0, len(grants))
	seen := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		g.Permission = strings.TrimSpace(g.Permission)
		if g.Permission == "" {
			continue
		}
		key := g.Permission
		if g.Scope != nil {
			scope := strings.TrimSpace(*g.Scope)
			if scope == "" {
				g.Scope = nil
			} else {
				g.Scope = &scope
				key += "|" + scope
			}
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, g)
	}
	return s.store.Permissions().SetForRole(ctx, roleID, deduped)
}

// ListPermissions lists the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions().List(ctx)
}

// AssignRole links a user to a role, optionally scoped to an organization.
// Duplicate triples are absorbed by the store.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string, organizationID *string) (RoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return RoleAssignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	if _, err := s.store.Users().Find(ctx, userID); err != nil {
		return RoleAssignment{}, err
	}
	if _, err := s.store.Roles().Find(ctx, roleID); err != nil {
		return RoleAssignment{}, err
	}
	if organizationID != nil {
		orgID := strings.TrimSpace(*organizationID)
		if orgID == "" {
			organizationID = nil
		} else {
			if _, err := s.store.Organizations().Find(ctx, orgID); err != nil {
				return RoleAssignment{}, err
			}
			organizationID = &orgID
		}
	}
	a := RoleAssignment{
		UserID:         userID,
		RoleID:         roleID,
		OrganizationID: organizationID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.Roles().Assign(ctx, a); err != nil {
		return RoleAssignment{}, err
	}
	return a, nil
}

// RemoveAssignment revokes one (user, role, organization) assignment.
func (s *Service) RemoveAssignment(ctx context.Context, userID, roleID string, organizationID *string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.Roles().Unassign(ctx, userID, roleID, organizationID)
}

// ListAssignments lists the user's role assignments.
func (s *Service) ListAssignments(ctx context.Context, userID string) ([]RoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.Roles().AssignmentsForUser(ctx, userID)
}
