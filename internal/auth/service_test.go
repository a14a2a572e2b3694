package auth

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterNormalizesEmail(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	user, _, _, err := svc.Register(ctx, "  Diner@Example.COM ", "s3cret-pass", SessionMetadata{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "diner@example.com" {
		t.Fatalf("stored email %q, want lowercase trimmed form", user.Email)
	}
	if !user.Active {
		t.Fatal("new accounts must start active")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "s3cret-pass"},
		{"email without at sign", "dinerexample.com", "s3cret-pass"},
		{"short password", "diner@example.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, _, err := svc.Register(ctx, tc.email, tc.password, SessionMetadata{}); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRegisterDuplicateEmailAnyCasing(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, _, _, err := svc.Register(ctx, "diner@example.com", "s3cret-pass", SessionMetadata{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, _, _, err := svc.Register(ctx, "DINER@example.com", "other-s3cret", SessionMetadata{}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate register: got %v, want ErrConflict", err)
	}
}

func TestLoginFailureModesAreUniform(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	user, _, _ := registerTestUser(t, svc, "diner@example.com")

	attempts := []struct {
		name     string
		email    string
		password string
		prepare  func()
	}{
		{"unknown email", "ghost@example.com", "s3cret-pass", nil},
		{"wrong password", "diner@example.com", "wrong-pass!", nil},
		{"deactivated account", "diner@example.com", "s3cret-pass", func() {
			if err := svc.DeactivateUser(ctx, user.ID); err != nil {
				t.Fatalf("DeactivateUser: %v", err)
			}
		}},
	}
	for _, a := range attempts {
		t.Run(a.name, func(t *testing.T) {
			if a.prepare != nil {
				a.prepare()
			}
			_, _, _, err := svc.Login(ctx, a.email, a.password, SessionMetadata{})
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("got %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestLoginTouchesLastLogin(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	registerTestUser(t, svc, "diner@example.com")

	user, session, assertion, err := svc.Login(ctx, "Diner@Example.com", "s3cret-pass", SessionMetadata{UserAgent: "tests"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.LastLoginAt == nil {
		t.Fatal("login must record last_login_at")
	}
	if session == nil || assertion == "" {
		t.Fatal("login must open a session")
	}
	if session.UserAgent != "tests" {
		t.Fatalf("session user agent %q, want %q", session.UserAgent, "tests")
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	user, _, assertion := registerTestUser(t, svc, "diner@example.com")

	if err := svc.ChangePassword(ctx, user.ID, "wrong-current", "brand-new-pass"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("wrong current password: got %v, want ErrUnauthenticated", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "s3cret-pass", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short replacement: got %v, want ErrInvalidInput", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "s3cret-pass", "brand-new-pass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, _, err := svc.ValidateAssertion(ctx, assertion); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("session after password change: got %v, want ErrUnauthenticated", err)
	}
	if _, _, _, err := svc.Login(ctx, "diner@example.com", "s3cret-pass", SessionMetadata{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("old password after change: got %v, want ErrUnauthenticated", err)
	}
	if _, _, _, err := svc.Login(ctx, "diner@example.com", "brand-new-pass", SessionMetadata{}); err != nil {
		t.Fatalf("new password after change: %v", err)
	}
}

func TestCreateRoleDomainValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "store-manager", "Franchise", "runs a store")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.Domain != DomainFranchise {
		t.Fatalf("domain %q, want normalized %q", role.Domain, DomainFranchise)
	}

	if _, err := svc.CreateRole(ctx, "bad", "galactic", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown domain: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateRole(ctx, "", DomainConsumer, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty name: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateRole(ctx, "store-manager", DomainFranchise, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate name: got %v, want ErrConflict", err)
	}
}

func TestSetRolePermissions(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	if err := svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}

	role, err := svc.CreateRole(ctx, "store-manager", DomainFranchise, "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	self := ScopeSelf
	err = svc.SetRolePermissions(ctx, role.ID, []GrantSpec{
		{Permission: PermLocationManage},
		{Permission: PermLocationManage}, // duplicate collapses
		{Permission: PermProfileRead, Scope: &self},
		{Permission: "  "}, // blank drops
	})
	if err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}

	grants, err := store.Permissions().GrantsForRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("GrantsForRole: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("got %d grants, want 2: %+v", len(grants), grants)
	}
}

func TestSetRolePermissionsSystemRoleImmutable(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	role := &Role{Name: "platform-admin", Domain: DomainInternal, System: true}
	if err := store.Roles().Create(ctx, role); err != nil {
		t.Fatalf("Create role: %v", err)
	}
	err := svc.SetRolePermissions(ctx, role.ID, []GrantSpec{{Permission: PermRoleManage}})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("system role mutation: got %v, want ErrForbidden", err)
	}
}

func TestAssignRoleAndIdentity(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if err := svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}
	user, _, _ := registerTestUser(t, svc, "manager@example.com")

	org, err := svc.CreateOrganization(ctx, "Mesa North")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	role, err := svc.CreateRole(ctx, "store-manager", DomainFranchise, "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := svc.SetRolePermissions(ctx, role.ID, []GrantSpec{{Permission: PermLocationManage}}); err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}
	if _, err := svc.AssignRole(ctx, user.ID, role.ID, &org.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	// Re-assigning the same triple is absorbed.
	if _, err := svc.AssignRole(ctx, user.ID, role.ID, &org.ID); err != nil {
		t.Fatalf("repeat AssignRole: %v", err)
	}

	id, err := svc.Identity(ctx, user.ID)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if len(id.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1", len(id.Assignments))
	}
	if !id.HasPermission(Requirement{Permission: PermLocationManage}.ScopedIn(org.ID)) {
		t.Fatal("assignment in the organization should satisfy the scoped requirement")
	}
	if id.HasPermission(Requirement{Permission: PermLocationManage}.ScopedIn("other-org")) {
		t.Fatal("assignment must not satisfy a requirement for another organization")
	}

	if err := svc.RemoveAssignment(ctx, user.ID, role.ID, &org.ID); err != nil {
		t.Fatalf("RemoveAssignment: %v", err)
	}
	id, err = svc.Identity(ctx, user.ID)
	if err != nil {
		t.Fatalf("Identity after removal: %v", err)
	}
	if len(id.Assignments) != 0 {
		t.Fatalf("got %d assignments after removal, want 0", len(id.Assignments))
	}
}

func TestAssignRoleValidatesReferences(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	user, _, _ := registerTestUser(t, svc, "manager@example.com")
	role, err := svc.CreateRole(ctx, "store-manager", DomainFranchise, "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	if _, err := svc.AssignRole(ctx, "missing-user", role.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}
	if _, err := svc.AssignRole(ctx, user.ID, "missing-role", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing role: got %v, want ErrNotFound", err)
	}
	missingOrg := "missing-org"
	if _, err := svc.AssignRole(ctx, user.ID, role.ID, &missingOrg); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing organization: got %v, want ErrNotFound", err)
	}
}
