package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mesaplatform/mesa/internal/auth"
)

// grantScopedRole creates a role carrying the given permissions and assigns
// it to the user scoped to orgID. A nil orgID makes the assignment global.
func grantScopedRole(t *testing.T, svc *auth.Service, userID string, orgID *string, perms ...string) {
	t.Helper()
	ctx := context.Background()
	role, err := svc.CreateRole(ctx, "test-role-"+userID, auth.DomainFranchise, "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	grants := make([]auth.GrantSpec, 0, len(perms))
	for _, p := range perms {
		grants = append(grants, auth.GrantSpec{Permission: p})
	}
	if err := svc.SetRolePermissions(ctx, role.ID, grants); err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}
	if _, err := svc.AssignRole(ctx, userID, role.ID, orgID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
}

func createOrg(t *testing.T, svc *auth.Service, name string) string {
	t.Helper()
	org, err := svc.CreateOrganization(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	return org.ID
}

func TestScopedAssignmentIsConfinedToItsOrganization(t *testing.T) {
	env := newTestEnv(t)
	sess, userID := env.register(t, "manager@example.com", "s3cret-pass")

	org1 := createOrg(t, env.auth, "Mesa North")
	org2 := createOrg(t, env.auth, "Mesa South")
	grantScopedRole(t, env.auth, userID, &org1, auth.PermLocationManage)

	body := map[string]string{
		"name":     "Harbor Kitchen",
		"address":  "1 Pier Rd",
		"timezone": "Europe/Berlin",
	}
	w := env.do(t, http.MethodPost, "/v1/organizations/"+org1+"/locations", body, sess)
	if w.Code != http.StatusCreated {
		t.Fatalf("create location in own org: status %d, body %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/v1/organizations/"+org2+"/locations", body, sess)
	if w.Code != http.StatusForbidden {
		t.Fatalf("create location in foreign org: status %d, want 403", w.Code)
	}
}

func TestGlobalAssignmentDoesNotCrossIntoOrgScope(t *testing.T) {
	env := newTestEnv(t)
	sess, userID := env.register(t, "global@example.com", "s3cret-pass")

	org := createOrg(t, env.auth, "Mesa North")
	grantScopedRole(t, env.auth, userID, nil, auth.PermLocationManage)

	body := map[string]string{
		"name":     "Harbor Kitchen",
		"address":  "1 Pier Rd",
		"timezone": "Europe/Berlin",
	}
	w := env.do(t, http.MethodPost, "/v1/organizations/"+org+"/locations", body, sess)
	if w.Code != http.StatusForbidden {
		t.Fatalf("global assignment on org-scoped route: status %d, want 403", w.Code)
	}
}

func TestPermissionFollowsTheResourceChain(t *testing.T) {
	env := newTestEnv(t)
	sess, userID := env.register(t, "chef@example.com", "s3cret-pass")

	org := createOrg(t, env.auth, "Mesa North")
	grantScopedRole(t, env.auth, userID, &org, auth.PermLocationManage, auth.PermMenuUpdate, auth.PermProductUpdate)

	// Location under the org.
	w := env.do(t, http.MethodPost, "/v1/organizations/"+org+"/locations", map[string]string{
		"name":     "Harbor Kitchen",
		"address":  "1 Pier Rd",
		"timezone": "Europe/Berlin",
	}, sess)
	if w.Code != http.StatusCreated {
		t.Fatalf("create location: status %d, body %s", w.Code, w.Body.String())
	}
	var loc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loc); err != nil {
		t.Fatalf("decode location: %v", err)
	}

	// Hours on the location resolve back to the same org.
	w = env.do(t, http.MethodPut, "/v1/locations/"+loc.ID+"/hours", map[string]any{
		"spans": []map[string]int{{"weekday": 1, "opens": 540, "closes": 1320}},
	}, sess)
	if w.Code != http.StatusOK {
		t.Fatalf("replace hours: status %d, body %s", w.Code, w.Body.String())
	}

	// Menu and product chain to the org too.
	w = env.do(t, http.MethodPost, "/v1/organizations/"+org+"/menus", map[string]string{"name": "Lunch"}, sess)
	if w.Code != http.StatusCreated {
		t.Fatalf("create menu: status %d, body %s", w.Code, w.Body.String())
	}
	var menu struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &menu); err != nil {
		t.Fatalf("decode menu: %v", err)
	}
	w = env.do(t, http.MethodPost, "/v1/menus/"+menu.ID+"/products", map[string]any{
		"name":        "Fish Stew",
		"price_minor": 1450,
		"currency":    "EUR",
	}, sess)
	if w.Code != http.StatusCreated {
		t.Fatalf("create product: status %d, body %s", w.Code, w.Body.String())
	}
	var product struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	w = env.do(t, http.MethodPut, "/v1/products/"+product.ID+"/allergens", map[string]any{
		"codes": []string{"fish", "celery"},
	}, sess)
	if w.Code != http.StatusOK {
		t.Fatalf("set product allergens: status %d, body %s", w.Code, w.Body.String())
	}

	// A second user with no assignment in the org cannot touch the chain.
	other, _ := env.register(t, "intruder@example.com", "s3cret-pass")
	w = env.do(t, http.MethodPut, "/v1/locations/"+loc.ID+"/hours", map[string]any{
		"spans": []map[string]int{},
	}, other)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign user on location hours: status %d, want 403", w.Code)
	}
}

func TestAllergenCatalogReadableByAnyAuthenticatedUser(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.register(t, "reader@example.com", "s3cret-pass")

	w := env.do(t, http.MethodGet, "/v1/allergens", nil, sess)
	if w.Code != http.StatusOK {
		t.Fatalf("list allergens: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Allergens []struct {
			Code string `json:"code"`
		} `json:"allergens"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode allergens: %v", err)
	}
	if len(resp.Allergens) != 14 {
		t.Fatalf("allergen count %d, want the 14 built-in entries", len(resp.Allergens))
	}

	if w := env.do(t, http.MethodGet, "/v1/allergens", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous allergen read: status %d, want 401", w.Code)
	}
}

func TestAdminRoutesRequireUnscopedGrant(t *testing.T) {
	env := newTestEnv(t)
	sess, userID := env.register(t, "admin@example.com", "s3cret-pass")

	// Scoped organization.manage is not enough for the global route.
	org := createOrg(t, env.auth, "Mesa North")
	grantScopedRole(t, env.auth, userID, &org, auth.PermOrganizationManage)
	w := env.do(t, http.MethodPost, "/v1/organizations", map[string]string{"name": "Mesa East"}, sess)
	if w.Code != http.StatusForbidden {
		t.Fatalf("scoped grant on global route: status %d, want 403", w.Code)
	}

	// A global grant opens it.
	admin, adminID := env.register(t, "root@example.com", "s3cret-pass")
	grantScopedRole(t, env.auth, adminID, nil, auth.PermOrganizationManage)
	w = env.do(t, http.MethodPost, "/v1/organizations", map[string]string{"name": "Mesa East"}, admin)
	if w.Code != http.StatusCreated {
		t.Fatalf("global grant on global route: status %d, body %s", w.Code, w.Body.String())
	}
}
