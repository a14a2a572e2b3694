package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mesaplatform/mesa/internal/audit"
	"github.com/mesaplatform/mesa/internal/auth"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
}

type setRolePermissionsRequest struct {
	Grants []auth.GrantSpec `json:"grants"`
}

type assignRoleRequest struct {
	RoleID         string  `json:"role_id"`
	OrganizationID *string `json:"organization_id"`
}

func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermOrganizationManage}) {
		return
	}
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.auth.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.organization.create", map[string]any{
		"organization_id": org.ID,
		"name":            org.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermOrganizationManage}) {
		return
	}
	orgs, err := a.auth.ListOrganizations(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	if !a.requireAny(w, r,
		auth.Requirement{Permission: auth.PermOrganizationManage},
		auth.Requirement{Permission: auth.PermOrganizationManage}.ScopedIn(orgID),
	) {
		return
	}
	org, err := a.auth.Organization(r.Context(), orgID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermRoleManage}) {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.auth.CreateRole(r.Context(), req.Name, req.Domain, req.Description)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
		"role_id": role.ID,
		"name":    role.Name,
		"domain":  role.Domain,
	})
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermRoleManage}) {
		return
	}
	roles, err := a.auth.ListRoles(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handleSetRolePermissions(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermRoleManage}) {
		return
	}
	roleID := mux.Vars(r)["id"]
	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.SetRolePermissions(r.Context(), roleID, req.Grants); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.permissions.set", map[string]any{
		"role_id": roleID,
		"grants":  len(req.Grants),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermRoleManage}) {
		return
	}
	perms, err := a.auth.ListPermissions(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (a *API) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermUserManage}) {
		return
	}
	userID := mux.Vars(r)["id"]
	assignments, err := a.auth.ListAssignments(r.Context(), userID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermUserManage}) {
		return
	}
	userID := mux.Vars(r)["id"]
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.auth.AssignRole(r.Context(), userID, req.RoleID, req.OrganizationID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.assignment.create", map[string]any{
		"target_user_id": userID,
		"role_id":        req.RoleID,
	})
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) handleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermUserManage}) {
		return
	}
	vars := mux.Vars(r)
	userID, roleID := vars["id"], vars["roleID"]
	var organizationID *string
	if orgID := r.URL.Query().Get("organization_id"); orgID != "" {
		organizationID = &orgID
	}
	if err := a.auth.RemoveAssignment(r.Context(), userID, roleID, organizationID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.assignment.remove", map[string]any{
		"target_user_id": userID,
		"role_id":        roleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}
