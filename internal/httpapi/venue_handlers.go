package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mesaplatform/mesa/internal/audit"
	"github.com/mesaplatform/mesa/internal/auth"
	"github.com/mesaplatform/mesa/internal/venue"
)

type locationRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Timezone string `json:"timezone"`
}

type spanPayload struct {
	Weekday int `json:"weekday"`
	Opens   int `json:"opens"`
	Closes  int `json:"closes"`
}

type replaceHoursRequest struct {
	Spans []spanPayload `json:"spans"`
}

type createSalesInstanceRequest struct {
	Name    string `json:"name"`
	Channel string `json:"channel"`
}

type updateSalesInstanceRequest struct {
	Active *bool `json:"active"`
}

// locationOrg resolves the location's owning organization for the permission
// check. Requirements are bound to that exact organization; an assignment
// elsewhere, or a global one, does not pass.
func (a *API) locationOrg(w http.ResponseWriter, r *http.Request, locationID string) (string, bool) {
	l, err := a.venues.Location(r.Context(), locationID)
	if err != nil {
		handleVenueError(w, r, err)
		return "", false
	}
	return l.OrganizationID, true
}

func (a *API) handleListLocations(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermLocationManage}.ScopedIn(orgID)) {
		return
	}
	locations, err := a.venues.ListLocations(r.Context(), orgID)
	if err != nil {
		handleVenueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (a *API) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermLocationManage}.ScopedIn(orgID)) {
		return
	}
	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	l, err := a.venues.CreateLocation(r.Context(), orgID, req.Name, req.Address, req.Timezone)
	if err != nil {
		handleVenueError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "venue.location.create", map[string]any{
		"location_id":     l.ID,
		"organization_id": orgID,
	})
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["id"]
	l, err := a.venues.Location(r.Context(), locationID)
	if err != nil {
		handleVenueError(w, r, err)
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermLocationManage}.ScopedIn(l.OrganizationID)) {
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["id"]
	orgID, ok := a.locationOrg(w, r, locationID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermLocationManage}.ScopedIn(orgID)) {
		return
	}
	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	l, err := a.venues.UpdateLocation(r.Context(), locationID, req.Name, req.Address, req.Timezone)
	if err != nil {
		handleVenueError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "venue.location.update", map[string]any{"location_id": l.ID})
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["id"]
	orgID, ok := a.locationOrg(w, r, locationID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermLocationManage}.ScopedIn(orgID)) {
		return
	}
	if err := a.venues.DeleteLocation(r.Context(), locationID); err != nil {
		handleVenueError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "venue.location.delete", map[string]any{"location_id": locationID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleGetHours(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["id"]
	orgID, ok := a.locationOrg(w, r, locationID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermLocationManage}.ScopedIn(orgID)) {
		return
	}
	spans, err := a.venues.Hours(r.Context(), locationID)
	if err != nil {
		handleVenueError(w, r, err)
		return
	}
	payload := make([]spanPayload, 0, len(spans))
	for _, sp := range spans {
		payload = append(payload, spanPayload{Weekday: int(sp.Weekday), Opens: sp.Opens, Closes: sp.Closes})
	}
	writeJSON(w, http.StatusOK, map[string]any{"spans": payload})
}

func (a *API) handleReplaceHours(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["id"]
	orgID, ok := a.locationOrg(w, r, locationID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermLocationManage}.ScopedIn(orgID)) {
		return
	}
	var req replaceHoursRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	spans := make([]venue.Span, 0, len(req.Spans))
	for _, sp := range req.Spans {
		spans = append(spans, venue.Span{Weekday: time.Weekday(sp.Weekday), Opens: sp.Opens, Closes: sp.Closes})
	}
	if err := a.venues.ReplaceHours(r.Context(), locationID, spans); err != nil {
		handleVenueError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "venue.hours.replace", map[string]any{
		"location_id": locationID,
		"spans":       len(spans),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (a *API) handleListSalesInstances(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["id"]
	orgID, ok := a.locationOrg(w, r, locationID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermSalesInstanceManage}.ScopedIn(orgID)) {
		return
	}
	instances, err := a.venues.ListSalesInstances(r.Context(), locationID)
	if err != nil {
		handleVenueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales_instances": instances})
}

func (a *API) handleCreateSalesInstance(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["id"]
	orgID, ok := a.locationOrg(w, r, locationID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermSalesInstanceManage}.ScopedIn(orgID)) {
		return
	}
	var req createSalesInstanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	si, err := a.venues.CreateSalesInstance(r.Context(), locationID, req.Name, req.Channel)
	if err != nil {
		handleVenueError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "venue.sales_instance.create", map[string]any{
		"sales_instance_id": si.ID,
		"location_id":       locationID,
	})
	writeJSON(w, http.StatusCreated, si)
}

func (a *API) salesInstanceOrg(w http.ResponseWriter, r *http.Request, id string) (*venue.SalesInstance, string, bool) {
	si, err := a.venues.SalesInstance(r.Context(), id)
	if err != nil {
		handleVenueError(w, r, err)
		return nil, "", false
	}
	orgID, ok := a.locationOrg(w, r, si.LocationID)
	if !ok {
		return nil, "", false
	}
	return si, orgID, true
}

func (a *API) handleUpdateSalesInstance(w http.ResponseWriter, r *http.Request) {
	si, orgID, ok := a.salesInstanceOrg(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermSalesInstanceManage}.ScopedIn(orgID)) {
		return
	}
	var req updateSalesInstanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "active flag is required")
		return
	}
	if err := a.venues.SetSalesInstanceActive(r.Context(), si.ID, *req.Active); err != nil {
		handleVenueError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "venue.sales_instance.update", map[string]any{
		"sales_instance_id": si.ID,
		"active":            *req.Active,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (a *API) handleDeleteSalesInstance(w http.ResponseWriter, r *http.Request) {
	si, orgID, ok := a.salesInstanceOrg(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermSalesInstanceManage}.ScopedIn(orgID)) {
		return
	}
	if err := a.venues.DeleteSalesInstance(r.Context(), si.ID); err != nil {
		handleVenueError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "venue.sales_instance.delete", map[string]any{
		"sales_instance_id": si.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
