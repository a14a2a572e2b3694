package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mesaplatform/mesa/internal/audit"
	"github.com/mesaplatform/mesa/internal/auth"
)

type createMenuRequest struct {
	Name string `json:"name"`
}

type updateMenuRequest struct {
	Active *bool `json:"active"`
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency"`
}

type setProductAllergensRequest struct {
	Codes []string `json:"codes"`
}

func (a *API) handleListMenus(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermMenuUpdate}.ScopedIn(orgID)) {
		return
	}
	menus, err := a.catalog.ListMenus(r.Context(), orgID)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"menus": menus})
}

func (a *API) handleCreateMenu(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermMenuUpdate}.ScopedIn(orgID)) {
		return
	}
	var req createMenuRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.catalog.CreateMenu(r.Context(), orgID, req.Name)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "catalog.menu.create", map[string]any{
		"menu_id":         m.ID,
		"organization_id": orgID,
	})
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) menuOrg(w http.ResponseWriter, r *http.Request, menuID string) (string, bool) {
	m, err := a.catalog.Menu(r.Context(), menuID)
	if err != nil {
		handleCatalogError(w, r, err)
		return "", false
	}
	return m.OrganizationID, true
}

func (a *API) handleGetMenu(w http.ResponseWriter, r *http.Request) {
	menuID := mux.Vars(r)["id"]
	m, err := a.catalog.Menu(r.Context(), menuID)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermMenuUpdate}.ScopedIn(m.OrganizationID)) {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleUpdateMenu(w http.ResponseWriter, r *http.Request) {
	menuID := mux.Vars(r)["id"]
	orgID, ok := a.menuOrg(w, r, menuID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermMenuUpdate}.ScopedIn(orgID)) {
		return
	}
	var req updateMenuRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "active flag is required")
		return
	}
	if err := a.catalog.SetMenuActive(r.Context(), menuID, *req.Active); err != nil {
		handleCatalogError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "catalog.menu.update", map[string]any{
		"menu_id": menuID,
		"active":  *req.Active,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	menuID := mux.Vars(r)["id"]
	orgID, ok := a.menuOrg(w, r, menuID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermMenuUpdate}.ScopedIn(orgID)) {
		return
	}
	products, err := a.catalog.ListProducts(r.Context(), menuID)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	menuID := mux.Vars(r)["id"]
	orgID, ok := a.menuOrg(w, r, menuID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermProductUpdate}.ScopedIn(orgID)) {
		return
	}
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.catalog.CreateProduct(r.Context(), menuID, req.Name, req.Description, req.PriceMinor, req.Currency)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "catalog.product.create", map[string]any{
		"product_id": p.ID,
		"menu_id":    menuID,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) productOrg(w http.ResponseWriter, r *http.Request, productID string) (string, bool) {
	p, err := a.catalog.Product(r.Context(), productID)
	if err != nil {
		handleCatalogError(w, r, err)
		return "", false
	}
	return a.menuOrg(w, r, p.MenuID)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	p, err := a.catalog.Product(r.Context(), productID)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	orgID, ok := a.menuOrg(w, r, p.MenuID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermProductUpdate}.ScopedIn(orgID)) {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	orgID, ok := a.productOrg(w, r, productID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermProductUpdate}.ScopedIn(orgID)) {
		return
	}
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.catalog.UpdateProduct(r.Context(), productID, req.Name, req.Description, req.PriceMinor, req.Currency)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "catalog.product.update", map[string]any{"product_id": p.ID})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	orgID, ok := a.productOrg(w, r, productID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermProductUpdate}.ScopedIn(orgID)) {
		return
	}
	if err := a.catalog.DeleteProduct(r.Context(), productID); err != nil {
		handleCatalogError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "catalog.product.delete", map[string]any{"product_id": productID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleListAllergens(w http.ResponseWriter, r *http.Request) {
	// The allergen catalog is platform-wide reference data; any
	// authenticated user may read it.
	allergens, err := a.catalog.ListAllergens(r.Context())
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allergens": allergens})
}

func (a *API) handleGetProductAllergens(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	orgID, ok := a.productOrg(w, r, productID)
	if !ok {
		return
	}
	if !a.requireAny(w, r, auth.Requirement{Permission: auth.PermProductUpdate}.ScopedIn(orgID)) {
		return
	}
	allergens, err := a.catalog.ProductAllergens(r.Context(), productID)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allergens": allergens})
}

func (a *API) handleSetProductAllergens(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	orgID, ok := a.productOrg(w, r, productID)
	if !ok {
		return
	}
	if !a.requireAny(w, r,
		auth.Requirement{Permission: auth.PermProductUpdate}.ScopedIn(orgID),
		auth.Requirement{Permission: auth.PermAllergenManage}.ScopedIn(orgID),
	) {
		return
	}
	var req setProductAllergensRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.catalog.SetProductAllergens(r.Context(), productID, req.Codes); err != nil {
		handleCatalogError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "catalog.product.allergens.set", map[string]any{
		"product_id": productID,
		"codes":      len(req.Codes),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}
