package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mesaplatform/mesa/internal/catalog"
	"github.com/mesaplatform/mesa/internal/obs"
	"github.com/mesaplatform/mesa/internal/profile"
	"github.com/mesaplatform/mesa/internal/venue"

	"github.com/mesaplatform/mesa/internal/auth"
)

// ReadyProbe is a readiness check, typically a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options configures the API.
type Options struct {
	Auth       *auth.Service
	Profiles   *profile.Service
	Venues     *venue.Service
	Catalog    *catalog.Service
	Ready      ReadyProbe
	Version    string
	Production bool
	RateBurst  int
	RatePerSec int
}

// API is the HTTP layer.
type API struct {
	router     *mux.Router
	auth       *auth.Service
	profiles   *profile.Service
	venues     *venue.Service
	catalog    *catalog.Service
	readyProbe ReadyProbe
	version    string
	production bool
	rateBurst  int
	ratePerSec int
}

func New(opts Options) *API {
	a := &API{
		router:     mux.NewRouter(),
		auth:       opts.Auth,
		profiles:   opts.Profiles,
		venues:     opts.Venues,
		catalog:    opts.Catalog,
		readyProbe: opts.Ready,
		version:    opts.Version,
		production: opts.Production,
		rateBurst:  opts.RateBurst,
		ratePerSec: opts.RatePerSec,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 30
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	r := a.router
	r.Use(RequestID, LoggingJSON, SecurityHeaders, CORS)
	r.NotFoundHandler = applyAll(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	}), RequestID, LoggingJSON, SecurityHeaders, CORS)
	r.MethodNotAllowedHandler = applyAll(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	}), RequestID, LoggingJSON, SecurityHeaders, CORS)

	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", a.handleInfo).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	// Anonymous auth endpoints.
	anon := r.PathPrefix("/v1/auth").Subrouter()
	anon.HandleFunc("/register", a.handleRegister).Methods(http.MethodPost)
	anon.HandleFunc("/login", a.handleLogin).Methods(http.MethodPost)
	anon.HandleFunc("/refresh", a.handleRefresh).Methods(http.MethodPost)

	// Everything below requires a valid session cookie; mutating verbs also
	// present the session's CSRF token.
	priv := r.PathPrefix("/v1").Subrouter()
	priv.Use(a.authenticate, a.requireCSRF)

	priv.HandleFunc("/auth/logout", a.handleLogout).Methods(http.MethodPost)
	priv.HandleFunc("/auth/password", a.handleChangePassword).Methods(http.MethodPost)
	priv.HandleFunc("/me", a.handleMe).Methods(http.MethodGet)
	priv.HandleFunc("/me/profile", a.handleGetProfile).Methods(http.MethodGet)
	priv.HandleFunc("/me/profile", a.handlePutProfile).Methods(http.MethodPut)
	priv.HandleFunc("/me/consents", a.handleListConsents).Methods(http.MethodGet)
	priv.HandleFunc("/me/consents", a.handleGrantConsent).Methods(http.MethodPost)
	priv.HandleFunc("/me/consents/{type}", a.handleRevokeConsent).Methods(http.MethodDelete)

	priv.HandleFunc("/organizations", a.handleCreateOrganization).Methods(http.MethodPost)
	priv.HandleFunc("/organizations", a.handleListOrganizations).Methods(http.MethodGet)
	priv.HandleFunc("/organizations/{id}", a.handleGetOrganization).Methods(http.MethodGet)
	priv.HandleFunc("/roles", a.handleCreateRole).Methods(http.MethodPost)
	priv.HandleFunc("/roles", a.handleListRoles).Methods(http.MethodGet)
	priv.HandleFunc("/roles/{id}/permissions", a.handleSetRolePermissions).Methods(http.MethodPut)
	priv.HandleFunc("/permissions", a.handleListPermissions).Methods(http.MethodGet)
	priv.HandleFunc("/users/{id}/assignments", a.handleListAssignments).Methods(http.MethodGet)
	priv.HandleFunc("/users/{id}/assignments", a.handleAssignRole).Methods(http.MethodPost)
	priv.HandleFunc("/users/{id}/assignments/{roleID}", a.handleRemoveAssignment).Methods(http.MethodDelete)

	priv.HandleFunc("/organizations/{id}/locations", a.handleListLocations).Methods(http.MethodGet)
	priv.HandleFunc("/organizations/{id}/locations", a.handleCreateLocation).Methods(http.MethodPost)
	priv.HandleFunc("/locations/{id}", a.handleGetLocation).Methods(http.MethodGet)
	priv.HandleFunc("/locations/{id}", a.handleUpdateLocation).Methods(http.MethodPut)
	priv.HandleFunc("/locations/{id}", a.handleDeleteLocation).Methods(http.MethodDelete)
	priv.HandleFunc("/locations/{id}/hours", a.handleGetHours).Methods(http.MethodGet)
	priv.HandleFunc("/locations/{id}/hours", a.handleReplaceHours).Methods(http.MethodPut)
	priv.HandleFunc("/locations/{id}/sales-instances", a.handleListSalesInstances).Methods(http.MethodGet)
	priv.HandleFunc("/locations/{id}/sales-instances", a.handleCreateSalesInstance).Methods(http.MethodPost)
	priv.HandleFunc("/sales-instances/{id}", a.handleUpdateSalesInstance).Methods(http.MethodPatch)
	priv.HandleFunc("/sales-instances/{id}", a.handleDeleteSalesInstance).Methods(http.MethodDelete)

	priv.HandleFunc("/organizations/{id}/menus", a.handleListMenus).Methods(http.MethodGet)
	priv.HandleFunc("/organizations/{id}/menus", a.handleCreateMenu).Methods(http.MethodPost)
	priv.HandleFunc("/menus/{id}", a.handleGetMenu).Methods(http.MethodGet)
	priv.HandleFunc("/menus/{id}", a.handleUpdateMenu).Methods(http.MethodPatch)
	priv.HandleFunc("/menus/{id}/products", a.handleListProducts).Methods(http.MethodGet)
	priv.HandleFunc("/menus/{id}/products", a.handleCreateProduct).Methods(http.MethodPost)
	priv.HandleFunc("/products/{id}", a.handleGetProduct).Methods(http.MethodGet)
	priv.HandleFunc("/products/{id}", a.handleUpdateProduct).Methods(http.MethodPut)
	priv.HandleFunc("/products/{id}", a.handleDeleteProduct).Methods(http.MethodDelete)
	priv.HandleFunc("/allergens", a.handleListAllergens).Methods(http.MethodGet)
	priv.HandleFunc("/products/{id}/allergens", a.handleGetProductAllergens).Methods(http.MethodGet)
	priv.HandleFunc("/products/{id}/allergens", a.handleSetProductAllergens).Methods(http.MethodPut)

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	h := MaxBodyBytes(a.router, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mesa-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "mesa-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
