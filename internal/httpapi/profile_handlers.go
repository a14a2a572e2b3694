package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mesaplatform/mesa/internal/audit"
	"github.com/mesaplatform/mesa/internal/auth"
	"github.com/mesaplatform/mesa/internal/profile"
)

type putProfileRequest struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	Locale      string `json:"locale"`
}

type grantConsentRequest struct {
	Type string `json:"type"`
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	p, err := a.profiles.Get(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "profile not set")
			return
		}
		handleProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req putProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.profiles.Upsert(r.Context(), identity.UserID, req.DisplayName, req.Phone, req.Locale)
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "profile.update", nil)
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleListConsents(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	consents, err := a.profiles.ListConsents(r.Context(), identity.UserID)
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consents": consents})
}

func (a *API) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req grantConsentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.profiles.GrantConsent(r.Context(), identity.UserID, req.Type)
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "consent.grant", map[string]any{"type": c.Type})
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	consentType := mux.Vars(r)["type"]
	if err := a.profiles.RevokeConsent(r.Context(), identity.UserID, consentType); err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "consent.revoke", map[string]any{"type": consentType})
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}
