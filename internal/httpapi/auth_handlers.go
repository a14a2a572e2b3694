package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/mesaplatform/mesa/internal/audit"
	"github.com/mesaplatform/mesa/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionResponse struct {
	User      *auth.User `json:"user"`
	CSRFToken string     `json:"csrf_token"`
	ExpiresAt string     `json:"expires_at"`
}

func sessionMeta(r *http.Request) auth.SessionMetadata {
	return auth.SessionMetadata{
		Origin:    r.Header.Get("Origin"),
		UserAgent: r.UserAgent(),
	}
}

func (a *API) sessionMaxAge() int {
	return int(auth.SessionTTL.Seconds())
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, session, assertion, err := a.auth.Register(r.Context(), req.Email, req.Password, sessionMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{"user_id": user.ID})
	a.setSessionCookie(w, assertion, a.sessionMaxAge())
	writeJSON(w, http.StatusCreated, sessionResponse{
		User:      user,
		CSRFToken: session.CSRFToken,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, session, assertion, err := a.auth.Login(r.Context(), req.Email, req.Password, sessionMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			// One message for every credential failure.
			writeError(w, r, http.StatusUnauthorized, auth.LoginFailedMessage)
			return
		}
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"user_id": user.ID})
	a.setSessionCookie(w, assertion, a.sessionMaxAge())
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      user,
		CSRFToken: session.CSRFToken,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	})
}

// handleRefresh rotates the presented session. The endpoint is anonymous in
// the sense that it does not run the authentication middleware; the cookie
// itself is the credential, and a stale one simply yields 401.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	session, user, err := a.auth.ValidateAssertion(r.Context(), cookie.Value)
	if err != nil {
		a.clearSessionCookie(w)
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	fresh, assertion, err := a.auth.RefreshSession(r.Context(), session.ID, sessionMeta(r))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if fresh == nil {
		// Lost a concurrent rotation; the cookie is dead.
		a.clearSessionCookie(w)
		writeError(w, r, http.StatusUnauthorized, "session expired")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{"user_id": user.ID})
	a.setSessionCookie(w, assertion, a.sessionMaxAge())
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      user,
		CSRFToken: fresh.CSRFToken,
		ExpiresAt: fresh.ExpiresAt.Format(time.RFC3339),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		if err := a.auth.RevokeSession(r.Context(), session.ID); err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			writeError(w, r, http.StatusUnauthorized, "current password is incorrect")
			return
		}
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_change", nil)
	// Every session is gone, including this one.
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_changed"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := a.auth.User(r.Context(), identity.UserID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"assignments": identity.Assignments,
	})
}
