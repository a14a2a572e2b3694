package httpapi

import (
	"net/http"

	"github.com/mesaplatform/mesa/internal/auth"
)

const (
	sessionCookie = "mesa_session"
	csrfHeader    = "X-CSRF-Token"
)

func (a *API) setSessionCookie(w http.ResponseWriter, assertion string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    assertion,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.production,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	a.setSessionCookie(w, "", -1)
}

// authenticate validates the session cookie, builds the identity snapshot
// and attaches it with the session to the request context. An invalid or
// stale cookie is cleared along with the 401 so clients stop replaying it.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
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
		identity, err := a.auth.Identity(r.Context(), user.ID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		identity.SessionID = session.ID

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithSession(ctx, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireCSRF enforces the double-submit check on mutating verbs. The token
// travels in a header the browser never adds on its own; equality against
// the session's stored token is constant-time.
func (a *API) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			session, ok := auth.SessionFromContext(r.Context())
			if !ok || !auth.VerifyCSRF(session, r.Header.Get(csrfHeader)) {
				writeError(w, r, http.StatusForbidden, "csrf token missing or invalid")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAny grants access when the identity satisfies at least one of the
// requirements. A missing identity yields 401; otherwise a failed check is
// 403 and the session cookie stays intact.
func (a *API) requireAny(w http.ResponseWriter, r *http.Request, reqs ...auth.Requirement) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !identity.HasAnyRequirement(reqs...) {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}
