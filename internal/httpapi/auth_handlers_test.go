package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mesaplatform/mesa/internal/auth"
	"github.com/mesaplatform/mesa/internal/catalog"
	"github.com/mesaplatform/mesa/internal/profile"
	"github.com/mesaplatform/mesa/internal/venue"
)

type testEnv struct {
	handler http.Handler
	auth    *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := auth.NewMemStore()
	authSvc, err := auth.NewService(store, "test-secret-test-secret")
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	if err := authSvc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}
	catalogSvc := catalog.NewService(catalog.NewMemStore())
	if err := catalogSvc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("catalog EnsureBuiltins: %v", err)
	}

	api := New(Options{
		Auth:       authSvc,
		Profiles:   profile.NewService(profile.NewMemStore()),
		Venues:     venue.NewService(venue.NewMemStore()),
		Catalog:    catalogSvc,
		Version:    "test",
		RateBurst:  100000,
		RatePerSec: 100000,
	})
	return &testEnv{handler: api.Handler(), auth: authSvc}
}

// clientSession mirrors what a browser holds after login: the session cookie
// and the CSRF token from the response body.
type clientSession struct {
	assertion string
	csrf      string
}

func (e *testEnv) do(t *testing.T, method, path string, body any, sess *clientSession) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sess.assertion})
		if sess.csrf != "" {
			req.Header.Set(csrfHeader, sess.csrf)
		}
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func sessionFrom(t *testing.T, w *httptest.ResponseRecorder) *clientSession {
	t.Helper()
	var resp struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return &clientSession{assertion: c.Value, csrf: resp.CSRFToken}
		}
	}
	t.Fatal("response did not set the session cookie")
	return nil
}

func (e *testEnv) register(t *testing.T, email, password string) (*clientSession, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return sessionFrom(t, w), resp.User.ID
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func clearedSessionCookie(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestRegisterThenMeLowercasesEmail(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.register(t, "Dana@Example.COM", "s3cret-pass")

	w := env.do(t, http.MethodGet, "/v1/me", nil, sess)
	if w.Code != http.StatusOK {
		t.Fatalf("/v1/me: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode /v1/me: %v", err)
	}
	if resp.User.Email != "dana@example.com" {
		t.Fatalf("email %q, want normalized lowercase", resp.User.Email)
	}
}

func TestRegisterDuplicateOtherCasing(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dana@example.com", "s3cret-pass")

	w := env.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":    "DANA@example.com",
		"password": "other-s3cret",
	}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", w.Code)
	}
}

func TestLoginFailuresAreByteIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dana@example.com", "s3cret-pass")

	var messages []string
	attempts := []map[string]string{
		{"email": "dana@example.com", "password": "wrong-one"},
		{"email": "dana@example.com", "password": "wrong-two"},
		{"email": "nobody@example.com", "password": "whatever1"},
	}
	for _, body := range attempts {
		w := env.do(t, http.MethodPost, "/v1/auth/login", body, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("login failure: status %d, want 401", w.Code)
		}
		messages = append(messages, errorMessage(t, w))
	}
	for _, msg := range messages {
		if msg != auth.LoginFailedMessage {
			t.Fatalf("message %q, want %q for every failure mode", msg, auth.LoginFailedMessage)
		}
	}
}

func TestPasswordChangeKillsOldSession(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.register(t, "dana@example.com", "s3cret-pass")

	w := env.do(t, http.MethodPost, "/v1/auth/password", map[string]string{
		"current_password": "s3cret-pass",
		"new_password":     "brand-new-pass",
	}, sess)
	if w.Code != http.StatusOK {
		t.Fatalf("password change: status %d, body %s", w.Code, w.Body.String())
	}
	if !clearedSessionCookie(w) {
		t.Fatal("password change must clear the session cookie")
	}

	w = env.do(t, http.MethodGet, "/v1/me", nil, sess)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("old cookie after password change: status %d, want 401", w.Code)
	}

	// The new credential logs in.
	w = env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "dana@example.com",
		"password": "brand-new-pass",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login with new password: status %d", w.Code)
	}
}

func TestCSRFRequiredOnMutation(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.register(t, "dana@example.com", "s3cret-pass")

	// Reads pass without the header.
	if w := env.do(t, http.MethodGet, "/v1/me", nil, &clientSession{assertion: sess.assertion}); w.Code != http.StatusOK {
		t.Fatalf("GET without CSRF: status %d, want 200", w.Code)
	}

	body := map[string]string{"display_name": "Dana"}
	// Missing header.
	w := env.do(t, http.MethodPut, "/v1/me/profile", body, &clientSession{assertion: sess.assertion})
	if w.Code != http.StatusForbidden {
		t.Fatalf("mutation without CSRF: status %d, want 403", w.Code)
	}
	// Wrong token.
	w = env.do(t, http.MethodPut, "/v1/me/profile", body, &clientSession{assertion: sess.assertion, csrf: "forged"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("mutation with forged CSRF: status %d, want 403", w.Code)
	}
	// Correct token.
	w = env.do(t, http.MethodPut, "/v1/me/profile", body, sess)
	if w.Code != http.StatusOK {
		t.Fatalf("mutation with CSRF: status %d, body %s", w.Code, w.Body.String())
	}
}

func TestUnauthorizedClearsCookieForbiddenDoesNot(t *testing.T) {
	env := newTestEnv(t)

	// Garbage cookie: 401 and the cookie is cleared.
	w := env.do(t, http.MethodGet, "/v1/me", nil, &clientSession{assertion: "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage cookie: status %d, want 401", w.Code)
	}
	if !clearedSessionCookie(w) {
		t.Fatal("invalid session must clear the cookie")
	}

	// Valid session without permission: 403 and the cookie survives.
	sess, _ := env.register(t, "dana@example.com", "s3cret-pass")
	w = env.do(t, http.MethodPost, "/v1/organizations", map[string]string{"name": "Mesa North"}, sess)
	if w.Code != http.StatusForbidden {
		t.Fatalf("no permission: status %d, want 403", w.Code)
	}
	if clearedSessionCookie(w) {
		t.Fatal("a 403 must not clear the session cookie")
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.register(t, "dana@example.com", "s3cret-pass")

	w := env.do(t, http.MethodPost, "/v1/auth/refresh", nil, &clientSession{assertion: sess.assertion})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status %d, body %s", w.Code, w.Body.String())
	}
	fresh := sessionFrom(t, w)
	if fresh.assertion == sess.assertion {
		t.Fatal("refresh must issue a new assertion")
	}
	if fresh.csrf == sess.csrf {
		t.Fatal("refresh must issue a new CSRF token")
	}

	// The rotated-out cookie is dead.
	w = env.do(t, http.MethodGet, "/v1/me", nil, sess)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("old cookie after refresh: status %d, want 401", w.Code)
	}
	w = env.do(t, http.MethodGet, "/v1/me", nil, fresh)
	if w.Code != http.StatusOK {
		t.Fatalf("new cookie after refresh: status %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.register(t, "dana@example.com", "s3cret-pass")

	w := env.do(t, http.MethodPost, "/v1/auth/logout", nil, sess)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status %d", w.Code)
	}
	if !clearedSessionCookie(w) {
		t.Fatal("logout must clear the session cookie")
	}
	w = env.do(t, http.MethodGet, "/v1/me", nil, sess)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("cookie after logout: status %d, want 401", w.Code)
	}
}

func TestAnonymousEndpointsStayOpen(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		w := env.do(t, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d, want 200", path, w.Code)
		}
	}
	if w := env.do(t, http.MethodGet, "/v1/me", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("/v1/me without cookie: status %d, want 401", w.Code)
	}
}
