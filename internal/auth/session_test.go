package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, clock func() time.Time) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	opts := []ServiceOption{}
	if clock != nil {
		opts = append(opts, WithClock(clock))
	}
	svc, err := NewService(store, "test-secret-test-secret", opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func registerTestUser(t *testing.T, svc *Service, email string) (*User, *Session, string) {
	t.Helper()
	user, session, assertion, err := svc.Register(context.Background(), email, "s3cret-pass", SessionMetadata{Origin: "https://app.test"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return user, session, assertion
}

func TestCreateAndValidateSession(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	user, session, assertion := registerTestUser(t, svc, "diner@example.com")

	if session.Token == "" || session.CSRFToken == "" {
		t.Fatal("session must carry bearer and CSRF tokens")
	}
	if session.Token == session.CSRFToken {
		t.Fatal("bearer and CSRF tokens must be independent")
	}

	got, gotUser, err := svc.ValidateAssertion(ctx, assertion)
	if err != nil {
		t.Fatalf("ValidateAssertion: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("validated session %q, want %q", got.ID, session.ID)
	}
	if gotUser.ID != user.ID {
		t.Fatalf("validated user %q, want %q", gotUser.ID, user.ID)
	}
}

func TestValidateAssertionRejectsTampering(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, _, assertion := registerTestUser(t, svc, "diner@example.com")

	parts := strings.Split(assertion, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected assertion shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, _, err := svc.ValidateAssertion(ctx, tampered); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("tampered assertion: got %v, want ErrUnauthenticated", err)
	}
	if _, _, err := svc.ValidateAssertion(ctx, "garbage"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage assertion: got %v, want ErrUnauthenticated", err)
	}
}

func TestValidateAssertionRejectsOtherSecret(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	signer, err := NewService(store, "secret-one-secret-one")
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := NewService(store, "secret-two-secret-two")
	if err != nil {
		t.Fatal(err)
	}
	_, _, assertion, err := signer.Register(ctx, "diner@example.com", "s3cret-pass", SessionMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := verifier.ValidateAssertion(ctx, assertion); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("cross-secret assertion: got %v, want ErrUnauthenticated", err)
	}
}

func TestValidateAssertionExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	svc, _ := newTestService(t, func() time.Time { return now })
	_, session, assertion := registerTestUser(t, svc, "diner@example.com")

	now = session.ExpiresAt.Add(-time.Second)
	if _, _, err := svc.ValidateAssertion(ctx, assertion); err != nil {
		t.Fatalf("one second before expiry: %v", err)
	}

	// Expiry is exclusive: a session is invalid at exactly its expiry instant.
	now = session.ExpiresAt
	if _, _, err := svc.ValidateAssertion(ctx, assertion); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("at expiry instant: got %v, want ErrUnauthenticated", err)
	}
}

func TestValidateAssertionRejectsDeactivatedUser(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	user, _, assertion := registerTestUser(t, svc, "diner@example.com")

	// Flip the flag without touching sessions so the active check itself is
	// what rejects.
	if err := store.Users().SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, _, err := svc.ValidateAssertion(ctx, assertion); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deactivated user session: got %v, want ErrUnauthenticated", err)
	}
}

func TestRefreshSessionRotates(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, session, oldAssertion := registerTestUser(t, svc, "diner@example.com")

	fresh, assertion, err := svc.RefreshSession(ctx, session.ID, SessionMetadata{Origin: "https://app.test"})
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if fresh == nil || assertion == "" {
		t.Fatal("refresh of a live session must return a replacement")
	}
	if fresh.ID == session.ID {
		t.Fatal("replacement must carry a new session ID")
	}
	if fresh.CSRFToken == session.CSRFToken {
		t.Fatal("replacement must carry a new CSRF token")
	}

	// The rotated-out session is gone for good.
	if _, _, err := svc.ValidateAssertion(ctx, oldAssertion); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("old assertion after rotation: got %v, want ErrUnauthenticated", err)
	}
	if _, _, err := svc.ValidateAssertion(ctx, assertion); err != nil {
		t.Fatalf("new assertion after rotation: %v", err)
	}
}

func TestRefreshSessionStaleIsNotAnError(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, session, _ := registerTestUser(t, svc, "diner@example.com")

	if _, _, err := svc.RefreshSession(ctx, session.ID, SessionMetadata{}); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	// Second refresh of the same ID lost the race.
	replacement, assertion, err := svc.RefreshSession(ctx, session.ID, SessionMetadata{})
	if err != nil {
		t.Fatalf("stale refresh returned error: %v", err)
	}
	if replacement != nil || assertion != "" {
		t.Fatal("stale refresh must yield no replacement")
	}

	replacement, assertion, err = svc.RefreshSession(ctx, "never-existed", SessionMetadata{})
	if err != nil || replacement != nil || assertion != "" {
		t.Fatalf("unknown session refresh: (%v, %q, %v)", replacement, assertion, err)
	}
}

func TestRefreshSessionExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	_, session, _ := registerTestUser(t, svc, "diner@example.com")

	now = session.ExpiresAt
	replacement, assertion, err := svc.RefreshSession(ctx, session.ID, SessionMetadata{})
	if err != nil || replacement != nil || assertion != "" {
		t.Fatalf("expired session refresh: (%v, %q, %v)", replacement, assertion, err)
	}
}

func TestRevokeSession(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, session, assertion := registerTestUser(t, svc, "diner@example.com")

	if err := svc.RevokeSession(ctx, session.ID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, _, err := svc.ValidateAssertion(ctx, assertion); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("revoked session: got %v, want ErrUnauthenticated", err)
	}
	// Idempotent.
	if err := svc.RevokeSession(ctx, session.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	user, _, _ := registerTestUser(t, svc, "diner@example.com")

	if _, _, err := svc.CreateSession(ctx, user.ID, SessionMetadata{}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	now = now.Add(SessionTTL)
	n, err := svc.PurgeExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredSessions: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d sessions, want 2", n)
	}
	n, err = svc.PurgeExpiredSessions(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second purge: (%d, %v), want (0, nil)", n, err)
	}
}

func TestVerifyCSRF(t *testing.T) {
	session := &Session{CSRFToken: "token-abc"}
	if !VerifyCSRF(session, "token-abc") {
		t.Fatal("matching token should verify")
	}
	if VerifyCSRF(session, "token-abd") {
		t.Fatal("mismatched token should not verify")
	}
	if VerifyCSRF(session, "") {
		t.Fatal("empty token should not verify")
	}
	if VerifyCSRF(nil, "token-abc") {
		t.Fatal("nil session should not verify")
	}
	if VerifyCSRF(&Session{}, "token-abc") {
		t.Fatal("session without CSRF token should not verify")
	}
}
