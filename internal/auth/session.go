package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mesaplatform/mesa/internal/ids"
)

// assertionClaims is the payload of the signed bearer credential. The session
// row referenced by SessionID is the authority; the assertion only transports
// the reference.
type assertionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func newRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateSession persists a new session for the user and returns it together
// with the signed assertion handed to the client. The bearer token and the
// CSRF token are independent secrets; both expire on the same horizon.
func (s *Service) CreateSession(ctx context.Context, userID string, meta SessionMetadata) (*Session, string, error) {
	token, err := newRandomToken()
	if err != nil {
		return nil, "", err
	}
	csrf, err := newRandomToken()
	if err != nil {
		return nil, "", err
	}
	now := s.now().UTC()
	session := &Session{
		ID:        ids.New(),
		UserID:    userID,
		Token:     token,
		CSRFToken: csrf,
		Origin:    meta.Origin,
		UserAgent: meta.UserAgent,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, "", err
	}
	assertion, err := s.signAssertion(session)
	if err != nil {
		return nil, "", err
	}
	return session, assertion, nil
}

func (s *Service) signAssertion(session *Session) (string, error) {
	claims := assertionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

func (s *Service) parseAssertion(assertion string) (*assertionClaims, error) {
	parsed, err := jwt.ParseWithClaims(assertion, &assertionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnauthenticated
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*assertionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrUnauthenticated
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrUnauthenticated
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// ValidateAssertion verifies the signed assertion, loads the referenced
// session and re-checks both the stored expiry and the owning user's active
// flag. A structurally valid assertion for a stale session or a deactivated
// user is rejected the same way as a forged one.
func (s *Service) ValidateAssertion(ctx context.Context, assertion string) (*Session, *User, error) {
	claims, err := s.parseAssertion(assertion)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}
	session, err := s.store.Sessions().Find(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, nil, ErrUnauthenticated
	}
	user, err := s.store.Users().Find(ctx, session.UserID)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}
	if !user.Active {
		return nil, nil, ErrUnauthenticated
	}
	return session, user, nil
}

// RefreshSession replaces a still-valid session with a fresh one (new tokens,
// new expiry) and permanently invalidates the old session ID. A stale or
// already-rotated session yields (nil, "", nil): an expected outcome, not an
// error. Of two concurrent refreshes exactly one wins the row delete.
func (s *Service) RefreshSession(ctx context.Context, sessionID string, meta SessionMetadata) (*Session, string, error) {
	current, err := s.store.Sessions().Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if !s.now().Before(current.ExpiresAt) {
		return nil, "", nil
	}

	token, err := newRandomToken()
	if err != nil {
		return nil, "", err
	}
	csrf, err := newRandomToken()
	if err != nil {
		return nil, "", err
	}
	now := s.now().UTC()
	replacement := &Session{
		ID:        ids.New(),
		UserID:    current.UserID,
		Token:     token,
		CSRFToken: csrf,
		Origin:    meta.Origin,
		UserAgent: meta.UserAgent,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.store.Sessions().Rotate(ctx, sessionID, replacement); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	assertion, err := s.signAssertion(replacement)
	if err != nil {
		return nil, "", err
	}
	return replacement, assertion, nil
}

// RevokeSession deletes the session. Revoking an absent session is a no-op.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	return s.store.Sessions().Delete(ctx, sessionID)
}

// PurgeExpiredSessions removes sessions whose expiry has passed.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.store.Sessions().PurgeExpired(ctx, s.now().UTC())
}

// VerifyCSRF compares a presented token against the session's stored CSRF
// token with constant-time semantics.
func VerifyCSRF(session *Session, presented string) bool {
	if session == nil || presented == "" || session.CSRFToken == "" {
		return false
	}
	if len(presented) != len(session.CSRFToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(session.CSRFToken)) == 1
}
