package profile

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service applies validation over the store.
type Service struct {
	store Store
	now   func() time.Time
}

type ServiceOption func(*Service)

// WithClock overrides the time source for tests.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) { s.now = fn }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads the user's profile.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	return s.store.Get(ctx, userID)
}

// Upsert creates or replaces the user's profile.
func (s *Service) Upsert(ctx context.Context, userID, displayName, phone, locale string) (*Profile, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display_name is required", ErrInvalidInput)
	}
	if len(displayName) > 120 {
		return nil, fmt.Errorf("%w: display_name exceeds 120 characters", ErrInvalidInput)
	}
	now := s.now().UTC()
	p := &Profile{
		UserID:      userID,
		DisplayName: displayName,
		Phone:       strings.TrimSpace(phone),
		Locale:      strings.TrimSpace(strings.ToLower(locale)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GrantConsent records a consent of the given type. Granting a type the user
// already holds retires the prior row and inserts the new one atomically, so
// the grant timestamp always reflects the latest affirmative action.
func (s *Service) GrantConsent(ctx context.Context, userID, consentType string) (*Consent, error) {
	consentType = strings.TrimSpace(strings.ToLower(consentType))
	if !validConsentType(consentType) {
		return nil, fmt.Errorf("%w: unsupported consent type %q", ErrInvalidInput, consentType)
	}
	c := &Consent{
		UserID:    userID,
		Type:      consentType,
		GrantedAt: s.now().UTC(),
	}
	if err := s.store.Grant(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RevokeConsent retires the active consent of the given type. Revoking a
// type that is not active is a no-op.
func (s *Service) RevokeConsent(ctx context.Context, userID, consentType string) error {
	consentType = strings.TrimSpace(strings.ToLower(consentType))
	if !validConsentType(consentType) {
		return fmt.Errorf("%w: unsupported consent type %q", ErrInvalidInput, consentType)
	}
	return s.store.Revoke(ctx, userID, consentType, s.now().UTC())
}

// ListConsents returns the user's active consents.
func (s *Service) ListConsents(ctx context.Context, userID string) ([]Consent, error) {
	return s.store.ListActive(ctx, userID)
}
