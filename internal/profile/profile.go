package profile

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("profile: not found")
	ErrInvalidInput = errors.New("profile: invalid input")
)

// Profile is the zero-or-one personal record attached to a user account.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Phone       string    `json:"phone,omitempty"`
	Locale      string    `json:"locale,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Consent records one granted consent of a given type. A revoked consent
// keeps its row with RevokedAt set; listings return active rows only.
type Consent struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Consent types accepted by Grant.
const (
	ConsentMarketing = "marketing"
	ConsentAnalytics = "analytics"
	ConsentTerms     = "terms"
)

func validConsentType(t string) bool {
	switch t {
	case ConsentMarketing, ConsentAnalytics, ConsentTerms:
		return true
	}
	return false
}

// Store describes persistence for profiles and consents. Grant retires any
// active consent of the same type and inserts the replacement in one
// transaction.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
	Grant(ctx context.Context, c *Consent) error
	Revoke(ctx context.Context, userID, consentType string, at time.Time) error
	ListActive(ctx context.Context, userID string) ([]Consent, error)
}
