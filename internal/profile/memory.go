package profile

import (
	"context"
	"sync"
	"time"

	"github.com/mesaplatform/mesa/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	consents []Consent
}

func NewMemStore() *MemStore {
	return &MemStore{profiles: map[string]*Profile{}}
}

func (m *MemStore) Get(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) Upsert(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *MemStore) Grant(_ context.Context, c *Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.consents {
		existing := &m.consents[i]
		if existing.UserID == c.UserID && existing.Type == c.Type && existing.RevokedAt == nil {
			at := c.GrantedAt
			existing.RevokedAt = &at
		}
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	m.consents = append(m.consents, *c)
	return nil
}

func (m *MemStore) Revoke(_ context.Context, userID, consentType string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.consents {
		c := &m.consents[i]
		if c.UserID == userID && c.Type == consentType && c.RevokedAt == nil {
			t := at
			c.RevokedAt = &t
		}
	}
	return nil
}

func (m *MemStore) ListActive(_ context.Context, userID string) ([]Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Consent
	for _, c := range m.consents {
		if c.UserID == userID && c.RevokedAt == nil {
			res = append(res, c)
		}
	}
	return res, nil
}
