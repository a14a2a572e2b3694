package venue

import (
	"context"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu        sync.Mutex
	locations map[string]*Location
	hours     map[string][]Span
	instances map[string]*SalesInstance
}

func NewMemStore() *MemStore {
	return &MemStore{
		locations: map[string]*Location{},
		hours:     map[string][]Span{},
		instances: map[string]*SalesInstance{},
	}
}

func (m *MemStore) CreateLocation(_ context.Context, l *Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.locations[l.ID] = &cp
	return nil
}

func (m *MemStore) FindLocation(_ context.Context, id string) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MemStore) ListLocations(_ context.Context, organizationID string) ([]*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*Location
	for _, l := range m.locations {
		if l.OrganizationID == organizationID {
			cp := *l
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *MemStore) UpdateLocation(_ context.Context, l *Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locations[l.ID]; !ok {
		return ErrNotFound
	}
	cp := *l
	m.locations[l.ID] = &cp
	return nil
}

func (m *MemStore) DeleteLocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locations[id]; !ok {
		return ErrNotFound
	}
	delete(m.locations, id)
	delete(m.hours, id)
	for siID, si := range m.instances {
		if si.LocationID == id {
			delete(m.instances, siID)
		}
	}
	return nil
}

func (m *MemStore) ReplaceHours(_ context.Context, locationID string, spans []Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Span, len(spans))
	copy(cp, spans)
	m.hours[locationID] = cp
	return nil
}

func (m *MemStore) HoursFor(_ context.Context, locationID string) ([]Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spans := m.hours[locationID]
	res := make([]Span, len(spans))
	copy(res, spans)
	return res, nil
}

func (m *MemStore) CreateSalesInstance(_ context.Context, si *SalesInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *si
	m.instances[si.ID] = &cp
	return nil
}

func (m *MemStore) FindSalesInstance(_ context.Context, id string) (*SalesInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	si, ok := m.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *si
	return &cp, nil
}

func (m *MemStore) ListSalesInstances(_ context.Context, locationID string) ([]*SalesInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*SalesInstance
	for _, si := range m.instances {
		if si.LocationID == locationID {
			cp := *si
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *MemStore) SetSalesInstanceActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	si, ok := m.instances[id]
	if !ok {
		return ErrNotFound
	}
	si.Active = active
	return nil
}

func (m *MemStore) DeleteSalesInstance(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[id]; !ok {
		return ErrNotFound
	}
	delete(m.instances, id)
	return nil
}
