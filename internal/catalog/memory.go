package catalog

import (
	"context"
	"sync"

	"github.com/mesaplatform/mesa/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu        sync.Mutex
	menus     map[string]*Menu
	products  map[string]*Product
	allergens map[string]*Allergen // by code
	links     map[string][]string  // product ID -> allergen codes
}

func NewMemStore() *MemStore {
	return &MemStore{
		menus:     map[string]*Menu{},
		products:  map[string]*Product{},
		allergens: map[string]*Allergen{},
		links:     map[string][]string{},
	}
}

func (m *MemStore) CreateMenu(_ context.Context, menu *Menu) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *menu
	m.menus[menu.ID] = &cp
	return nil
}

func (m *MemStore) FindMenu(_ context.Context, id string) (*Menu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	menu, ok := m.menus[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *menu
	return &cp, nil
}

func (m *MemStore) ListMenus(_ context.Context, organizationID string) ([]*Menu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*Menu
	for _, menu := range m.menus {
		if menu.OrganizationID == organizationID {
			cp := *menu
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *MemStore) SetMenuActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	menu, ok := m.menus[id]
	if !ok {
		return ErrNotFound
	}
	menu.Active = active
	return nil
}

func (m *MemStore) CreateProduct(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemStore) FindProduct(_ context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) ListProducts(_ context.Context, menuID string) ([]*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*Product
	for _, p := range m.products {
		if p.MenuID == menuID {
			cp := *p
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *MemStore) UpdateProduct(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemStore) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	delete(m.links, id)
	return nil
}

func (m *MemStore) EnsureAllergens(_ context.Context, allergens []Allergen) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range allergens {
		if _, ok := m.allergens[a.Code]; ok {
			continue
		}
		if a.ID == "" {
			a.ID = ids.New()
		}
		cp := a
		m.allergens[a.Code] = &cp
	}
	return nil
}

func (m *MemStore) ListAllergens(_ context.Context) ([]Allergen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Allergen
	for _, a := range m.allergens {
		res = append(res, *a)
	}
	return res, nil
}

func (m *MemStore) ReplaceProductAllergens(_ context.Context, productID string, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]string, 0, len(codes))
	for _, code := range codes {
		if _, ok := m.allergens[code]; ok {
			kept = append(kept, code)
		}
	}
	m.links[productID] = kept
	return nil
}

func (m *MemStore) AllergensForProduct(_ context.Context, productID string) ([]Allergen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Allergen
	for _, code := range m.links[productID] {
		if a, ok := m.allergens[code]; ok {
			res = append(res, *a)
		}
	}
	return res, nil
}
