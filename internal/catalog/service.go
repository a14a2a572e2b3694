package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mesaplatform/mesa/internal/ids"
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

// EnsureBuiltins seeds the allergen catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsureAllergens(ctx, BuiltinAllergens)
}

// CreateMenu creates a menu under the organization.
func (s *Service) CreateMenu(ctx context.Context, organizationID, name string) (*Menu, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: menu name is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	m := &Menu{
		ID:             ids.New(),
		OrganizationID: organizationID,
		Name:           name,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateMenu(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Menu loads one menu.
func (s *Service) Menu(ctx context.Context, id string) (*Menu, error) {
	return s.store.FindMenu(ctx, id)
}

// ListMenus lists the organization's menus.
func (s *Service) ListMenus(ctx context.Context, organizationID string) ([]*Menu, error) {
	return s.store.ListMenus(ctx, organizationID)
}

// SetMenuActive flips the menu's active flag.
func (s *Service) SetMenuActive(ctx context.Context, id string, active bool) error {
	return s.store.SetMenuActive(ctx, id, active)
}

func validateProduct(name, currency string, priceMinor int64) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if priceMinor < 0 {
		return "", "", fmt.Errorf("%w: price may not be negative", ErrInvalidInput)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return "", "", fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}
	return name, currency, nil
}

// CreateProduct adds a product to the menu.
func (s *Service) CreateProduct(ctx context.Context, menuID, name, description string, priceMinor int64, currency string) (*Product, error) {
	if _, err := s.store.FindMenu(ctx, menuID); err != nil {
		return nil, err
	}
	name, currency, err := validateProduct(name, currency, priceMinor)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Product{
		ID:          ids.New(),
		MenuID:      menuID,
		Name:        name,
		Description: strings.TrimSpace(description),
		PriceMinor:  priceMinor,
		Currency:    currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Product loads one product.
func (s *Service) Product(ctx context.Context, id string) (*Product, error) {
	return s.store.FindProduct(ctx, id)
}

// ListProducts lists the menu's products.
func (s *Service) ListProducts(ctx context.Context, menuID string) ([]*Product, error) {
	return s.store.ListProducts(ctx, menuID)
}

// UpdateProduct replaces the product's mutable fields.
func (s *Service) UpdateProduct(ctx context.Context, id, name, description string, priceMinor int64, currency string) (*Product, error) {
	p, err := s.store.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	name, currency, err = validateProduct(name, currency, priceMinor)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.Description = strings.TrimSpace(description)
	p.PriceMinor = priceMinor
	p.Currency = currency
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes a product and its allergen links.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.store.DeleteProduct(ctx, id)
}

// ListAllergens lists the platform allergen catalog.
func (s *Service) ListAllergens(ctx context.Context) ([]Allergen, error) {
	return s.store.ListAllergens(ctx)
}

// SetProductAllergens replaces the product's allergen set. Unknown codes are
// rejected rather than silently dropped.
func (s *Service) SetProductAllergens(ctx context.Context, productID string, codes []string) error {
	if _, err := s.store.FindProduct(ctx, productID); err != nil {
		return err
	}
	known, err := s.store.ListAllergens(ctx)
	if err != nil {
		return err
	}
	knownCodes := make(map[string]struct{}, len(known))
	for _, a := range known {
		knownCodes[a.Code] = struct{}{}
	}
	deduped := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(strings.ToLower(code))
		if code == "" {
			continue
		}
		if _, ok := knownCodes[code]; !ok {
			return fmt.Errorf("%w: unknown allergen code %q", ErrInvalidInput, code)
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		deduped = append(deduped, code)
	}
	return s.store.ReplaceProductAllergens(ctx, productID, deduped)
}

// ProductAllergens lists the product's allergens.
func (s *Service) ProductAllergens(ctx context.Context, productID string) ([]Allergen, error) {
	return s.store.AllergensForProduct(ctx, productID)
}
