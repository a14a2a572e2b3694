package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrConflict     = errors.New("catalog: conflict")
	ErrInvalidInput = errors.New("catalog: invalid input")
)

// Menu groups products under an organization.
type Menu struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Product is one sellable item on a menu. Price is in the currency's minor
// unit to avoid floating point money.
type Product struct {
	ID          string    `json:"id"`
	MenuID      string    `json:"menu_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceMinor  int64     `json:"price_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Allergen is one entry of the platform-wide allergen catalog.
type Allergen struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store describes catalog persistence. ReplaceProductAllergens swaps the
// product's full allergen set in one transaction.
type Store interface {
	CreateMenu(ctx context.Context, m *Menu) error
	FindMenu(ctx context.Context, id string) (*Menu, error)
	ListMenus(ctx context.Context, organizationID string) ([]*Menu, error)
	SetMenuActive(ctx context.Context, id string, active bool) error

	CreateProduct(ctx context.Context, p *Product) error
	FindProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, menuID string) ([]*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error

	EnsureAllergens(ctx context.Context, allergens []Allergen) error
	ListAllergens(ctx context.Context) ([]Allergen, error)
	ReplaceProductAllergens(ctx context.Context, productID string, codes []string) error
	AllergensForProduct(ctx context.Context, productID string) ([]Allergen, error)
}

// BuiltinAllergens is the baseline catalog ensured at startup, following the
// EU FIC annex II list.
var BuiltinAllergens = []Allergen{
	{Code: "gluten", Name: "Cereals containing gluten"},
	{Code: "crustaceans", Name: "Crustaceans"},
	{Code: "eggs", Name: "Eggs"},
	{Code: "fish", Name: "Fish"},
	{Code: "peanuts", Name: "Peanuts"},
	{Code: "soybeans", Name: "Soybeans"},
	{Code: "milk", Name: "Milk"},
	{Code: "nuts", Name: "Tree nuts"},
	{Code: "celery", Name: "Celery"},
	{Code: "mustard", Name: "Mustard"},
	{Code: "sesame", Name: "Sesame seeds"},
	{Code: "sulphites", Name: "Sulphur dioxide and sulphites"},
	{Code: "lupin", Name: "Lupin"},
	{Code: "molluscs", Name: "Molluscs"},
}
