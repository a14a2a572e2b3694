package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mesaplatform/mesa/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (s *PGStore) CreateMenu(ctx context.Context, m *Menu) error {
	_, err := s.db.ExecContext(ctx,
		`insert into menus(id, organization_id, name, active) values($1,$2,$3,$4)`,
		m.ID, m.OrganizationID, m.Name, m.Active,
	)
	return mapPGError(err)
}

func (s *PGStore) FindMenu(ctx context.Context, id string) (*Menu, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, organization_id, name, active, created_at, updated_at from menus where id=$1`, id)
	var m Menu
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.Name, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *PGStore) ListMenus(ctx context.Context, organizationID string) ([]*Menu, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, organization_id, name, active, created_at, updated_at
		 from menus where organization_id=$1 order by created_at`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Menu
	for rows.Next() {
		var m Menu
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Name, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &m)
	}
	return res, rows.Err()
}

func (s *PGStore) SetMenuActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update menus set active=$2, updated_at=now() where id=$1`, id, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CreateProduct(ctx context.Context, p *Product) error {
	_, err := s.db.ExecContext(ctx,
		`insert into products(id, menu_id, name, description, price_minor, currency)
		 values($1,$2,$3,$4,$5,$6)`,
		p.ID, p.MenuID, p.Name, p.Description, p.PriceMinor, p.Currency,
	)
	return mapPGError(err)
}

func (s *PGStore) FindProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, menu_id, name, description, price_minor, currency, created_at, updated_at
		 from products where id=$1`, id)
	var p Product
	if err := row.Scan(&p.ID, &p.MenuID, &p.Name, &p.Description, &p.PriceMinor, &p.Currency, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) ListProducts(ctx context.Context, menuID string) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, menu_id, name, description, price_minor, currency, created_at, updated_at
		 from products where menu_id=$1 order by created_at`, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.MenuID, &p.Name, &p.Description, &p.PriceMinor, &p.Currency, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

func (s *PGStore) UpdateProduct(ctx context.Context, p *Product) error {
	res, err := s.db.ExecContext(ctx,
		`update products set name=$2, description=$3, price_minor=$4, currency=$5, updated_at=now()
		 where id=$1`,
		p.ID, p.Name, p.Description, p.PriceMinor, p.Currency,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from products where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) EnsureAllergens(ctx context.Context, allergens []Allergen) error {
	for _, a := range allergens {
		id := a.ID
		if id == "" {
			id = ids.New()
		}
		if _, err := s.db.ExecContext(ctx,
			`insert into allergens(id, code, name) values($1,$2,$3) on conflict (code) do nothing`,
			id, a.Code, a.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) ListAllergens(ctx context.Context) ([]Allergen, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, code, name, created_at from allergens order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Allergen
	for rows.Next() {
		var a Allergen
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ReplaceProductAllergens swaps the product's allergen set in one
// transaction.
func (s *PGStore) ReplaceProductAllergens(ctx context.Context, productID string, codes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`delete from product_allergens where product_id=$1`, productID); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx,
			`insert into product_allergens(product_id, allergen_id)
			 select $1, id from allergens where code=$2`, productID, code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) AllergensForProduct(ctx context.Context, productID string) ([]Allergen, error) {
	rows, err := s.db.QueryContext(ctx,
		`select a.id, a.code, a.name, a.created_at
		 from product_allergens pa join allergens a on a.id = pa.allergen_id
		 where pa.product_id=$1 order by a.code`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Allergen
	for rows.Next() {
		var a Allergen
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
