package venue

import (
	"context"
	"database/sql"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const locationColumns = `id, organization_id, name, address, timezone, created_at, updated_at`

func scanLocation(row *sql.Row) (*Location, error) {
	var l Location
	if err := row.Scan(&l.ID, &l.OrganizationID, &l.Name, &l.Address, &l.Timezone, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (s *PGStore) CreateLocation(ctx context.Context, l *Location) error {
	_, err := s.db.ExecContext(ctx,
		`insert into locations(id, organization_id, name, address, timezone)
		 values($1,$2,$3,$4,$5)`,
		l.ID, l.OrganizationID, l.Name, l.Address, l.Timezone,
	)
	return err
}

func (s *PGStore) FindLocation(ctx context.Context, id string) (*Location, error) {
	return scanLocation(s.db.QueryRowContext(ctx,
		`select `+locationColumns+` from locations where id=$1`, id))
}

func (s *PGStore) ListLocations(ctx context.Context, organizationID string) ([]*Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+locationColumns+` from locations where organization_id=$1 order by created_at`,
		organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Name, &l.Address, &l.Timezone, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &l)
	}
	return res, rows.Err()
}

func (s *PGStore) UpdateLocation(ctx context.Context, l *Location) error {
	res, err := s.db.ExecContext(ctx,
		`update locations set name=$2, address=$3, timezone=$4, updated_at=now() where id=$1`,
		l.ID, l.Name, l.Address, l.Timezone,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from locations where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceHours deletes the week and inserts the new spans in one transaction,
// so a reader never observes a partially replaced schedule.
func (s *PGStore) ReplaceHours(ctx context.Context, locationID string, spans []Span) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`delete from location_hours where location_id=$1`, locationID); err != nil {
		return err
	}
	for _, sp := range spans {
		if _, err := tx.ExecContext(ctx,
			`insert into location_hours(location_id, weekday, opens, closes) values($1,$2,$3,$4)`,
			locationID, int(sp.Weekday), sp.Opens, sp.Closes); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) HoursFor(ctx context.Context, locationID string) ([]Span, error) {
	rows, err := s.db.QueryContext(ctx,
		`select weekday, opens, closes from location_hours
		 where location_id=$1 order by weekday, opens`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Span
	for rows.Next() {
		var (
			weekday int
			sp      Span
		)
		if err := rows.Scan(&weekday, &sp.Opens, &sp.Closes); err != nil {
			return nil, err
		}
		sp.Weekday = time.Weekday(weekday)
		res = append(res, sp)
	}
	return res, rows.Err()
}

func (s *PGStore) CreateSalesInstance(ctx context.Context, si *SalesInstance) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sales_instances(id, location_id, name, channel, active)
		 values($1,$2,$3,$4,$5)`,
		si.ID, si.LocationID, si.Name, si.Channel, si.Active,
	)
	return err
}

func (s *PGStore) FindSalesInstance(ctx context.Context, id string) (*SalesInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, location_id, name, channel, active, created_at, updated_at
		 from sales_instances where id=$1`, id)
	var si SalesInstance
	if err := row.Scan(&si.ID, &si.LocationID, &si.Name, &si.Channel, &si.Active, &si.CreatedAt, &si.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &si, nil
}

func (s *PGStore) ListSalesInstances(ctx context.Context, locationID string) ([]*SalesInstance, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, location_id, name, channel, active, created_at, updated_at
		 from sales_instances where location_id=$1 order by created_at`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*SalesInstance
	for rows.Next() {
		var si SalesInstance
		if err := rows.Scan(&si.ID, &si.LocationID, &si.Name, &si.Channel, &si.Active, &si.CreatedAt, &si.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &si)
	}
	return res, rows.Err()
}

func (s *PGStore) SetSalesInstanceActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update sales_instances set active=$2, updated_at=now() where id=$1`, id, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteSalesInstance(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from sales_instances where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
