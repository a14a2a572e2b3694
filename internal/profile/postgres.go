package profile

import (
	"context"
	"database/sql"
	"time"

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

func (s *PGStore) Get(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select user_id, display_name, phone, locale, created_at, updated_at
		 from profiles where user_id=$1`, userID)
	var p Profile
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.Phone, &p.Locale, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) Upsert(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx,
		`insert into profiles(user_id, display_name, phone, locale)
		 values($1,$2,$3,$4)
		 on conflict (user_id) do update
		 set display_name=excluded.display_name, phone=excluded.phone,
		     locale=excluded.locale, updated_at=now()`,
		p.UserID, p.DisplayName, p.Phone, p.Locale,
	)
	return err
}

// Grant retires any active consent of the same type and inserts the new row
// in one transaction, so two rows of one type are never active together.
func (s *PGStore) Grant(ctx context.Context, c *Consent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`update consents set revoked_at=$3 where user_id=$1 and type=$2 and revoked_at is null`,
		c.UserID, c.Type, c.GrantedAt); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	if _, err := tx.ExecContext(ctx,
		`insert into consents(id, user_id, type, granted_at) values($1,$2,$3,$4)`,
		c.ID, c.UserID, c.Type, c.GrantedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) Revoke(ctx context.Context, userID, consentType string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update consents set revoked_at=$3 where user_id=$1 and type=$2 and revoked_at is null`,
		userID, consentType, at)
	return err
}

func (s *PGStore) ListActive(ctx context.Context, userID string) ([]Consent, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, type, granted_at from consents
		 where user_id=$1 and revoked_at is null order by granted_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Consent
	for rows.Next() {
		var c Consent
		if err := rows.Scan(&c.ID, &c.UserID, &c.Type, &c.GrantedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
