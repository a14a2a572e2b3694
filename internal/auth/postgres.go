package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

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

func (s *PGStore) Organizations() OrganizationStore { return &orgStore{db: s.db} }
func (s *PGStore) Users() UserStore                 { return &userStore{db: s.db} }
func (s *PGStore) Sessions() SessionStore           { return &sessionStore{db: s.db} }
func (s *PGStore) Roles() RoleStore                 { return &roleStore{db: s.db} }
func (s *PGStore) Permissions() PermissionStore     { return &permissionStore{db: s.db} }

// mapPGError converts driver errors into the package's sentinel errors.
func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

// Organization store -------------------------------------------------------
type orgStore struct{ db *sql.DB }

func (s *orgStore) Create(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into organizations(id, name) values($1,$2)`,
		org.ID, org.Name,
	)
	return mapPGError(err)
}

func (s *orgStore) Find(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at from organizations where id=$1`, id)
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *orgStore) List(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, created_at, updated_at from organizations order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &org)
	}
	return res, rows.Err()
}

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, active) values($1,$2,$3,$4)`,
		u.ID, u.Email, u.PasswordHash, u.Active,
	)
	return mapPGError(err)
}

const userColumns = `id, email, password_hash, active, last_login_at, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var (
		u         User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=lower($1)`, email))
}

func (s *userStore) SetActive(ctx context.Context, userID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set active=$2, updated_at=now() where id=$1`, userID, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *userStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login_at=$2, updated_at=now() where id=$1`, userID, at)
	return err
}

func (s *userStore) UpdatePasswordAndRevokeSessions(ctx context.Context, userID, passwordHash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from sessions where user_id=$1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// Session store ------------------------------------------------------------
type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, token, csrf_token, origin, user_agent, expires_at, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		sess.ID, sess.UserID, sess.Token, sess.CSRFToken, sess.Origin, sess.UserAgent, sess.ExpiresAt, sess.CreatedAt,
	)
	return mapPGError(err)
}

func (s *sessionStore) Find(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token, csrf_token, origin, user_agent, expires_at, created_at
		 from sessions where id=$1`, id)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.CSRFToken, &sess.Origin, &sess.UserAgent, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where id=$1`, id)
	return err
}

func (s *sessionStore) DeleteForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where user_id=$1`, userID)
	return err
}

func (s *sessionStore) Rotate(ctx context.Context, oldID string, replacement *Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `delete from sessions where id=$1`, oldID)
	if err != nil {
		return err
	}
	// Zero rows means another refresh already won the race.
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if replacement.ID == "" {
		replacement.ID = ids.New()
	}
	_, err = tx.ExecContext(ctx,
		`insert into sessions(id, user_id, token, csrf_token, origin, user_agent, expires_at, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		replacement.ID, replacement.UserID, replacement.Token, replacement.CSRFToken,
		replacement.Origin, replacement.UserAgent, replacement.ExpiresAt, replacement.CreatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Role store ---------------------------------------------------------------
type roleStore struct{ db *sql.DB }

const roleColumns = `id, name, domain, description, is_system, created_at, updated_at`

func scanRole(row *sql.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Domain, &role.Description, &role.System, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name, domain, description, is_system) values($1,$2,$3,$4,$5)`,
		role.ID, role.Name, role.Domain, role.Description, role.System,
	)
	return mapPGError(err)
}

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where id=$1`, id))
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where name=$1`, name))
}

func (s *roleStore) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+roleColumns+` from roles order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Domain, &role.Description, &role.System, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Assign(ctx context.Context, a RoleAssignment) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id, organization_id) values($1,$2,$3) on conflict do nothing`,
		a.UserID, a.RoleID, a.OrganizationID,
	)
	return err
}

func (s *roleStore) Unassign(ctx context.Context, userID, roleID string, organizationID *string) error {
	var err error
	if organizationID == nil {
		_, err = s.db.ExecContext(ctx,
			`delete from user_roles where user_id=$1 and role_id=$2 and organization_id is null`,
			userID, roleID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`delete from user_roles where user_id=$1 and role_id=$2 and organization_id=$3`,
			userID, roleID, *organizationID)
	}
	return err
}

func (s *roleStore) AssignmentsForUser(ctx context.Context, userID string) ([]RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id, role_id, organization_id, created_at from user_roles where user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RoleAssignment
	for rows.Next() {
		var (
			a     RoleAssignment
			orgID sql.NullString
		)
		if err := rows.Scan(&a.UserID, &a.RoleID, &orgID, &a.CreatedAt); err != nil {
			return nil, err
		}
		if orgID.Valid {
			a.OrganizationID = &orgID.String
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Permission store ---------------------------------------------------------
type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Ensure(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(id, key, description) values($1,$2,$3) on conflict (key) do nothing`,
			p.ID, p.Key, p.Description,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) EnsureScopes(ctx context.Context, scopes []PermissionScope) error {
	for _, sc := range scopes {
		if sc.ID == "" {
			sc.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx,
			`insert into permission_scopes(id, name) values($1,$2) on conflict (name) do nothing`,
			sc.ID, sc.Name,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `select id, key, description, created_at from permissions order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) SetForRole(ctx context.Context, roleID string, grants []GrantSpec) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, g := range grants {
		if g.Scope == nil {
			_, err = tx.ExecContext(ctx,
				`insert into role_permissions(role_id, permission_id, scope_id)
				 select $1, id, null from permissions where key=$2`, roleID, g.Permission)
		} else {
			_, err = tx.ExecContext(ctx,
				`insert into role_permissions(role_id, permission_id, scope_id)
				 select $1, p.id, s.id from permissions p, permission_scopes s
				 where p.key=$2 and s.name=$3`, roleID, g.Permission, *g.Scope)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *permissionStore) GrantsForRole(ctx context.Context, roleID string) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.key, s.name from role_permissions rp
		 join permissions p on p.id=rp.permission_id
		 left join permission_scopes s on s.id=rp.scope_id
		 where rp.role_id=$1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var (
			g     Grant
			scope sql.NullString
		)
		if err := rows.Scan(&g.Permission, &scope); err != nil {
			return nil, err
		}
		if scope.Valid {
			g.Scope = &scope.String
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
