package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sewaclinic/sewa/internal/platform/auth"
	"github.com/sewaclinic/sewa/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, username, password_hash, full_name, role, organization_id,
	granted_extra, revoked, active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Role, &u.OrgID,
		&u.GrantedExtra, &u.Revoked, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, username, password_hash, full_name, role, organization_id,
			granted_extra, revoked, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.PasswordHash, u.FullName, u.Role, u.OrgID,
		u.GrantedExtra, u.Revoked, u.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET password_hash=$2, full_name=$3, role=$4, organization_id=$5,
			granted_extra=$6, revoked=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.PasswordHash, u.FullName, u.Role, u.OrgID,
		u.GrantedExtra, u.Revoked, u.Active)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, orgID string) ([]*User, error) {
	query := `SELECT ` + userCols + ` FROM users ORDER BY username`
	args := []interface{}{}
	if orgID != auth.ScopeAll {
		query = `SELECT ` + userCols + ` FROM users WHERE organization_id = $1 ORDER BY username`
		args = append(args, orgID)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		if db.IsUndefinedTable(err) {
			return []*User{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	if err != nil && db.IsUndefinedTable(err) {
		return 0, nil
	}
	return n, err
}

// IsNotFound reports whether err means the user does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
