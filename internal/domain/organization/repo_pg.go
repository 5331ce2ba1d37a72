package organization

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const orgCols = `id, name, address, contact, created_at, updated_at`

func scanOrg(row pgx.Row) (*Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.Address, &o.Contact, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *repoPG) Create(ctx context.Context, org *Organization) error {
	org.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO organizations (id, name, address, contact)
		VALUES ($1, $2, $3, $4)`,
		org.ID, org.Name, org.Address, org.Contact)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return scanOrg(r.conn(ctx).QueryRow(ctx, `SELECT `+orgCols+` FROM organizations WHERE id = $1`, id))
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Organization, error) {
	return scanOrg(r.conn(ctx).QueryRow(ctx, `SELECT `+orgCols+` FROM organizations WHERE name = $1`, name))
}

func (r *repoPG) Update(ctx context.Context, org *Organization) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE organizations SET name=$2, address=$3, contact=$4, updated_at=NOW()
		WHERE id = $1`,
		org.ID, org.Name, org.Address, org.Contact)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context) ([]*Organization, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orgCols+` FROM organizations ORDER BY name`)
	if err != nil {
		if db.IsUndefinedTable(err) {
			return []*Organization{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// ErrNotFound is returned when a lookup matches no organization.
var ErrNotFound = pgx.ErrNoRows

// IsNotFound reports whether err means the organization does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
