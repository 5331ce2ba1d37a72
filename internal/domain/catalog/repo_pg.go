package catalog

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

const itemCols = `id, name, category, price, organization_id, created_at, updated_at`

func scanItem(row pgx.Row) (*ServiceItem, error) {
	var it ServiceItem
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Price, &it.OrgID, &it.CreatedAt, &it.UpdatedAt)
	return &it, err
}

func (r *repoPG) Create(ctx context.Context, item *ServiceItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_catalog (id, name, category, price, organization_id)
		VALUES ($1,$2,$3,$4,$5)`,
		item.ID, item.Name, item.Category, item.Price, item.OrgID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM service_catalog WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, item *ServiceItem) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_catalog SET name=$2, category=$3, price=$4, updated_at=NOW()
		WHERE id = $1`,
		item.ID, item.Name, item.Category, item.Price)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM service_catalog WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, orgID, category string) ([]*ServiceItem, error) {
	query := `SELECT ` + itemCols + ` FROM service_catalog WHERE 1=1`
	args := []interface{}{}
	if orgID != auth.ScopeAll {
		args = append(args, orgID)
		query += ` AND organization_id = $1`
	}
	if category != "" {
		args = append(args, category)
		if len(args) == 1 {
			query += ` AND category = $1`
		} else {
			query += ` AND category = $2`
		}
	}
	query += ` ORDER BY category, name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		if db.IsUndefinedTable(err) {
			return []*ServiceItem{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	var items []*ServiceItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// IsNotFound reports whether err means the catalog entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
