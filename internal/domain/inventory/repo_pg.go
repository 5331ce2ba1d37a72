package inventory

import (
	"context"
	"errors"
	"fmt"

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

const medCols = `id, name, generic_name, category, batch, expiry,
	unit_price, stock, min_stock, organization_id, created_at, updated_at`

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.GenericName, &m.Category, &m.Batch, &m.Expiry,
		&m.UnitPrice, &m.Stock, &m.MinStock, &m.OrgID, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicines (id, name, generic_name, category, batch, expiry,
			unit_price, stock, min_stock, organization_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.Name, m.GenericName, m.Category, m.Batch, m.Expiry,
		m.UnitPrice, m.Stock, m.MinStock, m.OrgID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medicines WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *Medicine) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicines SET name=$2, generic_name=$3, category=$4, batch=$5, expiry=$6,
			unit_price=$7, min_stock=$8, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.GenericName, m.Category, m.Batch, m.Expiry,
		m.UnitPrice, m.MinStock)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, orgID, search string, limit, offset int) ([]*Medicine, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if orgID != auth.ScopeAll {
		where += ` AND organization_id = ` + arg(orgID)
	}
	if search != "" {
		p := arg("%" + search + "%")
		where += ` AND (name ILIKE ` + p + ` OR generic_name ILIKE ` + p + `)`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicines`+where, args...).Scan(&total); err != nil {
		if db.IsUndefinedTable(err) {
			return []*Medicine{}, 0, nil
		}
		return nil, 0, err
	}

	query := `SELECT ` + medCols + ` FROM medicines` + where +
		` ORDER BY name LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var meds []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		meds = append(meds, m)
	}
	return meds, total, rows.Err()
}

func (r *repoPG) ListLowStock(ctx context.Context, orgID string) ([]*Medicine, error) {
	query := `SELECT ` + medCols + ` FROM medicines WHERE stock <= min_stock`
	args := []interface{}{}
	if orgID != auth.ScopeAll {
		query += ` AND organization_id = $1`
		args = append(args, orgID)
	}
	query += ` ORDER BY stock ASC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		if db.IsUndefinedTable(err) {
			return []*Medicine{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	var meds []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

// Deduct relies on the WHERE stock >= qty guard so a concurrent sale can
// never push stock below zero.
func (r *repoPG) Deduct(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("deduct quantity must be positive, got %d", qty)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicines SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a short stock.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

func (r *repoPG) Restock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("restock quantity must be positive, got %d", qty)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicines SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IsNotFound reports whether err means the medicine does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
