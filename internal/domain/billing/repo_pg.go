package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const saleCols = `id, record_id, customer_name, lines, subtotal, tax_rate,
	tax_amount, total, organization_id, sold_by, created_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.RecordID, &s.CustomerName, &s.Lines, &s.Subtotal, &s.TaxRate,
		&s.TaxAmount, &s.Total, &s.OrgID, &s.SoldBy, &s.CreatedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, sale *Sale) error {
	sale.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO sales (id, record_id, customer_name, lines, subtotal, tax_rate,
			tax_amount, total, organization_id, sold_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sale.ID, sale.RecordID, sale.CustomerName, sale.Lines, sale.Subtotal, sale.TaxRate,
		sale.TaxAmount, sale.Total, sale.OrgID, sale.SoldBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return scanSale(r.conn(ctx).QueryRow(ctx, `SELECT `+saleCols+` FROM sales WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, orgID string, from, to time.Time, limit, offset int) ([]*Sale, int, error) {
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
	if !from.IsZero() {
		where += ` AND created_at >= ` + arg(from)
	}
	if !to.IsZero() {
		where += ` AND created_at < ` + arg(to)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total); err != nil {
		if db.IsUndefinedTable(err) {
			return []*Sale{}, 0, nil
		}
		return nil, 0, err
	}

	query := `SELECT ` + saleCols + ` FROM sales` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []*Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, s)
	}
	return sales, total, rows.Err()
}

// IsNotFound reports whether err means the sale does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
