package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInsufficientStock is returned when a deduction would drive stock
// negative. The whole operation is rejected, never partially applied.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository persists medicines.
type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, orgID, search string, limit, offset int) ([]*Medicine, int, error)
	ListLowStock(ctx context.Context, orgID string) ([]*Medicine, error)
	// Deduct atomically subtracts qty from stock, failing with
	// ErrInsufficientStock when the result would be negative.
	Deduct(ctx context.Context, id uuid.UUID, qty int) error
	// Restock atomically adds qty to stock.
	Restock(ctx context.Context, id uuid.UUID, qty int) error
}
