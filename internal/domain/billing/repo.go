package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists sales. Create is insert-only; there is deliberately
// no update or delete.
type Repository interface {
	Create(ctx context.Context, sale *Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	List(ctx context.Context, orgID string, from, to time.Time, limit, offset int) ([]*Sale, int, error)
}
