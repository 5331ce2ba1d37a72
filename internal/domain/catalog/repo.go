package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists catalog entries.
type Repository interface {
	Create(ctx context.Context, item *ServiceItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceItem, error)
	Update(ctx context.Context, item *ServiceItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, orgID, category string) ([]*ServiceItem, error)
}
