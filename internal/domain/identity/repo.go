package identity

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists user accounts.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, orgID string) ([]*User, error)
	Count(ctx context.Context) (int, error)
}
