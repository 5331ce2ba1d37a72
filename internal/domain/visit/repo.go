package visit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned when an update carries a stale version
// stamp. The caller should reload and retry.
var ErrVersionConflict = errors.New("record was modified by someone else, reload and try again")

// Repository persists service records.
type Repository interface {
	Create(ctx context.Context, r *ServiceRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceRecord, error)
	// GetByIDForUpdate locks the row for the duration of the enclosing
	// transaction. Billing import uses it to serialize sub-status flips.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*ServiceRecord, error)
	// Update writes the record iff the stored version equals r.Version, then
	// increments it. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, r *ServiceRecord) error
	List(ctx context.Context, orgID, department, status string, limit, offset int) ([]*ServiceRecord, int, error)
	ListByPatientCode(ctx context.Context, orgID, patientCode string) ([]*ServiceRecord, error)
}
