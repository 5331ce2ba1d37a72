// Package inventory manages the pharmacy medicine stock per organization.
package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Medicine is one stocked item.
type Medicine struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	GenericName string    `json:"generic_name"`
	Category    string    `json:"category"`
	Batch       string    `json:"batch"`
	Expiry      string    `json:"expiry"` // Bikram Sambat YYYY-MM-DD
	UnitPrice   float64   `json:"unit_price"`
	Stock       int       `json:"stock"`
	MinStock    int       `json:"min_stock"`
	OrgID       string    `json:"organization_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder threshold.
func (m *Medicine) LowStock() bool {
	return m.Stock <= m.MinStock
}
