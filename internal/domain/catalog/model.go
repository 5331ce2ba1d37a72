// Package catalog holds the billable service price list (X-ray, dressing,
// lab tests). Cart lines snapshot the price at sale time, so later catalog
// edits never rewrite history.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// ServiceItem is one priced entry of the catalog.
type ServiceItem struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	OrgID     string    `json:"organization_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
