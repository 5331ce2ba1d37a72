// Package organization manages clinic branches. Every record in the system
// carries an organization id; a SUPER_ADMIN browsing under the cross-org
// "ALL" filter sees everything but cannot write, since a write needs a
// single unambiguous owner.
package organization

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a clinic branch.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
