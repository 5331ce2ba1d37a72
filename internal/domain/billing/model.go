// Package billing turns pending clinical requests and POS cart lines into
// immutable sales. The import path marks every billed sub-item on the
// originating visit inside the same transaction that creates the sale, so a
// line can be imported exactly once.
package billing

import (
	"time"

	"github.com/google/uuid"
)

// Cart line types. Imported types carry a RefID pointing back at the visit
// sub-item they settle.
const (
	LineTypePrescription = "prescription"
	LineTypeLab          = "lab"
	LineTypeService      = "service"
	LineTypeCatalog      = "catalog"
	LineTypeManual       = "manual"
	LineTypeRetail       = "retail"
)

// CartLine is one payable line. Name and UnitPrice are snapshots: later
// catalog or inventory edits never change a recorded sale.
type CartLine struct {
	Type       string     `json:"type"`
	RefID      string     `json:"ref_id,omitempty"`
	MedicineID *uuid.UUID `json:"medicine_id,omitempty"`
	Name       string     `json:"name"`
	UnitPrice  float64    `json:"unit_price"`
	Quantity   int        `json:"quantity"`
}

// Amount is the line total.
func (l CartLine) Amount() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Cart is the set of lines assembled for one checkout.
type Cart struct {
	RecordID *uuid.UUID `json:"record_id,omitempty"`
	Lines    []CartLine `json:"lines"`
}

// Subtotal sums all line amounts.
func (c Cart) Subtotal() float64 {
	var sum float64
	for _, l := range c.Lines {
		sum += l.Amount()
	}
	return sum
}

// Sale is a committed bill. Sales have no update or void path.
type Sale struct {
	ID           uuid.UUID  `json:"id"`
	RecordID     *uuid.UUID `json:"record_id,omitempty"`
	CustomerName string     `json:"customer_name"`
	Lines        []CartLine `json:"lines"`
	Subtotal     float64    `json:"subtotal"`
	TaxRate      float64    `json:"tax_rate"`
	TaxAmount    float64    `json:"tax_amount"`
	Total        float64    `json:"total"`
	OrgID        string     `json:"organization_id"`
	SoldBy       string     `json:"sold_by"`
	CreatedAt    time.Time  `json:"created_at"`
}
