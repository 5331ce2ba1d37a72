// Package visit holds the patient service record: one row per visit to a
// department, created at registration and mutated by consultation save, lab
// result entry and billing import. Records are never deleted; the per-patient
// history is append-only.
package visit

import (
	"time"

	"github.com/google/uuid"
)

// Clinical statuses. PENDING moves to COMPLETED on consultation save or to
// CANCELLED before consultation; both are terminal.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Financial sub-statuses. Transitions are strictly one-way and happen only
// through the billing import.
const (
	BillingPending = "PENDING"
	BillingBilled  = "BILLED"
	BillingPaid    = "PAID"
)

// PrescriptionLine is one prescribed medicine. UnitPrice is snapshotted from
// inventory at prescribe time; later price edits never change the bill.
type PrescriptionLine struct {
	MedicineID *uuid.UUID `json:"medicine_id,omitempty"`
	Name       string     `json:"name"`
	Dose       string     `json:"dose"`
	Frequency  string     `json:"frequency"`
	Duration   string     `json:"duration"`
	UnitPrice  float64    `json:"unit_price"`
	Quantity   int        `json:"quantity"`
	Remarks    string     `json:"remarks,omitempty"`
}

// LabRequest is one requested lab test. BillingStatus moves PENDING→PAID via
// billing import only; Result is set by lab result entry independently.
type LabRequest struct {
	ID            string  `json:"id"`
	TestName      string  `json:"test_name"`
	Price         float64 `json:"price"`
	Result        string  `json:"result,omitempty"`
	BillingStatus string  `json:"billing_status"`
}

// ServiceRequest is one requested billable service (X-ray, dressing, ...).
type ServiceRequest struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Status string  `json:"status"`
}

// VaccinationDose is one entry of a post-exposure schedule.
type VaccinationDose struct {
	DayOffset int    `json:"day_offset"`
	Date      string `json:"date"` // Bikram Sambat YYYY-MM-DD
	Given     bool   `json:"given"`
}

// RabiesPayload is the specialized consultation payload for rabies exposure.
type RabiesPayload struct {
	ExposureDate string            `json:"exposure_date"` // Bikram Sambat YYYY-MM-DD
	AnimalType   string            `json:"animal_type"`
	BiteSite     string            `json:"bite_site"`
	Category     string            `json:"category"`
	Schedule     []VaccinationDose `json:"schedule"`
}

// ServiceRecord is one patient visit to a department.
type ServiceRecord struct {
	ID          uuid.UUID `json:"id"`
	PatientCode string    `json:"patient_code"`
	Department  string    `json:"department"`
	OrgID       string    `json:"organization_id"`

	// Demographics snapshot, captured at registration.
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Address   string `json:"address"`
	Contact   string `json:"contact"`
	Ethnicity string `json:"ethnicity"`

	ClinicalStatus string `json:"clinical_status"`

	// Clinical payload, populated at consultation time.
	Findings        string             `json:"findings,omitempty"`
	Diagnosis       string             `json:"diagnosis,omitempty"`
	Prescriptions   []PrescriptionLine `json:"prescriptions"`
	LabRequests     []LabRequest       `json:"lab_requests"`
	ServiceRequests []ServiceRequest   `json:"service_requests"`
	Rabies          *RabiesPayload     `json:"rabies,omitempty"`

	PrescriptionStatus string `json:"prescription_status"`

	// Version is the optimistic concurrency stamp; stale consultation saves
	// are rejected instead of silently overwriting.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPendingBillables reports whether any sub-item is still awaiting billing.
func (r *ServiceRecord) HasPendingBillables() bool {
	if r.PrescriptionStatus == BillingPending && len(r.Prescriptions) > 0 {
		return true
	}
	for _, lr := range r.LabRequests {
		if lr.BillingStatus == BillingPending {
			return true
		}
	}
	for _, sr := range r.ServiceRequests {
		if sr.Status == BillingPending {
			return true
		}
	}
	return false
}
