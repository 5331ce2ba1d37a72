package visit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sewaclinic/sewa/internal/domain/organization"
	"github.com/sewaclinic/sewa/internal/platform/calendar"
	"github.com/sewaclinic/sewa/internal/platform/notify"
)

// Topic is the change-notification topic for service records.
const Topic = "visits"

// PriceLookup resolves the current unit price of a stocked medicine. The
// inventory service implements it.
type PriceLookup interface {
	UnitPrice(ctx context.Context, id uuid.UUID) (float64, error)
}

type Service struct {
	repo      Repository
	cal       calendar.Converter
	prices    PriceLookup
	publisher notify.Publisher
}

func NewService(repo Repository, cal calendar.Converter, prices PriceLookup, publisher notify.Publisher) *Service {
	return &Service{repo: repo, cal: cal, prices: prices, publisher: publisher}
}

// mutableInScope checks that the caller holds a single-organization context
// matching the record. Cross-org and ALL-scope mutations are refused.
func mutableInScope(ctx context.Context, rec *ServiceRecord) error {
	orgID, err := organization.ResolveScope(ctx)
	if err != nil {
		return err
	}
	if rec.OrgID != orgID {
		return fmt.Errorf("visit belongs to another organization")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, rec *ServiceRecord) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, notify.Event{
		Type:     eventType,
		Topic:    Topic,
		RecordID: rec.ID.String(),
		OrgID:    rec.OrgID,
	})
}

// RegisterInput is the registration form.
type RegisterInput struct {
	PatientCode string `json:"patient_code"` // empty for a new patient
	Department  string `json:"department"`
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`
	Contact     string `json:"contact"`
	Ethnicity   string `json:"ethnicity"`
}

// NewPatientCode derives a short display code from a store-unique key. The
// uuid is the real identity; the code is for reception desks and printouts.
func NewPatientCode() string {
	id := uuid.New()
	return "SC-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// Register creates a PENDING record with a demographics snapshot. A known
// patient passes their existing code; otherwise a fresh one is generated.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*ServiceRecord, error) {
	orgID, err := organization.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if in.Department == "" {
		return nil, fmt.Errorf("department is required")
	}
	if in.Age < 0 || in.Age > 150 {
		return nil, fmt.Errorf("invalid age %d", in.Age)
	}

	code := strings.TrimSpace(in.PatientCode)
	if code == "" {
		code = NewPatientCode()
	}

	rec := &ServiceRecord{
		PatientCode:        code,
		Department:         in.Department,
		OrgID:              orgID,
		Name:               in.Name,
		Age:                in.Age,
		Gender:             in.Gender,
		Address:            in.Address,
		Contact:            in.Contact,
		Ethnicity:          in.Ethnicity,
		ClinicalStatus:     StatusPending,
		Prescriptions:      []PrescriptionLine{},
		LabRequests:        []LabRequest{},
		ServiceRequests:    []ServiceRequest{},
		PrescriptionStatus: BillingPending,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.publish(ctx, notify.EventCreated, rec)
	return rec, nil
}

// ConsultationInput is the consultation save form. Version must carry the
// stamp the client loaded; a stale stamp is rejected.
type ConsultationInput struct {
	Version         int                `json:"version"`
	Findings        string             `json:"findings"`
	Diagnosis       string             `json:"diagnosis"`
	Prescriptions   []PrescriptionLine `json:"prescriptions"`
	LabRequests     []LabRequest       `json:"lab_requests"`
	ServiceRequests []ServiceRequest   `json:"service_requests"`
	Rabies          *RabiesPayload     `json:"rabies"`

	// Demographics corrections allowed during specialized flows.
	Name      string `json:"name"`
	Ethnicity string `json:"ethnicity"`
}

// CompleteConsultation saves the clinical payload and marks the record
// COMPLETED. Sub-items already billed keep their financial status; new lab
// and service requests start PENDING.
func (s *Service) CompleteConsultation(ctx context.Context, id uuid.UUID, in ConsultationInput) (*ServiceRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutableInScope(ctx, rec); err != nil {
		return nil, err
	}
	if rec.ClinicalStatus == StatusCancelled {
		return nil, fmt.Errorf("cannot run a consultation on a cancelled visit")
	}
	if in.Version != rec.Version {
		return nil, ErrVersionConflict
	}

	rec.Findings = in.Findings
	rec.Diagnosis = in.Diagnosis
	if name := strings.TrimSpace(in.Name); name != "" {
		rec.Name = name
	}
	if in.Ethnicity != "" {
		rec.Ethnicity = in.Ethnicity
	}

	prevLabs := make(map[string]LabRequest, len(rec.LabRequests))
	for _, lr := range rec.LabRequests {
		prevLabs[lr.ID] = lr
	}
	prevServices := make(map[string]ServiceRequest, len(rec.ServiceRequests))
	for _, sr := range rec.ServiceRequests {
		prevServices[sr.ID] = sr
	}

	labs := make([]LabRequest, 0, len(in.LabRequests))
	for _, lr := range in.LabRequests {
		if prev, ok := prevLabs[lr.ID]; ok {
			// Billing status and entered results survive a re-save.
			lr.BillingStatus = prev.BillingStatus
			if lr.Result == "" {
				lr.Result = prev.Result
			}
		} else {
			lr.ID = uuid.New().String()
			lr.BillingStatus = BillingPending
		}
		if strings.TrimSpace(lr.TestName) == "" {
			return nil, fmt.Errorf("lab request needs a test name")
		}
		labs = append(labs, lr)
	}
	rec.LabRequests = labs

	services := make([]ServiceRequest, 0, len(in.ServiceRequests))
	for _, sr := range in.ServiceRequests {
		if prev, ok := prevServices[sr.ID]; ok {
			sr.Status = prev.Status
		} else {
			sr.ID = uuid.New().String()
			sr.Status = BillingPending
		}
		if strings.TrimSpace(sr.Name) == "" {
			return nil, fmt.Errorf("service request needs a name")
		}
		services = append(services, sr)
	}
	rec.ServiceRequests = services

	if in.Prescriptions == nil {
		in.Prescriptions = []PrescriptionLine{}
	}
	alreadyBilled := rec.PrescriptionStatus == BillingBilled && len(rec.Prescriptions) > 0
	if !alreadyBilled {
		// Snapshot the current inventory price onto each medicine-backed
		// line. The bill charges this price even if inventory changes later.
		for i := range in.Prescriptions {
			p := &in.Prescriptions[i]
			if p.MedicineID == nil {
				continue
			}
			price, err := s.prices.UnitPrice(ctx, *p.MedicineID)
			if err != nil {
				return nil, fmt.Errorf("medicine for %q: %w", p.Name, err)
			}
			p.UnitPrice = price
		}
	}
	rec.Prescriptions = in.Prescriptions
	switch {
	case alreadyBilled:
		rec.PrescriptionStatus = BillingBilled
	case len(in.Prescriptions) == 0:
		rec.PrescriptionStatus = BillingBilled
	default:
		rec.PrescriptionStatus = BillingPending
	}

	if in.Rabies != nil {
		rabies := *in.Rabies
		if len(rabies.Schedule) == 0 {
			schedule, err := s.buildSchedule(rabies.ExposureDate)
			if err != nil {
				return nil, err
			}
			rabies.Schedule = schedule
		}
		rec.Rabies = &rabies
	}

	rec.ClinicalStatus = StatusCompleted
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.publish(ctx, notify.EventUpdated, rec)
	return rec, nil
}

func (s *Service) buildSchedule(startDate string) ([]VaccinationDose, error) {
	start, err := calendar.Parse(startDate)
	if err != nil {
		return nil, fmt.Errorf("exposure date: %w", err)
	}
	dates, err := calendar.VaccinationSchedule(s.cal, start)
	if err != nil {
		return nil, err
	}
	doses := make([]VaccinationDose, len(dates))
	for i, d := range dates {
		doses[i] = VaccinationDose{
			DayOffset: calendar.VaccinationOffsets[i],
			Date:      d.String(),
		}
	}
	return doses, nil
}

// MarkDoseGiven flags one vaccination dose of a rabies schedule as given.
func (s *Service) MarkDoseGiven(ctx context.Context, id uuid.UUID, dayOffset int) (*ServiceRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutableInScope(ctx, rec); err != nil {
		return nil, err
	}
	if rec.Rabies == nil {
		return nil, fmt.Errorf("visit has no vaccination schedule")
	}
	found := false
	for i := range rec.Rabies.Schedule {
		if rec.Rabies.Schedule[i].DayOffset == dayOffset {
			rec.Rabies.Schedule[i].Given = true
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("no dose at day %d", dayOffset)
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.publish(ctx, notify.EventUpdated, rec)
	return rec, nil
}

// Cancel moves a PENDING record to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutableInScope(ctx, rec); err != nil {
		return nil, err
	}
	if rec.ClinicalStatus != StatusPending {
		return nil, fmt.Errorf("only a pending visit can be cancelled")
	}
	rec.ClinicalStatus = StatusCancelled
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.publish(ctx, notify.EventUpdated, rec)
	return rec, nil
}

// EnterLabResult records the clinical result text for one lab request. The
// request's billing status is untouched.
func (s *Service) EnterLabResult(ctx context.Context, id uuid.UUID, labRequestID, result string) (*ServiceRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutableInScope(ctx, rec); err != nil {
		return nil, err
	}
	found := false
	for i := range rec.LabRequests {
		if rec.LabRequests[i].ID == labRequestID {
			rec.LabRequests[i].Result = result
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("lab request %s not found on this visit", labRequestID)
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.publish(ctx, notify.EventUpdated, rec)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, orgID, department, status string, limit, offset int) ([]*ServiceRecord, int, error) {
	return s.repo.List(ctx, orgID, department, status, limit, offset)
}

// History returns every visit for a patient code, oldest first.
func (s *Service) History(ctx context.Context, orgID, patientCode string) ([]*ServiceRecord, error) {
	if strings.TrimSpace(patientCode) == "" {
		return nil, fmt.Errorf("patient code is required")
	}
	return s.repo.ListByPatientCode(ctx, orgID, patientCode)
}
