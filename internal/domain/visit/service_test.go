package visit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sewaclinic/sewa/internal/platform/auth"
	"github.com/sewaclinic/sewa/internal/platform/calendar"
)

type mockRepo struct {
	records map[uuid.UUID]*ServiceRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*ServiceRecord)}
}

func clone(r *ServiceRecord) *ServiceRecord {
	data, _ := json.Marshal(r)
	var out ServiceRecord
	_ = json.Unmarshal(data, &out)
	return &out
}

func (m *mockRepo) Create(_ context.Context, r *ServiceRecord) error {
	r.ID = uuid.New()
	r.Version = 1
	m.records[r.ID] = clone(r)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceRecord, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return clone(r), nil
}

func (m *mockRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, r *ServiceRecord) error {
	stored, ok := m.records[r.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != r.Version {
		return ErrVersionConflict
	}
	r.Version++
	m.records[r.ID] = clone(r)
	return nil
}

func (m *mockRepo) List(_ context.Context, orgID, department, status string, limit, offset int) ([]*ServiceRecord, int, error) {
	var out []*ServiceRecord
	for _, r := range m.records {
		if orgID != auth.ScopeAll && r.OrgID != orgID {
			continue
		}
		if department != "" && r.Department != department {
			continue
		}
		if status != "" && r.ClinicalStatus != status {
			continue
		}
		out = append(out, clone(r))
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByPatientCode(_ context.Context, orgID, code string) ([]*ServiceRecord, error) {
	var out []*ServiceRecord
	for _, r := range m.records {
		if r.PatientCode != code {
			continue
		}
		if orgID != auth.ScopeAll && r.OrgID != orgID {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

type mockPrices struct {
	prices map[uuid.UUID]float64
}

func newMockPrices() *mockPrices {
	return &mockPrices{prices: make(map[uuid.UUID]float64)}
}

func (m *mockPrices) UnitPrice(_ context.Context, id uuid.UUID) (float64, error) {
	p, ok := m.prices[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return p, nil
}

func orgCtx(org string) context.Context {
	return context.WithValue(context.Background(), auth.OrgKey, org)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, calendar.NewBikramSambat(), newMockPrices(), nil)
}

func register(t *testing.T, svc *Service, org string) *ServiceRecord {
	t.Helper()
	rec, err := svc.Register(orgCtx(org), RegisterInput{
		Department: "OPD",
		Name:       "Hari Bahadur",
		Age:        35,
		Gender:     "M",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return rec
}

func TestRegister(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	if rec.ClinicalStatus != StatusPending {
		t.Errorf("expected PENDING, got %s", rec.ClinicalStatus)
	}
	if rec.PatientCode == "" {
		t.Error("expected a patient code to be generated")
	}
	if rec.OrgID != "org-main" {
		t.Errorf("expected org-main, got %s", rec.OrgID)
	}
	if rec.Version != 1 {
		t.Errorf("expected version 1, got %d", rec.Version)
	}
}

func TestRegister_RefusesAllScope(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Register(orgCtx(auth.ScopeAll), RegisterInput{Department: "OPD", Name: "X"})
	if err == nil {
		t.Error("expected registration under ALL scope to be refused")
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(newMockRepo())
	cases := []RegisterInput{
		{Department: "OPD", Name: "  "},
		{Department: "", Name: "X"},
		{Department: "OPD", Name: "X", Age: -1},
		{Department: "OPD", Name: "X", Age: 200},
	}
	for i, in := range cases {
		if _, err := svc.Register(orgCtx("org-main"), in); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRegister_ReturningPatientKeepsCode(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec, err := svc.Register(orgCtx("org-main"), RegisterInput{
		PatientCode: "SC-EXISTING", Department: "Dental", Name: "Sita",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.PatientCode != "SC-EXISTING" {
		t.Errorf("expected provided code to be kept, got %s", rec.PatientCode)
	}
}

func TestCompleteConsultation(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	rec := register(t, svc, "org-main")

	updated, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version:   rec.Version,
		Findings:  "fever 3 days",
		Diagnosis: "viral fever",
		Prescriptions: []PrescriptionLine{
			{Name: "Paracetamol", Quantity: 10, Dose: "500mg", Frequency: "TDS"},
		},
		LabRequests: []LabRequest{
			{TestName: "CBC", Price: 400},
		},
		ServiceRequests: []ServiceRequest{
			{Name: "Dressing", Price: 100},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.ClinicalStatus != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", updated.ClinicalStatus)
	}
	if updated.PrescriptionStatus != BillingPending {
		t.Errorf("expected prescription PENDING, got %s", updated.PrescriptionStatus)
	}
	if updated.LabRequests[0].ID == "" || updated.LabRequests[0].BillingStatus != BillingPending {
		t.Errorf("lab request not initialized: %+v", updated.LabRequests[0])
	}
	if updated.ServiceRequests[0].ID == "" || updated.ServiceRequests[0].Status != BillingPending {
		t.Errorf("service request not initialized: %+v", updated.ServiceRequests[0])
	}
	if updated.Version != rec.Version+1 {
		t.Errorf("expected version bump, got %d", updated.Version)
	}
}

func TestCompleteConsultation_StaleVersionRejected(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	if _, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version: rec.Version, Diagnosis: "first save",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version: rec.Version, Diagnosis: "stale save",
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestCompleteConsultation_EmptyPrescriptionIsBilled(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	updated, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version: rec.Version, Diagnosis: "no meds",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PrescriptionStatus != BillingBilled {
		t.Errorf("empty prescription should not await billing, got %s", updated.PrescriptionStatus)
	}
	if updated.HasPendingBillables() {
		t.Error("nothing should be pending for billing")
	}
}

func TestCompleteConsultation_IdempotentReopen(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	rec := register(t, svc, "org-main")

	first, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version:       rec.Version,
		Diagnosis:     "viral fever",
		Prescriptions: []PrescriptionLine{{Name: "Paracetamol", Quantity: 10}},
		LabRequests:   []LabRequest{{TestName: "CBC", Price: 400}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Re-open and save without changes, passing the payload back verbatim.
	second, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version:         first.Version,
		Findings:        first.Findings,
		Diagnosis:       first.Diagnosis,
		Prescriptions:   first.Prescriptions,
		LabRequests:     first.LabRequests,
		ServiceRequests: first.ServiceRequests,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := json.Marshal(struct {
		P []PrescriptionLine
		L []LabRequest
		S []ServiceRequest
	}{first.Prescriptions, first.LabRequests, first.ServiceRequests})
	b, _ := json.Marshal(struct {
		P []PrescriptionLine
		L []LabRequest
		S []ServiceRequest
	}{second.Prescriptions, second.LabRequests, second.ServiceRequests})
	if string(a) != string(b) {
		t.Errorf("clinical payload changed on idempotent re-save:\n%s\n%s", a, b)
	}
	if second.PrescriptionStatus != first.PrescriptionStatus {
		t.Error("prescription status changed on re-save")
	}
}

func TestCompleteConsultation_PreservesBilledStatuses(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	rec := register(t, svc, "org-main")

	first, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version:     rec.Version,
		LabRequests: []LabRequest{{TestName: "CBC", Price: 400}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate a billing import marking the lab request paid.
	stored := repo.records[rec.ID]
	stored.LabRequests[0].BillingStatus = BillingPaid

	reloaded, _ := svc.Get(context.Background(), rec.ID)
	second, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version:     reloaded.Version,
		LabRequests: []LabRequest{{ID: first.LabRequests[0].ID, TestName: "CBC", Price: 400, BillingStatus: BillingPending}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.LabRequests[0].BillingStatus != BillingPaid {
		t.Errorf("billed status must survive a re-save, got %s", second.LabRequests[0].BillingStatus)
	}
}

func TestCompleteConsultation_SnapshotsPrescriptionPrices(t *testing.T) {
	repo := newMockRepo()
	prices := newMockPrices()
	svc := NewService(repo, calendar.NewBikramSambat(), prices, nil)
	rec := register(t, svc, "org-main")

	medID := uuid.New()
	prices.prices[medID] = 5

	updated, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version: rec.Version,
		Prescriptions: []PrescriptionLine{
			{MedicineID: &medID, Name: "Paracetamol", Quantity: 10},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := updated.Prescriptions[0].UnitPrice; got != 5 {
		t.Errorf("expected unit price 5 snapshotted, got %v", got)
	}

	// A later inventory price edit must not reach the saved line.
	prices.prices[medID] = 9
	reloaded, _ := svc.Get(orgCtx("org-main"), rec.ID)
	if got := reloaded.Prescriptions[0].UnitPrice; got != 5 {
		t.Errorf("price edit leaked into saved prescription, got %v", got)
	}
}

func TestCompleteConsultation_UnknownMedicineRejected(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	medID := uuid.New()
	_, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version: rec.Version,
		Prescriptions: []PrescriptionLine{
			{MedicineID: &medID, Name: "Ghost", Quantity: 1},
		},
	})
	if err == nil {
		t.Error("expected a prescription for an unknown medicine to be rejected")
	}
}

func TestCompleteConsultation_CrossOrgRefused(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	if _, err := svc.CompleteConsultation(orgCtx("org-other"), rec.ID, ConsultationInput{Version: rec.Version}); err == nil {
		t.Error("expected cross-org consultation to be refused")
	}
	if _, err := svc.CompleteConsultation(orgCtx(auth.ScopeAll), rec.ID, ConsultationInput{Version: rec.Version}); err == nil {
		t.Error("expected consultation under ALL scope to be refused")
	}
}

func TestCancel_CrossOrgRefused(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	rec := register(t, svc, "org-main")

	if _, err := svc.Cancel(orgCtx("org-other"), rec.ID); err == nil {
		t.Error("expected cross-org cancel to be refused")
	}
	if _, err := svc.Cancel(orgCtx(auth.ScopeAll), rec.ID); err == nil {
		t.Error("expected cancel under ALL scope to be refused")
	}
	stored, _ := repo.GetByID(context.Background(), rec.ID)
	if stored.ClinicalStatus != StatusPending {
		t.Errorf("refused cancel must not change status, got %s", stored.ClinicalStatus)
	}
}

func TestEnterLabResult_CrossOrgRefused(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	first, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version:     rec.Version,
		LabRequests: []LabRequest{{TestName: "CBC", Price: 400}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.EnterLabResult(orgCtx("org-other"), rec.ID, first.LabRequests[0].ID, "x"); err == nil {
		t.Error("expected cross-org result entry to be refused")
	}
}

func TestMarkDoseGiven_CrossOrgRefused(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	if _, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version: rec.Version,
		Rabies:  &RabiesPayload{ExposureDate: "2081-01-01", AnimalType: "dog"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.MarkDoseGiven(orgCtx("org-other"), rec.ID, 0); err == nil {
		t.Error("expected cross-org dose update to be refused")
	}
	if _, err := svc.MarkDoseGiven(orgCtx(auth.ScopeAll), rec.ID, 0); err == nil {
		t.Error("expected dose update under ALL scope to be refused")
	}
}

func TestCompleteConsultation_CancelledRefused(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")
	if _, err := svc.Cancel(orgCtx("org-main"), rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, _ := svc.Get(context.Background(), rec.ID)
	_, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{Version: reloaded.Version})
	if err == nil {
		t.Error("expected consultation on cancelled visit to fail")
	}
}

func TestCancel_OnlyFromPending(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	if _, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{Version: rec.Version}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(orgCtx("org-main"), rec.ID); err == nil {
		t.Error("expected cancelling a completed visit to fail")
	}
}

func TestEnterLabResult_KeepsBillingStatus(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	rec := register(t, svc, "org-main")

	first, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version:     rec.Version,
		LabRequests: []LabRequest{{TestName: "CBC", Price: 400}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.EnterLabResult(orgCtx("org-main"), rec.ID, first.LabRequests[0].ID, "WBC 11.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.LabRequests[0].Result != "WBC 11.2" {
		t.Errorf("result not saved: %+v", updated.LabRequests[0])
	}
	if updated.LabRequests[0].BillingStatus != BillingPending {
		t.Errorf("lab result entry must not touch billing status, got %s", updated.LabRequests[0].BillingStatus)
	}

	if _, err := svc.EnterLabResult(orgCtx("org-main"), rec.ID, "no-such-id", "x"); err == nil {
		t.Error("expected unknown lab request id to fail")
	}
}

func TestRabiesScheduleComputed(t *testing.T) {
	svc := newTestService(newMockRepo())
	rec := register(t, svc, "org-main")

	updated, err := svc.CompleteConsultation(orgCtx("org-main"), rec.ID, ConsultationInput{
		Version: rec.Version,
		Rabies: &RabiesPayload{
			ExposureDate: "2081-01-01",
			AnimalType:   "dog",
			Category:     "II",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Rabies == nil || len(updated.Rabies.Schedule) != 5 {
		t.Fatalf("expected 5 scheduled doses, got %+v", updated.Rabies)
	}

	wantOffsets := []int{0, 3, 7, 14, 28}
	wantDates := []string{"2081-01-01", "2081-01-04", "2081-01-08", "2081-01-15", "2081-01-29"}
	for i, dose := range updated.Rabies.Schedule {
		if dose.DayOffset != wantOffsets[i] {
			t.Errorf("dose %d: expected offset %d, got %d", i, wantOffsets[i], dose.DayOffset)
		}
		if dose.Date != wantDates[i] {
			t.Errorf("dose %d: expected %s, got %s", i, wantDates[i], dose.Date)
		}
		if dose.Given {
			t.Errorf("dose %d: should start not-given", i)
		}
	}

	marked, err := svc.MarkDoseGiven(orgCtx("org-main"), rec.ID, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !marked.Rabies.Schedule[2].Given {
		t.Error("day 7 dose should be marked given")
	}
	if _, err := svc.MarkDoseGiven(orgCtx("org-main"), rec.ID, 5); err == nil {
		t.Error("expected unknown day offset to fail")
	}
}

func TestHistory_OrgScoped(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	rec, err := svc.Register(orgCtx("org-main"), RegisterInput{
		PatientCode: "SC-AAAA", Department: "OPD", Name: "Hari",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Register(orgCtx("org-other"), RegisterInput{
		PatientCode: "SC-AAAA", Department: "OPD", Name: "Hari",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scoped, err := svc.History(context.Background(), "org-main", "SC-AAAA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != rec.ID {
		t.Errorf("expected only org-main visit, got %d records", len(scoped))
	}

	all, err := svc.History(context.Background(), auth.ScopeAll, "SC-AAAA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 visits under ALL scope, got %d", len(all))
	}
}
