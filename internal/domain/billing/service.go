package billing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sewaclinic/sewa/internal/domain/inventory"
	"github.com/sewaclinic/sewa/internal/domain/organization"
	"github.com/sewaclinic/sewa/internal/domain/visit"
	"github.com/sewaclinic/sewa/internal/platform/auth"
	"github.com/sewaclinic/sewa/internal/platform/db"
	"github.com/sewaclinic/sewa/internal/platform/notify"
)

// Topic is the change-notification topic for sales.
const Topic = "sales"

type Service struct {
	pool      *pgxpool.Pool
	sales     Repository
	visits    visit.Repository
	meds      inventory.Repository
	taxRate   float64
	publisher notify.Publisher
}

// NewService wires the billing workflow. taxRate is the injected store
// setting, in percent.
func NewService(pool *pgxpool.Pool, sales Repository, visits visit.Repository, meds inventory.Repository, taxRate float64, publisher notify.Publisher) *Service {
	return &Service{pool: pool, sales: sales, visits: visits, meds: meds, taxRate: taxRate, publisher: publisher}
}

// inTx runs fn inside one database transaction. With no pool configured
// (unit tests on in-memory repositories) fn runs directly.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.InTx(ctx, s.pool, fn)
}

// BuildImportCart collects every sub-item of a completed visit that still
// awaits billing. An empty cart means there is nothing to pay.
func (s *Service) BuildImportCart(ctx context.Context, recordID uuid.UUID) (*Cart, error) {
	rec, err := s.visits.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if scope := auth.OrgFromContext(ctx); scope != auth.ScopeAll && scope != rec.OrgID {
		return nil, fmt.Errorf("visit belongs to another organization")
	}
	if rec.ClinicalStatus != visit.StatusCompleted {
		return nil, fmt.Errorf("billing import needs a completed consultation")
	}

	cart := &Cart{RecordID: &rec.ID, Lines: []CartLine{}}

	for _, sr := range rec.ServiceRequests {
		if sr.Status == visit.BillingPending {
			cart.Lines = append(cart.Lines, CartLine{
				Type:      LineTypeService,
				RefID:     sr.ID,
				Name:      sr.Name,
				UnitPrice: sr.Price,
				Quantity:  1,
			})
		}
	}
	for _, lr := range rec.LabRequests {
		if lr.BillingStatus == visit.BillingPending {
			cart.Lines = append(cart.Lines, CartLine{
				Type:      LineTypeLab,
				RefID:     lr.ID,
				Name:      lr.TestName,
				UnitPrice: lr.Price,
				Quantity:  1,
			})
		}
	}
	if rec.PrescriptionStatus == visit.BillingPending {
		// Prices were snapshotted onto the lines at consultation save; the
		// bill never re-reads inventory.
		for _, p := range rec.Prescriptions {
			cart.Lines = append(cart.Lines, CartLine{
				Type:       LineTypePrescription,
				MedicineID: p.MedicineID,
				Name:       p.Name,
				UnitPrice:  p.UnitPrice,
				Quantity:   p.Quantity,
			})
		}
	}
	return cart, nil
}

// BillInput is a checkout request.
type BillInput struct {
	RecordID     *uuid.UUID `json:"record_id"`
	CustomerName string     `json:"customer_name"`
	Lines        []CartLine `json:"lines"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Service) validateLines(lines []CartLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("cart is empty")
	}
	for i, l := range lines {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("line %d has no name", i)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("line %d has non-positive quantity", i)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("line %d has negative price", i)
		}
	}
	return nil
}

// ProcessBill commits a bill for a visit. Inside one transaction it creates
// the sale, flips every imported sub-item to its billed status on the visit
// and deducts stock for medicine-backed lines. Any failure rolls the whole
// bill back.
func (s *Service) ProcessBill(ctx context.Context, in BillInput) (*Sale, error) {
	orgID, err := organization.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	if in.RecordID == nil {
		return nil, fmt.Errorf("record_id is required, use the retail sale for walk-ins")
	}
	if err := s.validateLines(in.Lines); err != nil {
		return nil, err
	}

	var sale *Sale
	err = s.inTx(ctx, func(ctx context.Context) error {
		rec, err := s.visits.GetByIDForUpdate(ctx, *in.RecordID)
		if err != nil {
			return err
		}
		if rec.OrgID != orgID {
			return fmt.Errorf("visit belongs to another organization")
		}
		if rec.ClinicalStatus != visit.StatusCompleted {
			return fmt.Errorf("billing import needs a completed consultation")
		}

		if err := s.settleRecordLines(rec, in.Lines); err != nil {
			return err
		}
		if err := s.deductStock(ctx, in.Lines); err != nil {
			return err
		}
		if err := s.visits.Update(ctx, rec); err != nil {
			return err
		}

		sale = s.buildSale(ctx, in, orgID)
		return s.sales.Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.publishSale(ctx, sale)
	return sale, nil
}

// settleRecordLines flips the billing status of every imported line on the
// visit record, rejecting lines that were already settled.
func (s *Service) settleRecordLines(rec *visit.ServiceRecord, lines []CartLine) error {
	billPrescriptions := false
	for _, l := range lines {
		switch l.Type {
		case LineTypeService:
			found := false
			for i := range rec.ServiceRequests {
				if rec.ServiceRequests[i].ID == l.RefID {
					if rec.ServiceRequests[i].Status != visit.BillingPending {
						return fmt.Errorf("service %q was already billed", rec.ServiceRequests[i].Name)
					}
					rec.ServiceRequests[i].Status = visit.BillingBilled
					found = true
				}
			}
			if !found {
				return fmt.Errorf("service request %s not found on this visit", l.RefID)
			}
		case LineTypeLab:
			found := false
			for i := range rec.LabRequests {
				if rec.LabRequests[i].ID == l.RefID {
					if rec.LabRequests[i].BillingStatus != visit.BillingPending {
						return fmt.Errorf("lab test %q was already billed", rec.LabRequests[i].TestName)
					}
					rec.LabRequests[i].BillingStatus = visit.BillingPaid
					found = true
				}
			}
			if !found {
				return fmt.Errorf("lab request %s not found on this visit", l.RefID)
			}
		case LineTypePrescription:
			billPrescriptions = true
		case LineTypeCatalog, LineTypeManual, LineTypeRetail:
			// Walk-in additions merged into the bill; nothing to settle.
		default:
			return fmt.Errorf("unknown line type %q", l.Type)
		}
	}

	if billPrescriptions {
		if rec.PrescriptionStatus != visit.BillingPending {
			return fmt.Errorf("prescription was already billed")
		}
		rec.PrescriptionStatus = visit.BillingBilled
	}
	return nil
}

func (s *Service) deductStock(ctx context.Context, lines []CartLine) error {
	for _, l := range lines {
		if l.MedicineID == nil {
			continue
		}
		if err := s.meds.Deduct(ctx, *l.MedicineID, l.Quantity); err != nil {
			return fmt.Errorf("%s: %w", l.Name, err)
		}
	}
	return nil
}

func (s *Service) buildSale(ctx context.Context, in BillInput, orgID string) *Sale {
	subtotal := round2(Cart{Lines: in.Lines}.Subtotal())
	taxAmount := round2(subtotal * s.taxRate / 100)
	return &Sale{
		RecordID:     in.RecordID,
		CustomerName: in.CustomerName,
		Lines:        in.Lines,
		Subtotal:     subtotal,
		TaxRate:      s.taxRate,
		TaxAmount:    taxAmount,
		Total:        round2(subtotal + taxAmount),
		OrgID:        orgID,
		SoldBy:       auth.UsernameFromContext(ctx),
	}
}

func (s *Service) publishSale(ctx context.Context, sale *Sale) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, notify.Event{
		Type:     notify.EventCreated,
		Topic:    Topic,
		RecordID: sale.ID.String(),
		OrgID:    sale.OrgID,
	})
}

// ProcessRetailSale commits a POS sale with no originating visit. Stock
// deduction and sale creation share one transaction.
func (s *Service) ProcessRetailSale(ctx context.Context, in BillInput) (*Sale, error) {
	orgID, err := organization.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validateLines(in.Lines); err != nil {
		return nil, err
	}
	for i, l := range in.Lines {
		if l.Type == LineTypePrescription || l.Type == LineTypeLab || l.Type == LineTypeService {
			return nil, fmt.Errorf("line %d: visit items must go through the billing import", i)
		}
	}
	in.RecordID = nil

	var sale *Sale
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.deductStock(ctx, in.Lines); err != nil {
			return err
		}
		sale = s.buildSale(ctx, in, orgID)
		return s.sales.Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.publishSale(ctx, sale)
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	sale, err := s.sales.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := auth.OrgFromContext(ctx); scope != auth.ScopeAll && scope != sale.OrgID {
		return nil, fmt.Errorf("sale belongs to another organization")
	}
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context, from, to time.Time, limit, offset int) ([]*Sale, int, error) {
	return s.sales.List(ctx, auth.OrgFromContext(ctx), from, to, limit, offset)
}
