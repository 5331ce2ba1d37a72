package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sewaclinic/sewa/internal/domain/organization"
	"github.com/sewaclinic/sewa/internal/platform/auth"
	"github.com/sewaclinic/sewa/internal/platform/notify"
)

// Topic is the change-notification topic for medicines.
const Topic = "medicines"

type Service struct {
	repo      Repository
	publisher notify.Publisher
}

func NewService(repo Repository, publisher notify.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

func (s *Service) publish(ctx context.Context, eventType string, m *Medicine) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, notify.Event{
		Type:     eventType,
		Topic:    Topic,
		RecordID: m.ID.String(),
		OrgID:    m.OrgID,
	})
}

func (s *Service) validate(m *Medicine) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("medicine name is required")
	}
	if m.UnitPrice < 0 {
		return fmt.Errorf("unit price cannot be negative")
	}
	if m.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if m.MinStock < 0 {
		return fmt.Errorf("minimum stock cannot be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, m *Medicine) error {
	orgID, err := organization.ResolveScope(ctx)
	if err != nil {
		return err
	}
	m.OrgID = orgID
	if err := s.validate(m); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}
	s.publish(ctx, notify.EventCreated, m)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := auth.OrgFromContext(ctx); scope != auth.ScopeAll && scope != m.OrgID {
		return nil, fmt.Errorf("medicine belongs to another organization")
	}
	return m, nil
}

func (s *Service) Update(ctx context.Context, m *Medicine) error {
	if _, err := organization.ResolveScope(ctx); err != nil {
		return err
	}
	existing, err := s.Get(ctx, m.ID)
	if err != nil {
		return err
	}
	m.OrgID = existing.OrgID
	m.Stock = existing.Stock // stock moves only via Deduct/Restock
	if err := s.validate(m); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return err
	}
	s.publish(ctx, notify.EventUpdated, m)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := organization.ResolveScope(ctx); err != nil {
		return err
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, notify.EventDeleted, m)
	return nil
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Medicine, int, error) {
	return s.repo.List(ctx, auth.OrgFromContext(ctx), search, limit, offset)
}

func (s *Service) ListLowStock(ctx context.Context) ([]*Medicine, error) {
	return s.repo.ListLowStock(ctx, auth.OrgFromContext(ctx))
}

// UnitPrice returns the current price of a medicine visible in the caller's
// scope. Consultation saves use it to snapshot prescription prices.
func (s *Service) UnitPrice(ctx context.Context, id uuid.UUID) (float64, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return m.UnitPrice, nil
}

// Restock adds received stock to an item.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, qty int) (*Medicine, error) {
	if _, err := organization.ResolveScope(ctx); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, fmt.Errorf("restock quantity must be positive")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Restock(ctx, id, qty); err != nil {
		return nil, err
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.EventUpdated, m)
	return m, nil
}
