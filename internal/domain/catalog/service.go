package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sewaclinic/sewa/internal/domain/organization"
	"github.com/sewaclinic/sewa/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(item *ServiceItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if item.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, item *ServiceItem) error {
	orgID, err := organization.ResolveScope(ctx)
	if err != nil {
		return err
	}
	item.OrgID = orgID
	if err := s.validate(item); err != nil {
		return err
	}
	return s.repo.Create(ctx, item)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServiceItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := auth.OrgFromContext(ctx); scope != auth.ScopeAll && scope != item.OrgID {
		return nil, fmt.Errorf("service belongs to another organization")
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, item *ServiceItem) error {
	if _, err := organization.ResolveScope(ctx); err != nil {
		return err
	}
	existing, err := s.Get(ctx, item.ID)
	if err != nil {
		return err
	}
	item.OrgID = existing.OrgID
	if err := s.validate(item); err != nil {
		return err
	}
	return s.repo.Update(ctx, item)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := organization.ResolveScope(ctx); err != nil {
		return err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, category string) ([]*ServiceItem, error) {
	return s.repo.List(ctx, auth.OrgFromContext(ctx), category)
}
