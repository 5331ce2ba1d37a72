package organization

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sewaclinic/sewa/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, org *Organization) error {
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return fmt.Errorf("organization name is required")
	}
	if strings.EqualFold(org.Name, auth.ScopeAll) {
		return fmt.Errorf("organization name %q is reserved", auth.ScopeAll)
	}
	if existing, err := s.repo.GetByName(ctx, org.Name); err == nil && existing != nil {
		return fmt.Errorf("organization %q already exists", org.Name)
	}
	return s.repo.Create(ctx, org)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, org *Organization) error {
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return fmt.Errorf("organization name is required")
	}
	if strings.EqualFold(org.Name, auth.ScopeAll) {
		return fmt.Errorf("organization name %q is reserved", auth.ScopeAll)
	}
	return s.repo.Update(ctx, org)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Organization, error) {
	return s.repo.List(ctx)
}

// ResolveScope validates the active organization context for a write. It
// rejects the cross-org ALL filter and empty scope, both of which leave
// ownership ambiguous.
func ResolveScope(ctx context.Context) (string, error) {
	org := auth.OrgFromContext(ctx)
	if org == "" {
		return "", fmt.Errorf("no active organization")
	}
	if org == auth.ScopeAll {
		return "", fmt.Errorf("select a specific organization before making changes")
	}
	return org, nil
}
