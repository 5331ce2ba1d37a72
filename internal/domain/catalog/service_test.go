package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sewaclinic/sewa/internal/platform/auth"
)

type mockRepo struct {
	items map[uuid.UUID]*ServiceItem
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*ServiceItem)}
}

func (m *mockRepo) Create(_ context.Context, item *ServiceItem) error {
	item.ID = uuid.New()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, item *ServiceItem) error {
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, orgID, category string) ([]*ServiceItem, error) {
	var out []*ServiceItem
	for _, item := range m.items {
		if orgID != auth.ScopeAll && item.OrgID != orgID {
			continue
		}
		if category != "" && item.Category != category {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func orgCtx(org string) context.Context {
	return context.WithValue(context.Background(), auth.OrgKey, org)
}

func TestCreate(t *testing.T) {
	svc := NewService(newMockRepo())
	item := &ServiceItem{Name: "X-Ray Chest", Category: "radiology", Price: 600}
	if err := svc.Create(orgCtx("org-main"), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.OrgID != "org-main" {
		t.Errorf("expected org-main, got %s", item.OrgID)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.Create(orgCtx("org-main"), &ServiceItem{Name: " "}); err == nil {
		t.Error("expected empty name to fail")
	}
	if err := svc.Create(orgCtx("org-main"), &ServiceItem{Name: "X", Price: -5}); err == nil {
		t.Error("expected negative price to fail")
	}
	if err := svc.Create(orgCtx(auth.ScopeAll), &ServiceItem{Name: "X", Price: 5}); err == nil {
		t.Error("expected ALL scope to be refused")
	}
}

func TestGet_OrgIsolation(t *testing.T) {
	svc := NewService(newMockRepo())
	item := &ServiceItem{Name: "Dressing", Price: 100}
	if err := svc.Create(orgCtx("org-main"), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(orgCtx("org-other"), item.ID); err == nil {
		t.Error("expected cross-org get to be refused")
	}
}

func TestList_FilterByCategory(t *testing.T) {
	svc := NewService(newMockRepo())
	_ = svc.Create(orgCtx("org-main"), &ServiceItem{Name: "X-Ray", Category: "radiology", Price: 600})
	_ = svc.Create(orgCtx("org-main"), &ServiceItem{Name: "CBC", Category: "lab", Price: 400})

	items, err := svc.List(orgCtx("org-main"), "lab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "CBC" {
		t.Errorf("expected only lab items, got %d", len(items))
	}
}
