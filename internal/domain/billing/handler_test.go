package billing

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestListSales_DateFilterIncludesNamedDay(t *testing.T) {
	f := newFixture(0)
	h := NewHandler(f.svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sales?from=2026-08-01&to=2026-08-28", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListSales(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	wantFrom := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !f.sales.lastFrom.Equal(wantFrom) {
		t.Errorf("expected from %v, got %v", wantFrom, f.sales.lastFrom)
	}
	// The repository filters created_at < to, so a sale made any time on the
	// 28th must fall inside the range.
	wantTo := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if !f.sales.lastTo.Equal(wantTo) {
		t.Errorf("expected to %v, got %v", wantTo, f.sales.lastTo)
	}
}

func TestListSales_RejectsBadDates(t *testing.T) {
	f := newFixture(0)
	h := NewHandler(f.svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sales?to=28-08-2026", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListSales(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed date, got %v", err)
	}
}
