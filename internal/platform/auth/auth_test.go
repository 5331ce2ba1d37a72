package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testSecret, time.Hour, "u1", "ram", RoleSubAdmin, "org-main", []string{PermAccessBilling})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Username != "ram" {
		t.Errorf("expected username ram, got %s", claims.Username)
	}
	if claims.Role != RoleSubAdmin {
		t.Errorf("expected role SUB_ADMIN, got %s", claims.Role)
	}
	if claims.OrgID != "org-main" {
		t.Errorf("expected org-main, got %s", claims.OrgID)
	}
	if !HasPermission(claims.Permissions, PermAccessBilling) {
		t.Error("expected access_billing permission")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := IssueToken(testSecret, time.Hour, "u1", "ram", RoleUser, "org-main", nil)
	if _, err := ParseToken([]byte("another-secret-another-secret-xx"), token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _ := IssueToken(testSecret, -time.Minute, "u1", "ram", RoleUser, "org-main", nil)
	if _, err := ParseToken(testSecret, token); err == nil {
		t.Error("expected error for expired token")
	}
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, header http.Header) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	rec, _ := doRequest(t, JWTMiddleware(testSecret), http.Header{})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token, _ := IssueToken(testSecret, time.Hour, "u1", "sita", RoleUser, "org-main", []string{PermViewInventory})
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	rec, c := doRequest(t, JWTMiddleware(testSecret), h)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ctx := c.Request().Context()
	if UsernameFromContext(ctx) != "sita" {
		t.Errorf("expected username sita, got %s", UsernameFromContext(ctx))
	}
	if OrgFromContext(ctx) != "org-main" {
		t.Errorf("expected org-main, got %s", OrgFromContext(ctx))
	}
}

func TestJWTMiddleware_OrgScopeHeaderSuperAdminOnly(t *testing.T) {
	// SUPER_ADMIN may switch to the ALL filter.
	token, _ := IssueToken(testSecret, time.Hour, "u1", "boss", RoleSuperAdmin, "org-main", nil)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("X-Org-Scope", ScopeAll)
	_, c := doRequest(t, JWTMiddleware(testSecret), h)
	if OrgFromContext(c.Request().Context()) != ScopeAll {
		t.Error("expected SUPER_ADMIN to switch into ALL scope")
	}

	// Everyone else stays pinned to their own organization.
	token, _ = IssueToken(testSecret, time.Hour, "u2", "staff", RoleUser, "org-main", nil)
	h = http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("X-Org-Scope", "org-other")
	_, c = doRequest(t, JWTMiddleware(testSecret), h)
	if OrgFromContext(c.Request().Context()) != "org-main" {
		t.Error("expected USER to stay in its own organization")
	}
}

func TestRequireRole(t *testing.T) {
	token, _ := IssueToken(testSecret, time.Hour, "u1", "staff", RoleUser, "org-main", nil)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header = h
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTMiddleware(testSecret)(RequireRole(RoleSubAdmin)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}))
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for USER on SUB_ADMIN route, got %d", rec.Code)
	}
}

func TestRequirePermission_Denied(t *testing.T) {
	token, _ := IssueToken(testSecret, time.Hour, "u1", "staff", RoleUser, "org-main", []string{PermViewInventory})
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header = h
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTMiddleware(testSecret)(RequirePermission(PermViewFinancials)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}))
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHasPermission(t *testing.T) {
	granted := []string{PermViewSales, PermProcessSales}
	if !HasPermission(granted, PermProcessSales) {
		t.Error("expected process_sales to be granted")
	}
	if HasPermission(granted, PermManageUsers) {
		t.Error("manage_users was never granted")
	}
	if HasPermission(nil, PermViewSales) {
		t.Error("empty set grants nothing")
	}
}
