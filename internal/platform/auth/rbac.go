package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Capability flags. Checks are purely additive booleans: role never enters a
// permission check, it only gates who may grant which flags at user creation.
const (
	PermRegisterPatient    = "register_patient"
	PermRunConsultation    = "run_consultation"
	PermViewVisits         = "view_visits"
	PermEnterLabResults    = "enter_lab_results"
	PermAddInventory       = "add_inventory"
	PermEditInventory      = "edit_inventory"
	PermDeleteInventory    = "delete_inventory"
	PermViewInventory      = "view_inventory"
	PermAccessBilling      = "access_billing"
	PermProcessSales       = "process_sales"
	PermViewSales          = "view_sales"
	PermManageCatalog      = "manage_catalog"
	PermViewReports        = "view_reports"
	PermViewFinancials     = "view_financial_reports"
	PermManageUsers        = "manage_users"
	PermManageOrgs         = "manage_organizations"
	PermManageSettings     = "manage_settings"
	PermCancelVisit        = "cancel_visit"
	PermViewLowStock       = "view_low_stock"
	PermViewPatientHistory = "view_patient_history"
)

// AllPermissions returns every capability flag the system knows about.
func AllPermissions() []string {
	return []string{
		PermRegisterPatient, PermRunConsultation, PermViewVisits,
		PermEnterLabResults, PermAddInventory, PermEditInventory,
		PermDeleteInventory, PermViewInventory, PermAccessBilling,
		PermProcessSales, PermViewSales, PermManageCatalog,
		PermViewReports, PermViewFinancials, PermManageUsers,
		PermManageOrgs, PermManageSettings, PermCancelVisit,
		PermViewLowStock, PermViewPatientHistory,
	}
}

// RequireRole returns middleware that checks the user's role against the
// allowed set. SUPER_ADMIN always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleSuperAdmin {
				return next(c)
			}
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequirePermission returns middleware that checks a single capability flag
// on the current user's permission set.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasPermission(PermissionsFromContext(c.Request().Context()), perm) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("access denied: missing permission %s", perm))
		}
	}
}

// HasPermission reports whether perm is present in the granted set.
func HasPermission(granted []string, perm string) bool {
	for _, g := range granted {
		if g == perm {
			return true
		}
	}
	return false
}
