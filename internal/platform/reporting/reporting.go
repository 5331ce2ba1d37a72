// Package reporting serves read-only statistical measures evaluated directly
// against the pool. Measures never write; every query is scoped to the
// caller's organization unless the caller carries the ALL view.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/sewaclinic/sewa/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query. The SQL
// receives the caller's organization scope as $1; 'ALL' disables the filter.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
	Financial   bool   `json:"financial"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	OrgScope    string                   `json:"organization_scope"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "monthly-registrations",
		Name:        "Monthly Registrations by Department",
		Description: "Visit registrations per calendar month and department",
		SQL: `SELECT to_char(created_at, 'YYYY-MM') AS month, department, COUNT(*) AS total
			FROM service_records
			WHERE ($1 = 'ALL' OR organization_id = $1)
			GROUP BY month, department
			ORDER BY month DESC, total DESC`,
	},
	{
		ID:          "daily-sales",
		Name:        "Daily Sales Totals",
		Description: "Sale count, subtotal, tax and grand total per day",
		SQL: `SELECT created_at::date AS day, COUNT(*) AS sales,
			COALESCE(SUM(subtotal), 0) AS subtotal,
			COALESCE(SUM(tax_amount), 0) AS tax,
			COALESCE(SUM(total), 0) AS total
			FROM sales
			WHERE ($1 = 'ALL' OR organization_id = $1)
			GROUP BY day
			ORDER BY day DESC`,
		Financial: true,
	},
	{
		ID:          "low-stock",
		Name:        "Low Stock Summary",
		Description: "Medicines at or below their reorder threshold",
		SQL: `SELECT name, stock, min_stock, organization_id
			FROM medicines
			WHERE stock <= min_stock AND ($1 = 'ALL' OR organization_id = $1)
			ORDER BY stock ASC`,
	},
	{
		ID:          "new-vs-returning",
		Name:        "New vs Returning Patients",
		Description: "Monthly split of first-ever visits against repeat visits",
		SQL: `SELECT to_char(v.created_at, 'YYYY-MM') AS month,
			SUM(CASE WHEN v.created_at = f.first_visit THEN 1 ELSE 0 END) AS new_patients,
			SUM(CASE WHEN v.created_at > f.first_visit THEN 1 ELSE 0 END) AS returning_patients
			FROM service_records v
			JOIN (SELECT patient_code, MIN(created_at) AS first_visit
				FROM service_records GROUP BY patient_code) f
				ON f.patient_code = v.patient_code
			WHERE ($1 = 'ALL' OR v.organization_id = $1)
			GROUP BY month
			ORDER BY month DESC`,
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reports := api.Group("/reports", auth.RequirePermission(auth.PermViewReports))
	reports.GET("/measures", h.ListMeasures)
	reports.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns the measure definitions the caller may evaluate.
func (h *Handler) ListMeasures(c echo.Context) error {
	perms := auth.PermissionsFromContext(c.Request().Context())
	visible := make([]MeasureDefinition, 0, len(PredefinedMeasures))
	for _, m := range PredefinedMeasures {
		if m.Financial && !auth.HasPermission(perms, auth.PermViewFinancials) {
			continue
		}
		visible = append(visible, m)
	}
	return c.JSON(http.StatusOK, visible)
}

// EvaluateMeasure executes a measure's SQL scoped to the caller's
// organization and returns the rows.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	ctx := c.Request().Context()

	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	if measure.Financial && !auth.HasPermission(auth.PermissionsFromContext(ctx), auth.PermViewFinancials) {
		return echo.NewHTTPError(http.StatusForbidden,
			fmt.Sprintf("access denied: missing permission %s", auth.PermViewFinancials))
	}

	scope := auth.OrgFromContext(ctx)
	results, err := h.executeSQL(ctx, measure.SQL, scope)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		OrgScope:    scope,
		GeneratedAt: time.Now(),
		Results:     results,
	})
}

// executeSQL runs a measure query and returns rows as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
