package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sewaclinic/sewa/internal/platform/auth"
	"github.com/sewaclinic/sewa/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	billing := api.Group("", auth.RequirePermission(auth.PermAccessBilling))
	billing.GET("/billing/import/:recordId", h.BuildImportCart)

	process := api.Group("", auth.RequirePermission(auth.PermProcessSales))
	process.POST("/billing/process", h.ProcessBill)
	process.POST("/billing/retail", h.ProcessRetailSale)

	view := api.Group("", auth.RequirePermission(auth.PermViewSales))
	view.GET("/sales", h.ListSales)
	view.GET("/sales/:id", h.GetSale)
}

func (h *Handler) BuildImportCart(c echo.Context) error {
	recordID, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	cart, err := h.svc.BuildImportCart(c.Request().Context(), recordID)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) ProcessBill(c echo.Context) error {
	var in BillInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sale, err := h.svc.ProcessBill(c.Request().Context(), in)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sale)
}

func (h *Handler) ProcessRetailSale(c echo.Context) error {
	var in BillInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sale, err := h.svc.ProcessRetailSale(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sale)
}

func (h *Handler) GetSale(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sale id")
	}
	sale, err := h.svc.GetSale(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "sale not found")
		}
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return c.JSON(http.StatusOK, sale)
}

func (h *Handler) ListSales(c echo.Context) error {
	p := pagination.FromContext(c)

	var from, to time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		// The repository filters created_at < to, so include the named day.
		to = t.AddDate(0, 0, 1)
	}

	sales, total, err := h.svc.ListSales(c.Request().Context(), from, to, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(sales, total, p.Limit, p.Offset))
}
