package visit

import (
	"net/http"

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
	view := api.Group("", auth.RequirePermission(auth.PermViewVisits))
	view.GET("/visits", h.List)
	view.GET("/visits/:id", h.Get)

	api.GET("/patients/:code/history", h.History,
		auth.RequirePermission(auth.PermViewPatientHistory))

	api.POST("/visits", h.Register,
		auth.RequirePermission(auth.PermRegisterPatient))
	api.PUT("/visits/:id/consultation", h.CompleteConsultation,
		auth.RequirePermission(auth.PermRunConsultation))
	api.POST("/visits/:id/cancel", h.Cancel,
		auth.RequirePermission(auth.PermCancelVisit))
	api.PUT("/visits/:id/lab-results", h.EnterLabResult,
		auth.RequirePermission(auth.PermEnterLabResults))
	api.POST("/visits/:id/doses/:day", h.MarkDoseGiven,
		auth.RequirePermission(auth.PermRunConsultation))
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !visibleInScope(c, rec.OrgID) {
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	p := pagination.FromContext(c)
	records, total, err := h.svc.List(ctx, auth.OrgFromContext(ctx),
		c.QueryParam("department"), c.QueryParam("status"), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p.Limit, p.Offset))
}

func (h *Handler) History(c echo.Context) error {
	ctx := c.Request().Context()
	records, err := h.svc.History(ctx, auth.OrgFromContext(ctx), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) CompleteConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var in ConsultationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.CompleteConsultation(c.Request().Context(), id, in)
	if err != nil {
		switch {
		case IsNotFound(err):
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		case err == ErrVersionConflict:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	rec, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

type labResultRequest struct {
	LabRequestID string `json:"lab_request_id"`
	Result       string `json:"result"`
}

func (h *Handler) EnterLabResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var req labResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.EnterLabResult(c.Request().Context(), id, req.LabRequestID, req.Result)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) MarkDoseGiven(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var day int
	if err := echo.PathParamsBinder(c).Int("day", &day).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid day offset")
	}
	rec, err := h.svc.MarkDoseGiven(c.Request().Context(), id, day)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// visibleInScope checks a loaded record against the caller's organization
// filter, so a direct GET cannot leak across branches.
func visibleInScope(c echo.Context, recordOrg string) bool {
	scope := auth.OrgFromContext(c.Request().Context())
	return scope == auth.ScopeAll || scope == recordOrg
}
