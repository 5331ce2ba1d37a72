package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sewaclinic/sewa/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes registers endpoints that do not require a session.
func (h *Handler) RegisterPublicRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/auth/me", h.Me)
	api.POST("/auth/change-password", h.ChangeOwnPassword)

	manage := api.Group("", auth.RequirePermission(auth.PermManageUsers))
	manage.GET("/users", h.List)
	manage.GET("/users/:id", h.Get)
	manage.POST("/users", h.Create)
	manage.PUT("/users/:id/overrides", h.UpdateOverrides)
	manage.POST("/users/:id/deactivate", h.Deactivate)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string   `json:"token"`
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	OrgID       string   `json:"organization_id"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, token, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication failed")
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:       token,
		UserID:      u.ID.String(),
		Username:    u.Username,
		Role:        u.Role,
		OrgID:       u.OrgID,
		Permissions: u.EffectiveCapabilities(),
	})
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":         auth.UserIDFromContext(ctx),
		"username":        auth.UsernameFromContext(ctx),
		"role":            auth.RoleFromContext(ctx),
		"organization_id": auth.OrgFromContext(ctx),
		"permissions":     auth.PermissionsFromContext(ctx),
	})
}

type createUserRequest struct {
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	FullName     string   `json:"full_name"`
	Role         string   `json:"role"`
	OrgID        string   `json:"organization_id"`
	GrantedExtra []string `json:"granted_extra"`
	Revoked      []string `json:"revoked"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u := &User{
		Username:     req.Username,
		FullName:     req.FullName,
		Role:         req.Role,
		OrgID:        req.OrgID,
		GrantedExtra: req.GrantedExtra,
		Revoked:      req.Revoked,
	}
	if err := h.svc.CreateUser(c.Request().Context(), u, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c echo.Context) error {
	users, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

type overridesRequest struct {
	GrantedExtra []string `json:"granted_extra"`
	Revoked      []string `json:"revoked"`
}

func (h *Handler) UpdateOverrides(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var req overridesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpdateOverrides(c.Request().Context(), id, req.GrantedExtra, req.Revoked)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *Handler) ChangeOwnPassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	id, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session user")
	}
	if err := h.svc.ChangePassword(ctx, id, req.NewPassword); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
