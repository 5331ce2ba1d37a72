package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
	RoleKey     contextKey = "role"
	OrgKey      contextKey = "organization_id"
	PermsKey    contextKey = "permissions"
)

// Roles. SUPER_ADMIN sees every organization and may select the cross-org
// "ALL" filter; SUB_ADMIN and USER are scoped to one organization.
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleSubAdmin   = "SUB_ADMIN"
	RoleUser       = "USER"
)

// ScopeAll is the cross-organization viewing context. Writes requiring a
// single owner are refused while it is active.
const ScopeAll = "ALL"

// Claims is the session token payload: who the user is, which organization
// scopes their data, and the capability set granted to them.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	OrgID       string   `json:"organization_id"`
	Permissions []string `json:"permissions"`
}

// IssueToken signs an HS256 session token for the given identity.
func IssueToken(secret []byte, ttl time.Duration, userID, username, role, orgID string, permissions []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:      userID,
		Username:    username,
		Role:        role,
		OrgID:       orgID,
		Permissions: permissions,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a session token and returns its claims.
func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := ParseToken(secret, parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			// The "X-Org-Scope" header lets a SUPER_ADMIN switch the active
			// organization filter, including the cross-org ALL view. Other
			// roles stay pinned to their own organization.
			orgID := claims.OrgID
			if claims.Role == RoleSuperAdmin {
				if scope := c.Request().Header.Get("X-Org-Scope"); scope != "" {
					orgID = scope
				}
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			ctx = context.WithValue(ctx, OrgKey, orgID)
			ctx = context.WithValue(ctx, PermsKey, claims.Permissions)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that gives
// unauthenticated requests a SUPER_ADMIN identity.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return next(c)
			}
			orgID := c.Request().Header.Get("X-Org-Scope")
			if orgID == "" {
				orgID = ScopeAll
			}
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, "dev-user")
			ctx = context.WithValue(ctx, UsernameKey, "dev")
			ctx = context.WithValue(ctx, RoleKey, RoleSuperAdmin)
			ctx = context.WithValue(ctx, OrgKey, orgID)
			ctx = context.WithValue(ctx, PermsKey, AllPermissions())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func UsernameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(UsernameKey).(string)
	return name
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(RoleKey).(string)
	return role
}

// OrgFromContext returns the active organization filter, which may be
// ScopeAll for a SUPER_ADMIN browsing across branches.
func OrgFromContext(ctx context.Context) string {
	org, _ := ctx.Value(OrgKey).(string)
	return org
}

func PermissionsFromContext(ctx context.Context) []string {
	perms, _ := ctx.Value(PermsKey).([]string)
	return perms
}
