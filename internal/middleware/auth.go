package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/swapmeet/internal/utils"
)

// JWTMiddleware authenticates the request and stores user_id and role on the
// context. The token comes from the Authorization header, or from the token
// query parameter for websocket upgrades that cannot set headers.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, ok := utils.BearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				tokenStr = c.QueryParam("token")
			}
			if tokenStr == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing Authorization header"})
			}

			userID, role, err := utils.ParseToken(secret, tokenStr)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set("user_id", userID)
			c.Set("role", role)
			return next(c)
		}
	}
}

// RequireRoles lets the request through only when the role set by
// JWTMiddleware is one of roles.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" || !slices.Contains(roles, role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied", "required_roles": roles})
			}
			return next(c)
		}
	}
}
