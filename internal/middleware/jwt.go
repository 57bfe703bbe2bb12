package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the caller's ID and
// role in the context under KeyUserID and KeyRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}

			claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			uid, err := claims.UserID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token subject"})
			}

			c.Set(KeyUserID, uid)
			c.Set(KeyRole, claims.Role)
			return next(c)
		}
	}
}
