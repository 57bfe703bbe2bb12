package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// RequireRole rejects requests whose role, as set by JWTAuth, is not one
// of roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := Role(c)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "insufficient role"})
			}
			return next(c)
		}
	}
}
