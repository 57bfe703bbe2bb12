package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// Context keys set by JWTAuth.
const (
	KeyUserID    = "user_id"
	KeyRole      = "role"
	KeyRequestID = "request_id"
)

// UserID returns the authenticated user's ID.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(KeyUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role.
func Role(c echo.Context) (model.Role, bool) {
	r, ok := c.Get(KeyRole).(model.Role)
	return r, ok && r != ""
}

// subject identifies the caller for rate limit keys; "anon" when the
// request is not authenticated.
func subject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
