// Package handler implements the HTTP endpoints.  Handlers bind and check
// request syntax, call a service, and map its errors to status codes.
package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/middleware"
	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

const (
	requestTimeout    = 10 * time.Second
	maxTitleLen       = 100
	maxDescriptionLen = 255
)

var errNoIdentity = errors.New("invalid user_id in context")

// getUserID returns the authenticated user set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoIdentity
	}
	return id, nil
}

func getRole(c echo.Context) model.Role {
	r, _ := middleware.Role(c)
	return r
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// parseTime accepts RFC 3339 timestamps and normalizes them to UTC whole
// seconds, the resolution of the DATETIME columns.
func parseTime(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC().Truncate(time.Second), true
}

func tooLong(s string, n int) bool { return utf8.RuneCountInString(s) > n }
