package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

// Error codes in the "error" field of every error response.
const (
	codeInvalidRange = "invalid_range"
	codeInvalidInput = "invalid_input"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeStoreFailure = "store_failure"
)

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidRange, http.StatusBadRequest, codeInvalidRange},
	{service.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput},
	{service.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized},
	{service.ErrForbidden, http.StatusForbidden, codeForbidden},
	{service.ErrNotFound, http.StatusNotFound, codeNotFound},
	{service.ErrConflict, http.StatusConflict, codeConflict},
}

// fail writes the JSON error response for a service error.  Store failures
// never expose their cause.
func fail(c echo.Context, err error) error {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": m.code, "message": err.Error()})
		}
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": codeStoreFailure, "message": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": codeInvalidInput, "message": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": codeUnauthorized, "message": "unauthorized"})
}
