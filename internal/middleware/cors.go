package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// CORS allows browser clients from origins.  Credentials are only allowed
// when no wildcard origin is configured.
func CORS(origins []string) echo.MiddlewareFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	credentials := true
	for _, o := range origins {
		if o == "*" {
			credentials = false
			break
		}
	}
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestID,
		},
		ExposeHeaders:    []string{echo.HeaderXRequestID, "Retry-After", "X-Cache"},
		AllowCredentials: credentials,
		MaxAge:           int((12 * time.Hour).Seconds()),
	})
}
