package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger tags every request with an X-Request-ID (kept when the
// client sends one) and logs one line per request once it completes.
// Server errors are logged at error level, client errors at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(KeyRequestID, rid)
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.String("request_id", rid),
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if id, ok := UserID(c); ok {
				fields = append(fields, zap.Uint64("user_id", id))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			lvl := zapcore.InfoLevel
			switch {
			case status >= 500:
				lvl = zapcore.ErrorLevel
			case status >= 400:
				lvl = zapcore.WarnLevel
			}
			if ce := log.Check(lvl, "request"); ce != nil {
				ce.Write(fields...)
			}
			return nil
		}
	}
}
