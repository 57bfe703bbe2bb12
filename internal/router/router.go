// Package router wires handlers and middleware onto echo routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
	"github.com/iliyamo/meeting-room-reservation/internal/handler"
	"github.com/iliyamo/meeting-room-reservation/internal/middleware"
	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// Handlers bundles every HTTP handler.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Rooms        *handler.RoomHandler
	Reservations *handler.ReservationHandler
	Users        *handler.UserHandler
}

// Options carries the cross-cutting middleware.  A nil Limiter or Cache
// disables that concern.
type Options struct {
	JWTSecret string
	Limiter   echo.MiddlewareFunc
	Cache     *middleware.ResponseCache
}

var (
	anyone = []model.Role{model.RoleEmployee, model.RoleAdmin, model.RoleSuperAdmin}
	admins = []model.Role{model.RoleAdmin, model.RoleSuperAdmin}
)

// Register mounts all routes on e.
func Register(e *echo.Echo, h Handlers, opt Options) {
	limit := opt.Limiter
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	cache := opt.Cache
	if cache == nil {
		cache = middleware.NewResponseCache(config.CacheConfig{}, nil, nil)
	}

	e.GET("/healthz", h.Health.Live)
	e.GET("/readyz", h.Health.Ready)

	// Session endpoints do not need an access token.
	a := e.Group("/v1/auth", limit)
	a.POST("/register", h.Auth.Register)
	a.POST("/login", h.Auth.Login)
	a.POST("/refresh", h.Auth.Refresh)
	a.POST("/logout", h.Auth.Logout)

	v1 := e.Group("/v1", middleware.JWTAuth(opt.JWTSecret), middleware.RequireRole(anyone...))
	v1.GET("/me", h.Auth.Me)
	v1.POST("/logout-all", h.Auth.LogoutAll)

	isAdmin := middleware.RequireRole(admins...)

	rooms := v1.Group("/rooms")
	rooms.GET("", h.Rooms.List, cache.Middleware())
	rooms.GET("/available", h.Rooms.Available)
	rooms.GET("/:id", h.Rooms.Get, cache.Middleware())
	rooms.POST("", h.Rooms.Create, isAdmin, cache.Invalidate())
	rooms.PATCH("/:id", h.Rooms.Update, isAdmin, cache.Invalidate())
	rooms.PATCH("/:id/status", h.Rooms.UpdateStatus, isAdmin, cache.Invalidate())
	rooms.DELETE("/:id", h.Rooms.Delete, isAdmin, cache.Invalidate())

	// Bookings change room status, so they drop cached catalog pages too.
	res := v1.Group("/reservations")
	res.POST("", h.Reservations.Create, limit, cache.Invalidate())
	res.GET("/user", h.Reservations.ListMine)
	res.GET("", h.Reservations.ListAll, isAdmin)
	res.GET("/export", h.Reservations.Export, isAdmin)
	res.GET("/:id", h.Reservations.Get)
	res.PATCH("/:id", h.Reservations.Update, limit, cache.Invalidate())
	res.DELETE("/:id", h.Reservations.Delete, limit, cache.Invalidate())

	users := v1.Group("/users")
	users.GET("/me/roles", h.Users.MyRoles)
	users.GET("", h.Users.List, isAdmin)
	users.POST("", h.Users.Create, isAdmin)
	users.GET("/:id", h.Users.Get, isAdmin)
	users.PATCH("/:id", h.Users.Update, isAdmin)
	users.DELETE("/:id", h.Users.Delete, isAdmin)
	users.PATCH("/:id/role", h.Users.SetRole, isAdmin)
	users.DELETE("/:id/admin", h.Users.RemoveAdmin, isAdmin)
}
