package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

// AuthAPI is the part of the user directory behind /v1/auth.
type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
	Authenticate(ctx context.Context, username, password string) (*service.Session, error)
	Refresh(ctx context.Context, raw string) (*service.Session, error)
	Logout(ctx context.Context, userID uint64, raw string) error
	Get(ctx context.Context, id uint64) (*model.User, error)
}

// AuthHandler serves signup, login and token rotation.
type AuthHandler struct {
	Users AuthAPI
}

func NewAuthHandler(u AuthAPI) *AuthHandler {
	if u == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{Users: u}
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /v1/auth/register.  New users are employees.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	sess, err := h.Users.Register(ctx, service.RegisterInput(req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	sess, err := h.Users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Refresh handles POST /v1/auth/refresh and rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	sess, err := h.Users.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Logout handles POST /v1/auth/logout and revokes one refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.Logout(ctx, 0, req.RefreshToken); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll handles POST /v1/logout-all and revokes every refresh token of
// the caller.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.Logout(ctx, userID, ""); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/me.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.Get(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
