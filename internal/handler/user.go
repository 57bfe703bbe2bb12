package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

// UserAPI is the administrative part of the user directory.
type UserAPI interface {
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id uint64) (*model.User, error)
	Create(ctx context.Context, actorID uint64, in service.CreateUserInput) (*model.User, error)
	Update(ctx context.Context, actorID, targetID uint64, in service.UpdateUserInput) (*model.User, error)
	Delete(ctx context.Context, actorID, targetID uint64) error
	Roles(ctx context.Context, userID uint64) (*service.RoleInfo, error)
	SetRole(ctx context.Context, actorID, targetID uint64, role model.Role) (*model.User, error)
	RemoveAdmin(ctx context.Context, actorID, targetID uint64) (*model.User, error)
}

// UserHandler serves /v1/users.  Role hierarchy checks happen in the
// service.
type UserHandler struct {
	Users UserAPI
}

func NewUserHandler(u UserAPI) *UserHandler {
	if u == nil {
		panic("nil service passed to NewUserHandler")
	}
	return &UserHandler{Users: u}
}

// List handles GET /v1/users.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Users.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(list)})
}

// Get handles GET /v1/users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

type createUserReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserReq struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Create handles POST /v1/users.  role is optional and defaults to
// EMPLOYEE.
func (h *UserHandler) Create(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	in := service.CreateUserInput{Username: req.Username, Email: req.Email, Password: req.Password}
	if req.Role != "" {
		role, ok := model.ParseRole(req.Role)
		if !ok {
			return badRequest(c, "role must be SUPER_ADMIN, ADMIN or EMPLOYEE")
		}
		in.Role = role
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.Create(ctx, actorID, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Update handles PATCH /v1/users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	in := service.UpdateUserInput(req)
	if in == (service.UpdateUserInput{}) {
		return badRequest(c, "no fields to update")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.Update(ctx, actorID, id, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Delete handles DELETE /v1/users/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.Delete(ctx, actorID, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MyRoles handles GET /v1/users/me/roles.
func (h *UserHandler) MyRoles(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	info, err := h.Users.Roles(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// SetRole handles PATCH /v1/users/:id/role with body {"role": "ADMIN"}.
func (h *UserHandler) SetRole(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return badRequest(c, "role must be SUPER_ADMIN, ADMIN or EMPLOYEE")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.SetRole(ctx, actorID, id, role)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// RemoveAdmin handles DELETE /v1/users/:id/admin.
func (h *UserHandler) RemoveAdmin(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.RemoveAdmin(ctx, actorID, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
