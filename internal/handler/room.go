package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

// RoomAPI is the room catalog as seen by HTTP.
type RoomAPI interface {
	Create(ctx context.Context, in service.CreateRoomInput) (*model.Room, error)
	Get(ctx context.Context, id uint64) (*model.Room, error)
	List(ctx context.Context, q service.RoomListQuery) (*service.RoomPage, error)
	Update(ctx context.Context, id uint64, in service.UpdateRoomInput) (*model.Room, error)
	UpdateStatus(ctx context.Context, id uint64, status model.RoomStatus) (*model.Room, error)
	Deactivate(ctx context.Context, id uint64) error
	FindAvailable(ctx context.Context, start, end time.Time, minCapacity *int) ([]model.Room, error)
}

// RoomHandler serves /v1/rooms.
type RoomHandler struct {
	Rooms RoomAPI
}

func NewRoomHandler(r RoomAPI) *RoomHandler {
	if r == nil {
		panic("nil service passed to NewRoomHandler")
	}
	return &RoomHandler{Rooms: r}
}

type roomReq struct {
	Name        *string `json:"name"`
	Capacity    *int    `json:"capacity"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

// List handles GET /v1/rooms?page=&limit=&status=.
func (h *RoomHandler) List(c echo.Context) error {
	var q service.RoomListQuery
	for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		if raw := c.QueryParam(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return badRequest(c, name+" must be an integer")
			}
			*dst = n
		}
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseRoomStatus(raw)
		if !ok {
			return badRequest(c, "status must be AVAILABLE, OCCUPIED or MAINTENANCE")
		}
		q.Status = &st
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	page, err := h.Rooms.List(ctx, q)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Available handles GET /v1/rooms/available?start_time=&end_time=&capacity=.
func (h *RoomHandler) Available(c echo.Context) error {
	start, ok := parseTime(c.QueryParam("start_time"))
	if !ok {
		return badRequest(c, "start_time must be an RFC 3339 timestamp")
	}
	end, ok := parseTime(c.QueryParam("end_time"))
	if !ok {
		return badRequest(c, "end_time must be an RFC 3339 timestamp")
	}
	var minCapacity *int
	if raw := c.QueryParam("capacity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "capacity must be an integer")
		}
		minCapacity = &n
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	rooms, err := h.Rooms.FindAvailable(ctx, start, end, minCapacity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(rooms)})
}

// Get handles GET /v1/rooms/:id.
func (h *RoomHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	rm, err := h.Rooms.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rm)
}

// Create handles POST /v1/rooms.
func (h *RoomHandler) Create(c echo.Context) error {
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == nil || req.Capacity == nil || req.Location == nil {
		return badRequest(c, "name, capacity and location are required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	rm, err := h.Rooms.Create(ctx, service.CreateRoomInput{
		Name:        *req.Name,
		Capacity:    *req.Capacity,
		Location:    *req.Location,
		Description: req.Description,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, rm)
}

// Update handles PATCH /v1/rooms/:id.
func (h *RoomHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	in := service.UpdateRoomInput(req)
	if in == (service.UpdateRoomInput{}) {
		return badRequest(c, "no fields to update")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	rm, err := h.Rooms.Update(ctx, id, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rm)
}

// UpdateStatus handles PATCH /v1/rooms/:id/status.
func (h *RoomHandler) UpdateStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	st, ok := model.ParseRoomStatus(req.Status)
	if !ok {
		return badRequest(c, "status must be AVAILABLE, OCCUPIED or MAINTENANCE")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	rm, err := h.Rooms.UpdateStatus(ctx, id, st)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rm)
}

// Delete handles DELETE /v1/rooms/:id by deactivating the room.
func (h *RoomHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Rooms.Deactivate(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
