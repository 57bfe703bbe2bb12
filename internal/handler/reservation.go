package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/report"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

// ReservationAPI is the admission engine as seen by HTTP.
type ReservationAPI interface {
	Create(ctx context.Context, in service.CreateReservationInput, requesterID uint64) (*model.Reservation, error)
	Update(ctx context.Context, id uint64, in service.UpdateReservationInput, requesterID uint64) (*model.Reservation, error)
	Remove(ctx context.Context, id, requesterID uint64) error
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
}

// ReservationHandler serves /v1/reservations.
type ReservationHandler struct {
	Reservations ReservationAPI
	Log          *zap.Logger
}

func NewReservationHandler(r ReservationAPI, log *zap.Logger) *ReservationHandler {
	if r == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{Reservations: r, Log: log}
}

type createReservationReq struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	RoomID      uint64  `json:"room_id"`
}

type updateReservationReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	RoomID      *uint64 `json:"room_id"`
}

func checkTitle(title string) string {
	switch {
	case title == "":
		return "title is required"
	case tooLong(title, maxTitleLen):
		return fmt.Sprintf("title must be at most %d characters", maxTitleLen)
	}
	return ""
}

func checkDescription(d *string) string {
	if d != nil && tooLong(*d, maxDescriptionLen) {
		return fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)
	}
	return ""
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if msg := checkTitle(req.Title); msg != "" {
		return badRequest(c, msg)
	}
	if msg := checkDescription(req.Description); msg != "" {
		return badRequest(c, msg)
	}
	if req.RoomID == 0 {
		return badRequest(c, "room_id is required")
	}
	start, ok := parseTime(req.StartTime)
	if !ok {
		return badRequest(c, "start_time must be an RFC 3339 timestamp")
	}
	end, ok := parseTime(req.EndTime)
	if !ok {
		return badRequest(c, "end_time must be an RFC 3339 timestamp")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Reservations.Create(ctx, service.CreateReservationInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
		RoomID:      req.RoomID,
	}, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles PATCH /v1/reservations/:id.  Only the owner may update.
func (h *ReservationHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var req updateReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var in service.UpdateReservationInput
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if msg := checkTitle(t); msg != "" {
			return badRequest(c, msg)
		}
		in.Title = &t
	}
	if msg := checkDescription(req.Description); msg != "" {
		return badRequest(c, msg)
	}
	in.Description = req.Description
	if req.StartTime != nil {
		t, ok := parseTime(*req.StartTime)
		if !ok {
			return badRequest(c, "start_time must be an RFC 3339 timestamp")
		}
		in.StartTime = &t
	}
	if req.EndTime != nil {
		t, ok := parseTime(*req.EndTime)
		if !ok {
			return badRequest(c, "end_time must be an RFC 3339 timestamp")
		}
		in.EndTime = &t
	}
	if req.RoomID != nil {
		if *req.RoomID == 0 {
			return badRequest(c, "room_id must be positive")
		}
		in.RoomID = req.RoomID
	}
	if in == (service.UpdateReservationInput{}) {
		return badRequest(c, "no fields to update")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Reservations.Update(ctx, id, in, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /v1/reservations/:id.  Only the owner may delete.
func (h *ReservationHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Reservations.Remove(ctx, id, userID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/reservations/:id.  Employees only see their own
// reservations; admins see all.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Reservations.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if res.UserID != userID && !getRole(c).IsAdmin() {
		return fail(c, service.ErrForbidden)
	}
	return c.JSON(http.StatusOK, res)
}

// ListMine handles GET /v1/reservations/user.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Reservations.ListByUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(list)})
}

// ListAll handles GET /v1/reservations (admins).
func (h *ReservationHandler) ListAll(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Reservations.ListAll(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(list)})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export handles GET /v1/reservations/export (admins) and returns every
// reservation as an .xlsx workbook.
func (h *ReservationHandler) Export(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Reservations.ListAll(ctx)
	if err != nil {
		return fail(c, err)
	}
	data, err := report.ReservationsXLSX(list)
	if err != nil {
		h.Log.Error("reservation export failed", zap.Error(err))
		return fail(c, err)
	}
	name := fmt.Sprintf("reservations-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
