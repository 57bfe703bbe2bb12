package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/meeting-room-reservation/internal/middleware"
	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

// as injects the identity that JWTAuth would set.
func as(id uint64, role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.KeyUserID, id)
			c.Set(middleware.KeyRole, role)
			return next(c)
		}
	}
}

func call(e *echo.Echo, method, target string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		bs, _ := json.Marshal(b)
		rd = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	code, _ := body["error"].(string)
	return code
}

type fakeReservations struct {
	created  *service.CreateReservationInput
	updated  *service.UpdateReservationInput
	removed  uint64
	byID     map[uint64]model.Reservation
	list     []model.Reservation
	err      error
	lastUser uint64
}

func (f *fakeReservations) Create(_ context.Context, in service.CreateReservationInput, uid uint64) (*model.Reservation, error) {
	f.created, f.lastUser = &in, uid
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: 1, Title: in.Title, StartTime: in.StartTime, EndTime: in.EndTime, RoomID: in.RoomID, UserID: uid}, nil
}

func (f *fakeReservations) Update(_ context.Context, id uint64, in service.UpdateReservationInput, uid uint64) (*model.Reservation, error) {
	f.updated, f.lastUser = &in, uid
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: id, UserID: uid}, nil
}

func (f *fakeReservations) Remove(_ context.Context, id, uid uint64) error {
	f.removed, f.lastUser = id, uid
	return f.err
}

func (f *fakeReservations) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	if r, ok := f.byID[id]; ok {
		return &r, nil
	}
	return nil, fmt.Errorf("reservation %w", service.ErrNotFound)
}

func (f *fakeReservations) ListByUser(_ context.Context, uid uint64) ([]model.Reservation, error) {
	f.lastUser = uid
	return nil, f.err
}

func (f *fakeReservations) ListAll(context.Context) ([]model.Reservation, error) {
	return f.list, f.err
}

func reservationServer(f *fakeReservations, id uint64, role model.Role) *echo.Echo {
	h := NewReservationHandler(f, nil)
	e := echo.New()
	g := e.Group("/v1/reservations", as(id, role))
	g.POST("", h.Create)
	g.GET("", h.ListAll)
	g.GET("/export", h.Export)
	g.GET("/user", h.ListMine)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	return e
}

func TestReservationHandler_Create(t *testing.T) {
	f := &fakeReservations{}
	e := reservationServer(f, 7, model.RoleEmployee)

	rec := call(e, http.MethodPost, "/v1/reservations", echo.Map{
		"title":      "  Sprint review ",
		"start_time": "2030-01-01T10:00:00+02:00",
		"end_time":   "2030-01-01T11:00:00Z",
		"room_id":    3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Sprint review", f.created.Title)
	assert.Equal(t, time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC), f.created.StartTime)
	assert.Equal(t, time.UTC, f.created.StartTime.Location())
	assert.Equal(t, uint64(7), f.lastUser)
}

func TestParseTime_TruncatesToSeconds(t *testing.T) {
	got, ok := parseTime(" 2030-01-01T10:00:00.4+01:00 ")
	require.True(t, ok)
	assert.Equal(t, time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC), got)

	_, ok = parseTime("2030-01-01 10:00")
	assert.False(t, ok)
}

func TestReservationHandler_CreateRejectsBadInput(t *testing.T) {
	f := &fakeReservations{}
	e := reservationServer(f, 7, model.RoleEmployee)
	valid := func() echo.Map {
		return echo.Map{"title": "x", "start_time": "2030-01-01T10:00:00Z", "end_time": "2030-01-01T11:00:00Z", "room_id": 1}
	}
	cases := map[string]func(echo.Map){
		"empty title":     func(m echo.Map) { m["title"] = "  " },
		"long title":      func(m echo.Map) { m["title"] = strings.Repeat("t", 101) },
		"long desc":       func(m echo.Map) { m["description"] = strings.Repeat("d", 256) },
		"no room":         func(m echo.Map) { delete(m, "room_id") },
		"bad start":       func(m echo.Map) { m["start_time"] = "tomorrow" },
		"date only end":   func(m echo.Map) { m["end_time"] = "2030-01-01" },
		"wrong type room": func(m echo.Map) { m["room_id"] = "one" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := valid()
			mutate(body)
			rec := call(e, http.MethodPost, "/v1/reservations", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, codeInvalidInput, errorCode(t, rec))
		})
	}
	assert.Nil(t, f.created, "service must not be called")
}

func TestReservationHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: start_time must be before end_time", service.ErrInvalidRange), http.StatusBadRequest, codeInvalidRange},
		{service.ErrConflict, http.StatusConflict, codeConflict},
		{fmt.Errorf("room %w", service.ErrNotFound), http.StatusNotFound, codeNotFound},
		{service.ErrForbidden, http.StatusForbidden, codeForbidden},
		{fmt.Errorf("%w: driver: bad connection", service.ErrStoreFailure), http.StatusInternalServerError, codeStoreFailure},
		{errors.New("unexpected"), http.StatusInternalServerError, codeStoreFailure},
	}
	for _, tc := range cases {
		f := &fakeReservations{err: tc.err}
		e := reservationServer(f, 7, model.RoleEmployee)
		rec := call(e, http.MethodPost, "/v1/reservations", echo.Map{
			"title": "x", "start_time": "2030-01-01T10:00:00Z", "end_time": "2030-01-01T11:00:00Z", "room_id": 1,
		})
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.code, errorCode(t, rec))
		assert.NotContains(t, rec.Body.String(), "bad connection")
	}
}

func TestReservationHandler_Update(t *testing.T) {
	f := &fakeReservations{}
	e := reservationServer(f, 7, model.RoleEmployee)

	rec := call(e, http.MethodPatch, "/v1/reservations/5", echo.Map{"end_time": "2030-01-01T12:00:00Z", "description": ""})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, f.updated.EndTime)
	assert.Nil(t, f.updated.StartTime)
	assert.Nil(t, f.updated.Title)
	assert.Equal(t, "", *f.updated.Description)

	f.updated = nil
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/reservations/5", echo.Map{}).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/reservations/abc", echo.Map{"title": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/reservations/5", echo.Map{"room_id": 0}).Code)
	assert.Nil(t, f.updated)
}

func TestReservationHandler_DeleteAndList(t *testing.T) {
	f := &fakeReservations{}
	e := reservationServer(f, 7, model.RoleEmployee)

	assert.Equal(t, http.StatusNoContent, call(e, http.MethodDelete, "/v1/reservations/9", nil).Code)
	assert.Equal(t, uint64(9), f.removed)

	rec := call(e, http.MethodGet, "/v1/reservations/user", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestReservationHandler_GetEnforcesOwnership(t *testing.T) {
	f := &fakeReservations{byID: map[uint64]model.Reservation{5: {ID: 5, UserID: 7}}}

	assert.Equal(t, http.StatusOK, call(reservationServer(f, 7, model.RoleEmployee), http.MethodGet, "/v1/reservations/5", nil).Code)
	assert.Equal(t, http.StatusForbidden, call(reservationServer(f, 8, model.RoleEmployee), http.MethodGet, "/v1/reservations/5", nil).Code)
	assert.Equal(t, http.StatusOK, call(reservationServer(f, 8, model.RoleAdmin), http.MethodGet, "/v1/reservations/5", nil).Code)
	assert.Equal(t, http.StatusNotFound, call(reservationServer(f, 7, model.RoleEmployee), http.MethodGet, "/v1/reservations/6", nil).Code)
}

func TestReservationHandler_Export(t *testing.T) {
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	f := &fakeReservations{list: []model.Reservation{{ID: 1, Title: "Standup", RoomID: 2, UserID: 3, StartTime: start, EndTime: start.Add(time.Hour)}}}
	e := reservationServer(f, 1, model.RoleAdmin)

	rec := call(e, http.MethodGet, "/v1/reservations/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(wb.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Standup", rows[1][1])
}

type fakeRooms struct {
	query       *service.RoomListQuery
	minCapacity *int
	start, end  time.Time
	update      *service.UpdateRoomInput
	status      model.RoomStatus
	err         error
}

func (f *fakeRooms) Create(_ context.Context, in service.CreateRoomInput) (*model.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Room{ID: 1, Name: in.Name, Capacity: in.Capacity, Location: in.Location, Status: model.RoomAvailable, IsActive: true}, nil
}

func (f *fakeRooms) Get(_ context.Context, id uint64) (*model.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Room{ID: id}, nil
}

func (f *fakeRooms) List(_ context.Context, q service.RoomListQuery) (*service.RoomPage, error) {
	f.query = &q
	return &service.RoomPage{Items: []model.Room{}, Meta: service.PageMeta{Page: 1, Limit: 10}}, f.err
}

func (f *fakeRooms) Update(_ context.Context, id uint64, in service.UpdateRoomInput) (*model.Room, error) {
	f.update = &in
	return &model.Room{ID: id}, f.err
}

func (f *fakeRooms) UpdateStatus(_ context.Context, id uint64, st model.RoomStatus) (*model.Room, error) {
	f.status = st
	return &model.Room{ID: id, Status: st}, f.err
}

func (f *fakeRooms) Deactivate(context.Context, uint64) error { return f.err }

func (f *fakeRooms) FindAvailable(_ context.Context, start, end time.Time, minCapacity *int) ([]model.Room, error) {
	f.start, f.end, f.minCapacity = start, end, minCapacity
	return nil, f.err
}

func roomServer(f *fakeRooms) *echo.Echo {
	h := NewRoomHandler(f)
	e := echo.New()
	e.GET("/v1/rooms", h.List)
	e.GET("/v1/rooms/available", h.Available)
	e.GET("/v1/rooms/:id", h.Get)
	e.POST("/v1/rooms", h.Create)
	e.PATCH("/v1/rooms/:id", h.Update)
	e.PATCH("/v1/rooms/:id/status", h.UpdateStatus)
	e.DELETE("/v1/rooms/:id", h.Delete)
	return e
}

func TestRoomHandler_ListAndAvailable(t *testing.T) {
	f := &fakeRooms{}
	e := roomServer(f)

	rec := call(e, http.MethodGet, "/v1/rooms?page=2&limit=5&status=maintenance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.query.Page)
	assert.Equal(t, 5, f.query.Limit)
	assert.Equal(t, model.RoomMaintenance, *f.query.Status)

	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodGet, "/v1/rooms?page=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodGet, "/v1/rooms?status=closed", nil).Code)

	rec = call(e, http.MethodGet, "/v1/rooms/available?start_time=2030-01-01T10:00:00Z&end_time=2030-01-01T11:00:00Z&capacity=6", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
	assert.Equal(t, 6, *f.minCapacity)
	assert.Equal(t, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), f.start)

	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodGet, "/v1/rooms/available?end_time=2030-01-01T11:00:00Z", nil).Code)

	f.err = fmt.Errorf("%w: start_time must be before end_time", service.ErrInvalidRange)
	rec = call(e, http.MethodGet, "/v1/rooms/available?start_time=2030-01-01T12:00:00Z&end_time=2030-01-01T11:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeInvalidRange, errorCode(t, rec))
}

func TestRoomHandler_Writes(t *testing.T) {
	f := &fakeRooms{}
	e := roomServer(f)

	assert.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/v1/rooms", echo.Map{"name": "Orion", "capacity": 8, "location": "2F"}).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/v1/rooms", echo.Map{"name": "Orion"}).Code)

	rec := call(e, http.MethodPatch, "/v1/rooms/3", echo.Map{"capacity": 12})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, *f.update.Capacity)
	assert.Nil(t, f.update.Name)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/rooms/3", echo.Map{}).Code)

	assert.Equal(t, http.StatusOK, call(e, http.MethodPatch, "/v1/rooms/3/status", echo.Map{"status": "maintenance"}).Code)
	assert.Equal(t, model.RoomMaintenance, f.status)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/rooms/3/status", echo.Map{"status": "gone"}).Code)

	assert.Equal(t, http.StatusNoContent, call(e, http.MethodDelete, "/v1/rooms/3", nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodDelete, "/v1/rooms/0", nil).Code)

	f.err = fmt.Errorf("%w: room name already exists", service.ErrConflict)
	assert.Equal(t, http.StatusConflict, call(e, http.MethodPost, "/v1/rooms", echo.Map{"name": "Orion", "capacity": 8, "location": "2F"}).Code)
}

type fakeUsers struct {
	loggedOut  []string
	revokedAll uint64
	setRole    model.Role
	created    *service.CreateUserInput
	updated    *service.UpdateUserInput
	err        error
}

func (f *fakeUsers) session(u *model.User) *service.Session {
	return &service.Session{User: u}
}

func (f *fakeUsers) Register(_ context.Context, in service.RegisterInput) (*service.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session(&model.User{ID: 1, Username: in.Username, Email: in.Email, Role: model.RoleEmployee}), nil
}

func (f *fakeUsers) Authenticate(_ context.Context, username, password string) (*service.Session, error) {
	if password != "s3cret-pass" {
		return nil, service.ErrUnauthorized
	}
	return f.session(&model.User{ID: 1, Username: username}), nil
}

func (f *fakeUsers) Refresh(_ context.Context, raw string) (*service.Session, error) {
	if raw != "good" {
		return nil, service.ErrUnauthorized
	}
	return f.session(&model.User{ID: 1}), nil
}

func (f *fakeUsers) Logout(_ context.Context, uid uint64, raw string) error {
	if raw == "" {
		f.revokedAll = uid
	} else {
		f.loggedOut = append(f.loggedOut, raw)
	}
	return f.err
}

func (f *fakeUsers) Get(_ context.Context, id uint64) (*model.User, error) {
	return &model.User{ID: id, Username: "u", PasswordHash: "secret-hash"}, f.err
}

func (f *fakeUsers) Create(_ context.Context, actor uint64, in service.CreateUserInput) (*model.User, error) {
	f.created = &in
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: 10, Username: in.Username, Role: in.Role, PasswordHash: "secret-hash"}, nil
}

func (f *fakeUsers) Update(_ context.Context, actor, target uint64, in service.UpdateUserInput) (*model.User, error) {
	f.updated = &in
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: target, PasswordHash: "secret-hash"}, nil
}

func (f *fakeUsers) List(context.Context) ([]model.User, error) { return nil, f.err }

func (f *fakeUsers) Delete(_ context.Context, actor, target uint64) error {
	if actor == target {
		return service.ErrForbidden
	}
	return f.err
}

func (f *fakeUsers) Roles(_ context.Context, id uint64) (*service.RoleInfo, error) {
	return &service.RoleInfo{Role: model.RoleAdmin, Permissions: service.Permissions{CanManageUsers: true}}, f.err
}

func (f *fakeUsers) SetRole(_ context.Context, actor, target uint64, role model.Role) (*model.User, error) {
	f.setRole = role
	return &model.User{ID: target, Role: role}, f.err
}

func (f *fakeUsers) RemoveAdmin(_ context.Context, actor, target uint64) (*model.User, error) {
	return &model.User{ID: target, Role: model.RoleEmployee}, f.err
}

func TestAuthHandler(t *testing.T) {
	f := &fakeUsers{}
	h := NewAuthHandler(f)
	e := echo.New()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)
	e.POST("/v1/auth/logout", h.Logout)
	e.POST("/v1/logout-all", h.LogoutAll, as(4, model.RoleEmployee))
	e.GET("/v1/me", h.Me, as(4, model.RoleEmployee))
	e.GET("/v1/anon/me", h.Me)

	assert.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/v1/auth/register", echo.Map{"username": "a", "email": "a@corp.test", "password": "s3cret-pass"}).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/v1/auth/register", `{"username":`).Code)

	assert.Equal(t, http.StatusOK, call(e, http.MethodPost, "/v1/auth/login", echo.Map{"username": "a", "password": "s3cret-pass"}).Code)
	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodPost, "/v1/auth/login", echo.Map{"username": "a", "password": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/v1/auth/login", echo.Map{"username": " "}).Code)

	assert.Equal(t, http.StatusOK, call(e, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": "good"}).Code)
	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": "bad"}).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/v1/auth/refresh", echo.Map{}).Code)

	assert.Equal(t, http.StatusNoContent, call(e, http.MethodPost, "/v1/auth/logout", echo.Map{"refresh_token": "tok"}).Code)
	assert.Equal(t, []string{"tok"}, f.loggedOut)
	assert.Equal(t, http.StatusNoContent, call(e, http.MethodPost, "/v1/logout-all", nil).Code)
	assert.Equal(t, uint64(4), f.revokedAll)

	rec := call(e, http.MethodGet, "/v1/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodGet, "/v1/anon/me", nil).Code)
}

func TestUserHandler(t *testing.T) {
	f := &fakeUsers{}
	h := NewUserHandler(f)
	e := echo.New()
	g := e.Group("/v1/users", as(1, model.RoleSuperAdmin))
	g.GET("", h.List)
	g.GET("/me/roles", h.MyRoles)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.PATCH("/:id/role", h.SetRole)
	g.DELETE("/:id/admin", h.RemoveAdmin)

	rec := call(e, http.MethodGet, "/v1/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = call(e, http.MethodGet, "/v1/users/me/roles", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"role":"ADMIN","permissions":{"can_manage_admins":false,"can_manage_users":true}}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/v1/users/2", nil).Code)
	assert.Equal(t, http.StatusNoContent, call(e, http.MethodDelete, "/v1/users/2", nil).Code)
	assert.Equal(t, http.StatusForbidden, call(e, http.MethodDelete, "/v1/users/1", nil).Code)

	assert.Equal(t, http.StatusOK, call(e, http.MethodPatch, "/v1/users/2/role", echo.Map{"role": "admin"}).Code)
	assert.Equal(t, model.RoleAdmin, f.setRole)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/users/2/role", echo.Map{"role": "owner"}).Code)

	assert.Equal(t, http.StatusOK, call(e, http.MethodDelete, "/v1/users/2/admin", nil).Code)

	f.err = fmt.Errorf("user %w", service.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, call(e, http.MethodDelete, "/v1/users/9/admin", nil).Code)
}

func TestUserHandler_CreateAndUpdate(t *testing.T) {
	f := &fakeUsers{}
	h := NewUserHandler(f)
	e := echo.New()
	g := e.Group("/v1/users", as(1, model.RoleAdmin))
	g.POST("", h.Create)
	g.PATCH("/:id", h.Update)

	rec := call(e, http.MethodPost, "/v1/users", echo.Map{"username": "eve", "email": "eve@corp.test", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	assert.Equal(t, model.Role(""), f.created.Role)

	assert.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/v1/users", echo.Map{"username": "amy", "role": "admin"}).Code)
	assert.Equal(t, model.RoleAdmin, f.created.Role)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPost, "/v1/users", echo.Map{"username": "x", "role": "owner"}).Code)

	rec = call(e, http.MethodPatch, "/v1/users/5", echo.Map{"email": "new@corp.test"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, f.updated.Email)
	assert.Equal(t, "new@corp.test", *f.updated.Email)
	assert.Nil(t, f.updated.Password)

	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/users/5", echo.Map{}).Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPatch, "/v1/users/abc", echo.Map{"email": "a@b.c"}).Code)

	f.err = fmt.Errorf("%w: username taken", service.ErrConflict)
	rec = call(e, http.MethodPatch, "/v1/users/5", echo.Map{"username": "root"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	e := echo.New()
	ok := &HealthHandler{DB: pinger{}}
	down := &HealthHandler{DB: pinger{err: errors.New("dial tcp: refused")}}
	e.GET("/healthz", ok.Live)
	e.GET("/readyz", ok.Ready)
	e.GET("/readyz-down", down.Ready)

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, call(e, http.MethodGet, "/readyz-down", nil).Code)
}
