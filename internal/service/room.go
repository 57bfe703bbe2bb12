package service

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

const (
	maxRoomNameLen    = 50
	maxLocationLen    = 100
	maxDescriptionLen = 255
	maxPageLimit      = 100
	defaultPageLimit  = 10
)

var roomNamePattern = regexp.MustCompile(`^[\p{L}0-9 _-]+$`)

// RoomCatalog is the room persistence used by RoomService.
// *repository.RoomRepo implements it.
type RoomCatalog interface {
	Create(ctx context.Context, rm *model.Room) error
	GetByID(ctx context.Context, id uint64) (*model.Room, error)
	ExistsByName(ctx context.Context, name string, excludeID uint64) (bool, error)
	ListActive(ctx context.Context, f repository.RoomFilter, page, limit int) ([]model.Room, int64, error)
	Update(ctx context.Context, rm *model.Room) error
	SetStatus(ctx context.Context, id uint64, status model.RoomStatus) error
	Deactivate(ctx context.Context, id uint64) error
	FindAvailable(ctx context.Context, start, end time.Time, minCapacity *int) ([]model.Room, error)
}

// CreateRoomInput describes a new room.
type CreateRoomInput struct {
	Name        string
	Capacity    int
	Location    string
	Description *string
}

// UpdateRoomInput is a partial room update; nil fields are unchanged.
type UpdateRoomInput struct {
	Name        *string
	Capacity    *int
	Location    *string
	Description *string
}

// RoomListQuery selects one page of the catalog.  Zero Page and Limit
// take the defaults 1 and 10.
type RoomListQuery struct {
	Status *model.RoomStatus
	Page   int
	Limit  int
}

// PageMeta describes a paginated result.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// RoomPage is one page of rooms.
type RoomPage struct {
	Items []model.Room `json:"items"`
	Meta  PageMeta     `json:"meta"`
}

// RoomService administers the room catalog and answers availability
// queries.
type RoomService struct {
	rooms RoomCatalog
	log   *zap.Logger
}

func NewRoomService(rooms RoomCatalog, log *zap.Logger) *RoomService {
	if rooms == nil {
		panic("nil RoomCatalog passed to NewRoomService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomService{rooms: rooms, log: log}
}

// Create adds a room in status AVAILABLE.
func (s *RoomService) Create(ctx context.Context, in CreateRoomInput) (*model.Room, error) {
	rm := &model.Room{
		Name:        strings.TrimSpace(in.Name),
		Capacity:    in.Capacity,
		Location:    strings.TrimSpace(in.Location),
		Description: in.Description,
	}
	if err := validateRoom(rm); err != nil {
		return nil, err
	}
	taken, err := s.rooms.ExistsByName(ctx, rm.Name, 0)
	if err != nil {
		return nil, storeFailure(err)
	}
	if taken {
		return nil, ErrConflict
	}
	if err := s.rooms.Create(ctx, rm); err != nil {
		return nil, classify(err)
	}
	s.log.Info("room created", zap.Uint64("room_id", rm.ID), zap.String("name", rm.Name))
	return rm, nil
}

// Get returns an active room.
func (s *RoomService) Get(ctx context.Context, id uint64) (*model.Room, error) {
	rm, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return rm, nil
}

// List returns one page of active rooms ordered by ID.
func (s *RoomService) List(ctx context.Context, q RoomListQuery) (*RoomPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = defaultPageLimit
	}
	if q.Page < 1 {
		return nil, invalidInput("page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > maxPageLimit {
		return nil, invalidInput("limit must be between 1 and 100")
	}
	items, total, err := s.rooms.ListActive(ctx, repository.RoomFilter{Status: q.Status}, q.Page, q.Limit)
	if err != nil {
		return nil, storeFailure(err)
	}
	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &RoomPage{
		Items: items,
		Meta:  PageMeta{Total: total, Page: q.Page, Limit: q.Limit, TotalPages: pages},
	}, nil
}

// Update changes the descriptive fields of a room.  A rename is checked
// against the other rooms' names.
func (s *RoomService) Update(ctx context.Context, id uint64, in UpdateRoomInput) (*model.Room, error) {
	rm, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	renamed := false
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		renamed = name != rm.Name
		rm.Name = name
	}
	if in.Capacity != nil {
		rm.Capacity = *in.Capacity
	}
	if in.Location != nil {
		rm.Location = strings.TrimSpace(*in.Location)
	}
	if in.Description != nil {
		if *in.Description == "" {
			rm.Description = nil
		} else {
			d := *in.Description
			rm.Description = &d
		}
	}
	if err := validateRoom(rm); err != nil {
		return nil, err
	}
	if renamed {
		taken, err := s.rooms.ExistsByName(ctx, rm.Name, rm.ID)
		if err != nil {
			return nil, storeFailure(err)
		}
		if taken {
			return nil, ErrConflict
		}
	}
	if err := s.rooms.Update(ctx, rm); err != nil {
		return nil, classify(err)
	}
	return s.Get(ctx, id)
}

// UpdateStatus overrides a room's status.  This is the only way a room
// enters or leaves MAINTENANCE.
func (s *RoomService) UpdateStatus(ctx context.Context, id uint64, status model.RoomStatus) (*model.Room, error) {
	if _, ok := model.ParseRoomStatus(string(status)); !ok {
		return nil, invalidInput("unknown room status")
	}
	if err := s.rooms.SetStatus(ctx, id, status); err != nil {
		return nil, classify(err)
	}
	s.log.Info("room status set", zap.Uint64("room_id", id), zap.String("status", string(status)))
	return s.Get(ctx, id)
}

// Deactivate soft-deletes a room.
func (s *RoomService) Deactivate(ctx context.Context, id uint64) error {
	if err := s.rooms.Deactivate(ctx, id); err != nil {
		return classify(err)
	}
	s.log.Info("room deactivated", zap.Uint64("room_id", id))
	return nil
}

// FindAvailable returns active AVAILABLE rooms with no reservation
// overlapping [start, end) and, when minCapacity is set, at least that
// many seats.  Results are ordered by ID.
func (s *RoomService) FindAvailable(ctx context.Context, start, end time.Time, minCapacity *int) ([]model.Room, error) {
	start, end = storedTime(start), storedTime(end)
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}
	if minCapacity != nil && *minCapacity < 0 {
		return nil, ErrInvalidRange
	}
	rooms, err := s.rooms.FindAvailable(ctx, start, end, minCapacity)
	if err != nil {
		return nil, storeFailure(err)
	}
	return rooms, nil
}

func validateRoom(rm *model.Room) error {
	switch {
	case rm.Name == "":
		return invalidInput("name is required")
	case utf8.RuneCountInString(rm.Name) > maxRoomNameLen:
		return invalidInput("name must be at most 50 characters")
	case !roomNamePattern.MatchString(rm.Name):
		return invalidInput("name may contain only letters, digits, spaces, '_' and '-'")
	case rm.Capacity < 1:
		return invalidInput("capacity must be at least 1")
	case rm.Location == "":
		return invalidInput("location is required")
	case utf8.RuneCountInString(rm.Location) > maxLocationLen:
		return invalidInput("location must be at most 100 characters")
	case rm.Description != nil && utf8.RuneCountInString(*rm.Description) > maxDescriptionLen:
		return invalidInput("description must be at most 255 characters")
	}
	return nil
}
