package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

// TxRunner opens a booking transaction.  *repository.Store implements it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// ReservationReader serves reservation reads outside a transaction.
type ReservationReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
}

// EventPublisher receives reservation events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// CreateReservationInput is a booking request.  Field syntax (title length
// and so on) is validated by the caller.
type CreateReservationInput struct {
	Title       string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
	RoomID      uint64
}

// UpdateReservationInput carries a partial update.  Nil fields are left
// unchanged.  A non-nil empty Description clears it.
type UpdateReservationInput struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	RoomID      *uint64
}

func (in UpdateReservationInput) temporal() bool {
	return in.StartTime != nil || in.EndTime != nil || in.RoomID != nil
}

// ReservationService is the admission engine.  It decides, under
// concurrent requests, whether a booking may be admitted without two
// reservations of one room overlapping, and keeps room status in step
// with the live reservations.
type ReservationService struct {
	tx        TxRunner
	reader    ReservationReader
	conflicts ConflictChecker
	events    EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

// ReservationOption customizes a ReservationService.
type ReservationOption func(*ReservationService)

// WithEventPublisher publishes lifecycle events after each commit.
func WithEventPublisher(p EventPublisher) ReservationOption {
	return func(s *ReservationService) { s.events = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ReservationOption {
	return func(s *ReservationService) { s.now = now }
}

// NewReservationService wires the engine.  tx and reader are required.
func NewReservationService(tx TxRunner, reader ReservationReader, log *zap.Logger, opts ...ReservationOption) *ReservationService {
	if tx == nil || reader == nil {
		panic("nil dependency passed to NewReservationService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &ReservationService{tx: tx, reader: reader, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create admits a new reservation for requesterID.  Validation failures
// never open a transaction.  The room row lock, the overlap check, the
// insert and the room status update commit or roll back together.
func (s *ReservationService) Create(ctx context.Context, in CreateReservationInput, requesterID uint64) (*model.Reservation, error) {
	now := s.now()
	start, end := storedTime(in.StartTime), storedTime(in.EndTime)
	if err := validateRange(start, end, now); err != nil {
		return nil, err
	}
	res := &model.Reservation{
		Title:       in.Title,
		Description: in.Description,
		StartTime:   start,
		EndTime:     end,
		UserID:      requesterID,
		RoomID:      in.RoomID,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		room, err := tx.LockRoom(ctx, in.RoomID)
		if err != nil {
			return err
		}
		clash, err := s.conflicts.HasOverlap(ctx, tx, room.ID, res.StartTime, res.EndTime, 0)
		if err != nil {
			return err
		}
		if clash {
			return ErrConflict
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		return syncRoomStatus(ctx, tx, room, now)
	})
	if err != nil {
		err = classify(err)
		s.logRejected("create", 0, in.RoomID, requesterID, err)
		return nil, err
	}

	s.log.Info("reservation admitted",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("room_id", res.RoomID),
		zap.Uint64("user_id", requesterID))
	s.publish(ctx, queue.EventReservationCreated, res, now)
	return res, nil
}

// Update applies changes to a reservation owned by requesterID.  Existence
// and ownership are checked before anything else.  When the
// start, end or room changes, the effective interval is revalidated and
// checked for overlaps excluding the reservation itself; both the old and
// the new room are locked in ascending ID order and resynchronized.
func (s *ReservationService) Update(ctx context.Context, id uint64, in UpdateReservationInput, requesterID uint64) (*model.Reservation, error) {
	now := s.now()
	var updated *model.Reservation
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.UserID != requesterID {
			return ErrForbidden
		}

		next := *cur
		if in.Title != nil {
			next.Title = *in.Title
		}
		if in.Description != nil {
			if *in.Description == "" {
				next.Description = nil
			} else {
				d := *in.Description
				next.Description = &d
			}
		}
		if !in.temporal() {
			if err := tx.UpdateReservation(ctx, &next); err != nil {
				return err
			}
			updated = &next
			return nil
		}

		if in.StartTime != nil {
			next.StartTime = storedTime(*in.StartTime)
		}
		if in.EndTime != nil {
			next.EndTime = storedTime(*in.EndTime)
		}
		if in.RoomID != nil {
			next.RoomID = *in.RoomID
		}
		if err := validateRange(next.StartTime, next.EndTime, now); err != nil {
			return err
		}

		rooms, err := lockRooms(ctx, tx, cur.RoomID, next.RoomID)
		if err != nil {
			return err
		}
		clash, err := s.conflicts.HasOverlap(ctx, tx, next.RoomID, next.StartTime, next.EndTime, cur.ID)
		if err != nil {
			return err
		}
		if clash {
			return ErrConflict
		}
		if err := tx.UpdateReservation(ctx, &next); err != nil {
			return err
		}
		for _, room := range rooms {
			if err := syncRoomStatus(ctx, tx, room, now); err != nil {
				return err
			}
		}
		updated = &next
		return nil
	})
	if err != nil {
		err = classify(err)
		s.logRejected("update", id, 0, requesterID, err)
		return nil, err
	}

	s.log.Info("reservation updated",
		zap.Uint64("reservation_id", updated.ID),
		zap.Uint64("room_id", updated.RoomID),
		zap.Uint64("user_id", requesterID))
	s.publish(ctx, queue.EventReservationUpdated, updated, now)
	return updated, nil
}

// Remove cancels a reservation owned by requesterID and resynchronizes the
// room status in the same transaction.
func (s *ReservationService) Remove(ctx context.Context, id, requesterID uint64) error {
	now := s.now()
	var removed *model.Reservation
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.UserID != requesterID {
			return ErrForbidden
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		removed = cur
		room, err := tx.LockRoom(ctx, cur.RoomID)
		if errors.Is(err, repository.ErrRoomNotFound) {
			// deactivated rooms keep whatever status they had
			return nil
		}
		if err != nil {
			return err
		}
		return syncRoomStatus(ctx, tx, room, now)
	})
	if err != nil {
		err = classify(err)
		s.logRejected("cancel", id, 0, requesterID, err)
		return err
	}

	s.log.Info("reservation cancelled",
		zap.Uint64("reservation_id", id),
		zap.Uint64("room_id", removed.RoomID),
		zap.Uint64("user_id", requesterID))
	s.publish(ctx, queue.EventReservationCancelled, removed, now)
	return nil
}

// Get returns one reservation.
func (s *ReservationService) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := s.reader.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// ListByUser returns the reservations of userID, newest start first.
func (s *ReservationService) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	list, err := s.reader.ListByUser(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}

// ListAll returns every reservation, newest start first.
func (s *ReservationService) ListAll(ctx context.Context) ([]model.Reservation, error) {
	list, err := s.reader.ListAll(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}

// lockRooms locks source and target in ascending ID order so two
// transactions moving reservations between the same rooms cannot
// deadlock.  The target must exist; a missing source room is skipped.
func lockRooms(ctx context.Context, tx repository.Tx, source, target uint64) ([]*model.Room, error) {
	ids := []uint64{source}
	if target != source {
		ids = append(ids, target)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rooms := make([]*model.Room, 0, len(ids))
	for _, id := range ids {
		room, err := tx.LockRoom(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) && id != target {
				continue
			}
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// syncRoomStatus sets room to OCCUPIED when it has a reservation ending
// after now and to AVAILABLE otherwise.  MAINTENANCE is left alone.
func syncRoomStatus(ctx context.Context, tx repository.Tx, room *model.Room, now time.Time) error {
	if room.Status == model.RoomMaintenance {
		return nil
	}
	live, err := tx.CountLiveReservations(ctx, room.ID, now)
	if err != nil {
		return err
	}
	want := model.RoomAvailable
	if live > 0 {
		want = model.RoomOccupied
	}
	if want == room.Status {
		return nil
	}
	if err := tx.SetRoomStatus(ctx, room.ID, want); err != nil {
		return err
	}
	room.Status = want
	return nil
}

func (s *ReservationService) publish(ctx context.Context, t queue.EventType, res *model.Reservation, now time.Time) {
	if s.events == nil {
		return
	}
	ev := queue.NewReservationEvent(t, res, now)
	if err := s.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("publish reservation event failed",
			zap.String("event_type", string(t)),
			zap.Uint64("reservation_id", res.ID),
			zap.Error(err))
	}
}

func (s *ReservationService) logRejected(op string, id, roomID, userID uint64, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Uint64("user_id", userID),
		zap.Error(err),
	}
	if id != 0 {
		fields = append(fields, zap.Uint64("reservation_id", id))
	}
	if roomID != 0 {
		fields = append(fields, zap.Uint64("room_id", roomID))
	}
	if errors.Is(err, ErrStoreFailure) {
		s.log.Error("reservation rejected", fields...)
		return
	}
	s.log.Info("reservation rejected", fields...)
}
