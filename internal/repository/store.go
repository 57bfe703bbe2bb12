package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/meeting-room-reservation/internal/database"
	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// Tx is the set of store operations available inside one booking
// transaction.  Every method runs on the same *sql.Tx, so a check made
// through FindOverlapping and a write made through InsertReservation are
// indivisible with respect to other transactions that lock the same room.
type Tx interface {
	// LockRoom reads an active room and holds its row lock until the
	// transaction ends.  Missing or deactivated rooms yield ErrRoomNotFound.
	LockRoom(ctx context.Context, id uint64) (*model.Room, error)
	GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	FindOverlapping(ctx context.Context, roomID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error)
	InsertReservation(ctx context.Context, res *model.Reservation) error
	UpdateReservation(ctx context.Context, res *model.Reservation) error
	DeleteReservation(ctx context.Context, id uint64) error
	CountLiveReservations(ctx context.Context, roomID uint64, now time.Time) (int, error)
	SetRoomStatus(ctx context.Context, roomID uint64, status model.RoomStatus) error
}

// Store opens booking transactions against MySQL.
type Store struct {
	db   *sql.DB
	opts database.TxOptions
}

// NewStore returns a Store whose transactions use read-committed isolation
// and the given timeout.
func NewStore(db *sql.DB, timeout time.Duration) *Store {
	opts := database.ReadCommitted
	if timeout > 0 {
		opts.Timeout = timeout
	}
	return &Store{db: db, opts: opts}
}

// InTx runs fn inside one transaction; see database.WithTx for the commit
// and rollback rules.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.WithTx(ctx, s.db, s.opts, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, sqlTx{tx: tx})
	})
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) LockRoom(ctx context.Context, id uint64) (*model.Room, error) {
	return getRoom(ctx, t.tx, id, true)
}

func (t sqlTx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, t.tx, id, true)
}

func (t sqlTx) FindOverlapping(ctx context.Context, roomID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	return findOverlapping(ctx, t.tx, roomID, start, end, excludeID)
}

func (t sqlTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	return insertReservation(ctx, t.tx, res)
}

func (t sqlTx) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	return updateReservation(ctx, t.tx, res)
}

func (t sqlTx) DeleteReservation(ctx context.Context, id uint64) error {
	return deleteReservation(ctx, t.tx, id)
}

func (t sqlTx) CountLiveReservations(ctx context.Context, roomID uint64, now time.Time) (int, error) {
	return countLive(ctx, t.tx, roomID, now)
}

func (t sqlTx) SetRoomStatus(ctx context.Context, roomID uint64, status model.RoomStatus) error {
	_, err := setRoomStatus(ctx, t.tx, roomID, status)
	return err
}
