package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

// LapsedRoomLister finds OCCUPIED rooms whose reservations have all ended.
type LapsedRoomLister interface {
	ListLapsedOccupied(ctx context.Context, now time.Time) ([]uint64, error)
}

// StatusSweeper returns rooms to AVAILABLE once their last reservation
// has ended.  Mutations already keep status current; the sweeper covers
// the passage of time between them.
type StatusSweeper struct {
	rooms    LapsedRoomLister
	tx       TxRunner
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
	onChange func(ctx context.Context)
}

// NewStatusSweeper returns a sweeper that runs every interval.
func NewStatusSweeper(rooms LapsedRoomLister, tx TxRunner, interval time.Duration, log *zap.Logger) *StatusSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatusSweeper{rooms: rooms, tx: tx, interval: interval, log: log, now: time.Now}
}

// OnChange registers fn to run after a sweep that changed at least one
// room, typically to drop cached room listings.  Call before Run.
func (s *StatusSweeper) OnChange(fn func(ctx context.Context)) {
	s.onChange = fn
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *StatusSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if n, err := s.SweepOnce(ctx); err != nil {
			s.log.Warn("status sweep failed", zap.Error(err))
		} else if n > 0 {
			s.log.Info("status sweep released rooms", zap.Int("rooms", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce recomputes the status of every lapsed room, each in its own
// transaction, and returns how many rooms changed.  A reservation
// admitted between the listing and the lock keeps its room OCCUPIED
// because the status is recomputed under the room lock.
func (s *StatusSweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.rooms.ListLapsedOccupied(ctx, now)
	if err != nil {
		return 0, storeFailure(err)
	}
	changed := 0
	var errs []error
	for _, id := range ids {
		flipped := false
		err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			room, err := tx.LockRoom(ctx, id)
			if err != nil {
				return err
			}
			before := room.Status
			if err := syncRoomStatus(ctx, tx, room, now); err != nil {
				return err
			}
			flipped = room.Status != before
			return nil
		})
		switch {
		case err == nil:
			if flipped {
				changed++
			}
		case !errors.Is(err, repository.ErrRoomNotFound):
			errs = append(errs, classify(err))
		}
	}
	if changed > 0 && s.onChange != nil {
		s.onChange(ctx)
	}
	return changed, errors.Join(errs...)
}
