package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

// ConflictChecker answers whether a proposed interval collides with an
// existing reservation of the same room.  It must be called with the same
// transaction that performs the subsequent write.
type ConflictChecker struct{}

// HasOverlap reports whether any reservation of roomID other than
// excludeID overlaps [start, end).  excludeID = 0 excludes nothing.
func (ConflictChecker) HasOverlap(ctx context.Context, tx repository.Tx, roomID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	clashes, err := tx.FindOverlapping(ctx, roomID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return len(clashes) > 0, nil
}

// storedTime converts t to the form MySQL DATETIME keeps: UTC, whole
// seconds.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// validateRange rejects empty or inverted intervals and intervals that have
// already ended at now.
func validateRange(start, end, now time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidRange)
	}
	if !end.After(now) {
		return fmt.Errorf("%w: end_time must be in the future", ErrInvalidRange)
	}
	return nil
}
