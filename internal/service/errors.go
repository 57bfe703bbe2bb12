// Package service holds the reservation admission engine and the room and
// user services around it.  Every error returned from this package matches
// exactly one of the sentinels below under errors.Is; the HTTP layer maps
// them to status codes.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

var (
	// ErrInvalidRange is returned when start >= end or end is not in the
	// future.
	ErrInvalidRange = errors.New("invalid time range")
	// ErrConflict is returned when a booking overlaps an existing one or a
	// unique name is taken.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requester does not own the
	// reservation or the role policy denies an action.
	ErrForbidden    = errors.New("forbidden")
	ErrStoreFailure = errors.New("store failure")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

var domainErrors = []error{
	ErrInvalidRange, ErrConflict, ErrNotFound, ErrForbidden,
	ErrStoreFailure, ErrInvalidInput, ErrUnauthorized,
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// classify converts an error coming out of a repository or a transaction
// into one of the package sentinels.  Errors that already carry a sentinel
// pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return fmt.Errorf("room %w", ErrNotFound)
	case errors.Is(err, repository.ErrReservationNotFound):
		return fmt.Errorf("reservation %w", ErrNotFound)
	case errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("user %w", ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return storeFailure(err)
}
