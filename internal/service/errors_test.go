package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{repository.ErrRoomNotFound, ErrNotFound},
		{fmt.Errorf("lock: %w", repository.ErrReservationNotFound), ErrNotFound},
		{repository.ErrUserNotFound, ErrNotFound},
		{repository.ErrDuplicate, ErrConflict},
		{ErrForbidden, ErrForbidden},
		{errors.Join(ErrConflict, errors.New("rollback: bad conn")), ErrConflict},
		{context.DeadlineExceeded, ErrStoreFailure},
		{errors.New("commit tx: driver: bad connection"), ErrStoreFailure},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, classify(tc.in), tc.want, "%v", tc.in)
	}
	assert.NoError(t, classify(nil))
	assert.Equal(t, "room not found", classify(repository.ErrRoomNotFound).Error())
}
