package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

const reservationColumns = `id, title, description, start_time, end_time, user_id, room_id, created_at, updated_at`

// ReservationRepo stores reservations.  Read methods use the repository's
// DB handle; the write path used by the booking engine goes through Store
// so that the overlap check and the write share one transaction.  All
// timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

func scanReservation(s scanner) (*model.Reservation, error) {
	var (
		res  model.Reservation
		desc sql.NullString
	)
	if err := s.Scan(&res.ID, &res.Title, &desc, &res.StartTime, &res.EndTime, &res.UserID, &res.RoomID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Description = stringPtr(desc)
	return &res, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns a reservation or ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, r.db, id, false)
}

func getReservation(ctx context.Context, q querier, id uint64, forUpdate bool) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	res, err := scanReservation(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByUser returns the user's reservations, latest start first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ? ORDER BY start_time DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListAll returns every reservation, latest start first.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations ORDER BY start_time DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// findOverlapping returns reservations of roomID whose interval overlaps
// [start, end) under the half-open predicate.  excludeID = 0 excludes
// nothing.
func findOverlapping(ctx context.Context, q querier, roomID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations
                   WHERE room_id = ? AND start_time < ? AND end_time > ? AND id <> ?
                   ORDER BY start_time ASC`
	rows, err := q.QueryContext(ctx, query, roomID, end.UTC(), start.UTC(), excludeID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func insertReservation(ctx context.Context, q querier, res *model.Reservation) error {
	const stmt = `INSERT INTO reservations (title, description, start_time, end_time, user_id, room_id) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := q.ExecContext(ctx, stmt, res.Title, nullString(res.Description), res.StartTime.UTC(), res.EndTime.UTC(), res.UserID, res.RoomID)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps
	created, err := getReservation(ctx, q, uint64(id), false)
	if err != nil {
		return err
	}
	*res = *created
	return nil
}

func updateReservation(ctx context.Context, q querier, res *model.Reservation) error {
	const stmt = `UPDATE reservations
                  SET title = ?, description = ?, start_time = ?, end_time = ?, room_id = ?, updated_at = CURRENT_TIMESTAMP
                  WHERE id = ?`
	if _, err := q.ExecContext(ctx, stmt, res.Title, nullString(res.Description), res.StartTime.UTC(), res.EndTime.UTC(), res.RoomID, res.ID); err != nil {
		return err
	}
	updated, err := getReservation(ctx, q, res.ID, false)
	if err != nil {
		return err
	}
	*res = *updated
	return nil
}

func deleteReservation(ctx context.Context, q querier, id uint64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// countLive counts reservations of roomID that end after now.
func countLive(ctx context.Context, q querier, roomID uint64, now time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE room_id = ? AND end_time > ?`, roomID, now.UTC()).Scan(&n)
	return n, err
}
