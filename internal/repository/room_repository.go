package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

const roomColumns = `id, name, capacity, location, description, status, is_active, created_at, updated_at`

// RoomFilter narrows ListActive.  A nil Status lists every status.
type RoomFilter struct {
	Status *model.RoomStatus
}

// RoomRepo is the room catalog.  Every read filters on is_active = 1 so a
// deactivated room behaves as if it did not exist.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

func scanRoom(s scanner) (*model.Room, error) {
	var (
		rm     model.Room
		desc   sql.NullString
		status string
	)
	if err := s.Scan(&rm.ID, &rm.Name, &rm.Capacity, &rm.Location, &desc, &status, &rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		return nil, err
	}
	rm.Description = stringPtr(desc)
	rm.Status = model.RoomStatus(status)
	return &rm, nil
}

func collectRooms(rows *sql.Rows) ([]model.Room, error) {
	defer rows.Close()
	out := []model.Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a new room and reads the row back so that defaults
// (status, is_active, timestamps) are populated.  A name that is already
// taken yields ErrDuplicate.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
	const q = `INSERT INTO rooms (name, capacity, location, description) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rm.Name, rm.Capacity, rm.Location, nullString(rm.Description))
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanRoom(r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*rm = *created
	return nil
}

// GetByID returns an active room by ID or ErrRoomNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	return getRoom(ctx, r.db, id, false)
}

func getRoom(ctx context.Context, q querier, id uint64, forUpdate bool) (*model.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? AND is_active = 1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rm, err := scanRoom(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return rm, nil
}

// ExistsByName reports whether any room other than excludeID, deactivated
// ones included, already uses name.  The unique key on rooms.name spans
// all rows.  Pass excludeID = 0 when creating.
func (r *RoomRepo) ExistsByName(ctx context.Context, name string, excludeID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM rooms WHERE name = ? AND id <> ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, strings.TrimSpace(name), excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListActive returns one page of active rooms ordered by ID together with
// the total number of rows matching the filter.  page is 1-based.
func (r *RoomRepo) ListActive(ctx context.Context, f RoomFilter, page, limit int) ([]model.Room, int64, error) {
	where := `is_active = 1`
	args := []any{}
	if f.Status != nil {
		where += ` AND status = ?`
		args = append(args, string(*f.Status))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE ` + where + ` ORDER BY id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectRooms(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update writes name, capacity, location and description of an active
// room.  ErrDuplicate is returned when the new name is taken.
func (r *RoomRepo) Update(ctx context.Context, rm *model.Room) error {
	const q = `UPDATE rooms
               SET name = ?, capacity = ?, location = ?, description = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND is_active = 1`
	res, err := r.db.ExecContext(ctx, q, rm.Name, rm.Capacity, rm.Location, nullString(rm.Description), rm.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return r.requireAffected(ctx, res, rm.ID)
}

// SetStatus overrides the status of an active room.
func (r *RoomRepo) SetStatus(ctx context.Context, id uint64, status model.RoomStatus) error {
	res, err := setRoomStatus(ctx, r.db, id, status)
	if err != nil {
		return err
	}
	return r.requireAffected(ctx, res, id)
}

func setRoomStatus(ctx context.Context, q querier, id uint64, status model.RoomStatus) (sql.Result, error) {
	const stmt = `UPDATE rooms SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_active = 1`
	return q.ExecContext(ctx, stmt, string(status), id)
}

// Deactivate soft-deletes a room.  Its reservations are left untouched.
func (r *RoomRepo) Deactivate(ctx context.Context, id uint64) error {
	const q = `UPDATE rooms SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_active = 1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// requireAffected turns a zero-row UPDATE into ErrRoomNotFound.  MySQL
// reports zero affected rows when the new values equal the old ones, so a
// zero count is only an error when the room is actually missing.
func (r *RoomRepo) requireAffected(ctx context.Context, res sql.Result, id uint64) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err := r.GetByID(ctx, id)
	return err
}

// FindAvailable returns active AVAILABLE rooms with no reservation
// overlapping [start, end).  When minCapacity is non-nil only rooms seating
// at least that many are returned.  Results are ordered by ID.
func (r *RoomRepo) FindAvailable(ctx context.Context, start, end time.Time, minCapacity *int) ([]model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms r
          WHERE r.is_active = 1 AND r.status = ?`
	args := []any{string(model.RoomAvailable)}
	if minCapacity != nil {
		q += ` AND r.capacity >= ?`
		args = append(args, *minCapacity)
	}
	q += ` AND NOT EXISTS (
              SELECT 1 FROM reservations v
              WHERE v.room_id = r.id AND v.start_time < ? AND v.end_time > ?)
          ORDER BY r.id ASC`
	args = append(args, end.UTC(), start.UTC())

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectRooms(rows)
}

// ListLapsedOccupied returns the IDs of active OCCUPIED rooms that have no
// reservation ending after now.
func (r *RoomRepo) ListLapsedOccupied(ctx context.Context, now time.Time) ([]uint64, error) {
	const q = `SELECT r.id FROM rooms r
               WHERE r.is_active = 1 AND r.status = ?
                 AND NOT EXISTS (SELECT 1 FROM reservations v WHERE v.room_id = r.id AND v.end_time > ?)
               ORDER BY r.id ASC`
	rows, err := r.db.QueryContext(ctx, q, string(model.RoomOccupied), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
