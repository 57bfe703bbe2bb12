// Package repository implements MySQL persistence for rooms, reservations,
// users and refresh tokens.  The sentinel values below let the service
// layer tell missing rows and uniqueness violations apart from genuine
// store failures.  For example, ErrRoomNotFound is returned both for rooms
// that never existed and for rooms that have been deactivated, because a
// soft-deleted room must be invisible to every read.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrRoomNotFound is returned when no active room matches the lookup.
var ErrRoomNotFound = errors.New("room not found")

// ErrReservationNotFound is returned when a reservation lookup fails.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicate is returned when an insert or update would violate a unique
// key (room name, username, email).
var ErrDuplicate = errors.New("duplicate entry")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// querier is satisfied by both *sql.DB and *sql.Tx so the same query code
// can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
