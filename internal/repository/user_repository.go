package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

// UserRepo mirrors the 'users' table.  Password hashing happens in the
// service layer; the repository only stores the hash.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(s scanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Create inserts user and fills in its ID and timestamps.  A taken
// username or email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role) VALUES (?,?,?,?)",
		u.Username, u.Email, u.PasswordHash, string(u.Role))
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
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username=?", strings.TrimSpace(username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "id=?", id)
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateRole sets the role of a user.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", string(role), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Update saves the username, email and password hash of u.  A username
// or email taken by another user yields ErrDuplicate.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?, email=?, password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
		u.Username, u.Email, u.PasswordHash, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// ExistsWithRole reports whether at least one user holds role.
func (r *UserRepo) ExistsWithRole(ctx context.Context, role model.Role) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE role=?)", string(role)).Scan(&exists)
	return exists, err
}

// Delete removes a user; reservations and refresh tokens cascade.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
