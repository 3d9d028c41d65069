package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
}

// UserRepository stores users.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. Returns ErrDuplicate if the email is taken.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	var confirmed any
	if u.ConfirmedAt != nil {
		confirmed = formatTime(*u.ConfirmedAt)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, confirmed, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `WHERE email = ?`, email)
}

// Get looks a user up by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, `WHERE id = ?`, id)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*User, error) {
	var (
		u         User
		confirmed sql.NullString
		created   string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, confirmed_at, created_at
		FROM users `+where, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &confirmed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if confirmed.Valid {
		t, err := parseTime(confirmed.String)
		if err != nil {
			return nil, err
		}
		u.ConfirmedAt = &t
	}
	return &u, nil
}

// Confirm marks the user's email as confirmed.
func (r *UserRepository) Confirm(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET confirmed_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to confirm user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
