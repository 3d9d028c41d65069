package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TokenPair is the credential set issued for a session.
type TokenPair struct {
	SessionID    string
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// SessionRepository stores sessions and their tokens.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create starts a session for p.UserID and stores its first token pair.
func (r *SessionRepository) Create(ctx context.Context, p TokenPair, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (id, user_id, created_at) VALUES (?, ?, ?)`,
		p.SessionID, p.UserID, formatTime(now))
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if err := insertTokens(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTokens(ctx context.Context, tx *sql.Tx, p TokenPair) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tokens (token, kind, session_id, expires_at) VALUES (?, 'access', ?, ?), (?, 'refresh', ?, NULL)
	`, p.AccessToken, p.SessionID, formatTime(p.ExpiresAt), p.RefreshToken, p.SessionID)
	if err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// Authenticate resolves a live access token to its user and session.
// Expired tokens and tokens of revoked sessions return ErrNotFound.
func (r *SessionRepository) Authenticate(ctx context.Context, accessToken string, now time.Time) (userID, sessionID string, err error) {
	var expires string
	err = r.db.QueryRowContext(ctx, `
		SELECT s.user_id, s.id, t.expires_at
		FROM tokens t JOIN sessions s ON s.id = t.session_id
		WHERE t.token = ? AND t.kind = 'access' AND s.revoked = 0
	`, accessToken).Scan(&userID, &sessionID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to authenticate token: %w", err)
	}
	exp, err := parseTime(expires)
	if err != nil {
		return "", "", err
	}
	if !now.Before(exp) {
		return "", "", ErrNotFound
	}
	return userID, sessionID, nil
}

// Rotate exchanges an unused refresh token for next, which must carry fresh
// token values. The old refresh token is marked used.
func (r *SessionRepository) Rotate(ctx context.Context, refreshToken string, next TokenPair) (TokenPair, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	err = tx.QueryRowContext(ctx, `
		SELECT s.id, s.user_id
		FROM tokens t JOIN sessions s ON s.id = t.session_id
		WHERE t.token = ? AND t.kind = 'refresh' AND t.used = 0 AND s.revoked = 0
	`, refreshToken).Scan(&next.SessionID, &next.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenPair{}, ErrNotFound
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tokens SET used = 1 WHERE token = ?`, refreshToken); err != nil {
		return TokenPair{}, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if err := insertTokens(ctx, tx, next); err != nil {
		return TokenPair{}, err
	}
	if err := tx.Commit(); err != nil {
		return TokenPair{}, fmt.Errorf("failed to commit rotation: %w", err)
	}
	return next, nil
}

// Revoke ends one session.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked = 1 WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeUser ends every session of a user and returns how many were live.
func (r *SessionRepository) RevokeUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked = 1 WHERE user_id = ? AND revoked = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
