package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func insertUser(t *testing.T, db *DB, id, email string) {
	t.Helper()
	err := NewUserRepository(db).Create(context.Background(), &User{
		ID: id, Email: email, PasswordHash: "hash", CreatedAt: testNow,
	})
	require.NoError(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.RunMigrations())

	for _, table := range []string{"users", "sessions", "tokens", "projects"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestUserRepository(t *testing.T) {
	db := NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	insertUser(t, db, "u1", "Ada@example.com")

	u, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Nil(t, u.ConfirmedAt)
	assert.True(t, testNow.Equal(u.CreatedAt))

	err = repo.Create(ctx, &User{ID: "u2", Email: "ADA@example.com", PasswordHash: "x", CreatedAt: testNow})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, repo.Confirm(ctx, "u1", testNow))
	u, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.ConfirmedAt)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Confirm(ctx, "missing", testNow), ErrNotFound)
}

func TestSessionRepository(t *testing.T) {
	db := NewTestDB(t)
	insertUser(t, db, "u1", "a@example.com")
	repo := NewSessionRepository(db)
	ctx := context.Background()

	pair := TokenPair{SessionID: "s1", UserID: "u1", AccessToken: "a1", RefreshToken: "r1", ExpiresAt: testNow.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, pair, testNow))

	uid, sid, err := repo.Authenticate(ctx, "a1", testNow)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	assert.Equal(t, "s1", sid)

	_, _, err = repo.Authenticate(ctx, "a1", testNow.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound, "expired token")
	_, _, err = repo.Authenticate(ctx, "r1", testNow)
	assert.ErrorIs(t, err, ErrNotFound, "refresh token is not an access token")

	next, err := repo.Rotate(ctx, "r1", TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: testNow.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "s1", next.SessionID)
	assert.Equal(t, "u1", next.UserID)

	_, err = repo.Rotate(ctx, "r1", TokenPair{AccessToken: "a3", RefreshToken: "r3", ExpiresAt: testNow})
	assert.ErrorIs(t, err, ErrNotFound, "refresh tokens are single use")

	require.NoError(t, repo.Create(ctx, TokenPair{SessionID: "s2", UserID: "u1", AccessToken: "b1", RefreshToken: "q1", ExpiresAt: testNow.Add(time.Hour)}, testNow))
	require.NoError(t, repo.Revoke(ctx, "s1"))
	_, _, err = repo.Authenticate(ctx, "a2", testNow)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = repo.Authenticate(ctx, "b1", testNow)
	assert.NoError(t, err)

	n, err := repo.RevokeUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.Rotate(ctx, "q1", TokenPair{AccessToken: "b2", RefreshToken: "q2", ExpiresAt: testNow})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionForUnknownUser(t *testing.T) {
	db := NewTestDB(t)
	err := NewSessionRepository(db).Create(context.Background(),
		TokenPair{SessionID: "s1", UserID: "ghost", AccessToken: "a", RefreshToken: "r", ExpiresAt: testNow}, testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}
