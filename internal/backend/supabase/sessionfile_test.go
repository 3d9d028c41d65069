package supabase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := loadSession(path)
	require.NoError(t, err)
	assert.Nil(t, s, "missing file is not an error")

	resp := tokenResponse{
		AccessToken:  "access",
		ExpiresIn:    3600,
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		RefreshToken: "refresh",
		User:         sessionUser{ID: "u1", Email: "a@example.com"},
	}
	stored := resp.stored()
	assert.Equal(t, "bearer", stored.Token.TokenType)
	require.NoError(t, saveSession(path, stored))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := loadSession(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.User.ID)
	assert.Equal(t, "refresh", got.Token.RefreshToken)
	assert.True(t, got.Token.Expiry.Equal(time.Unix(resp.ExpiresAt, 0)))

	sess := got.session()
	assert.Equal(t, "a@example.com", sess.Email)
	assert.True(t, sess.CredentialsValid)

	require.NoError(t, removeSession(path))
	require.NoError(t, removeSession(path), "removing twice is fine")
}

func TestLoadSessionRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err := loadSession(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"user":{"id":""},"token":null}`), 0600))
	_, err = loadSession(path)
	assert.Error(t, err)
}

func TestExpiresInWithoutExpiresAt(t *testing.T) {
	before := time.Now()
	stored := (&tokenResponse{AccessToken: "a", ExpiresIn: 60, TokenType: "Bearer"}).stored()
	assert.Equal(t, "Bearer", stored.Token.TokenType)
	assert.WithinDuration(t, before.Add(time.Minute), stored.Token.Expiry, 5*time.Second)
}
