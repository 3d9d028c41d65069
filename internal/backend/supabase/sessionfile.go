package supabase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"projectdesk/internal/service"
)

// sessionUser is the part of the GoTrue user the client keeps.
type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// storedSession is the content of session.json.
type storedSession struct {
	User  sessionUser   `json:"user"`
	Token *oauth2.Token `json:"token"`
}

func (s *storedSession) session() *service.Session {
	return &service.Session{
		UserID:           s.User.ID,
		Email:            s.User.Email,
		CredentialsValid: s.Token != nil && s.Token.RefreshToken != "",
	}
}

// tokenResponse is GoTrue's session body.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         sessionUser `json:"user"`
}

func (r *tokenResponse) stored() *storedSession {
	expiry := time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	if r.ExpiresAt > 0 {
		expiry = time.Unix(r.ExpiresAt, 0)
	}
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &storedSession{
		User: r.User,
		Token: &oauth2.Token{
			AccessToken:  r.AccessToken,
			TokenType:    tokenType,
			RefreshToken: r.RefreshToken,
			Expiry:       expiry,
		},
	}
}

// loadSession reads path. A missing file yields nil, nil.
func loadSession(path string) (*storedSession, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	var s storedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	if s.User.ID == "" || s.Token == nil || s.Token.AccessToken == "" {
		return nil, fmt.Errorf("invalid %s: missing user or token", filepath.Base(path))
	}
	return &s, nil
}

// saveSession writes s to path with mode 0600, replacing the file atomically
// so readers in other processes never see a partial session.
func saveSession(path string, s *storedSession) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeSession(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
