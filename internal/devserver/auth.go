package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"projectdesk/internal/logging"
	"projectdesk/internal/notify"
	"projectdesk/internal/sqlite"
)

const (
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"

	minPasswordLength = 6
)

type credentialsRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

type userBody struct {
	ID          string     `json:"id"`
	Aud         string     `json:"aud"`
	Role        string     `json:"role"`
	Email       string     `json:"email"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newUserBody(u *sqlite.User) userBody {
	return userBody{
		ID:          u.ID,
		Aud:         "authenticated",
		Role:        "authenticated",
		Email:       u.Email,
		ConfirmedAt: u.ConfirmedAt,
		CreatedAt:   u.CreatedAt,
	}
}

type sessionBody struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         userBody `json:"user"`
}

// requireAPIKey rejects requests without the anon key.
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("apikey") != s.config.AnonKey {
			return errInvalidAPIKey
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate resolves the bearer token to a live session. The anon key
// resolves to no session.
func (s *Server) authenticate(c echo.Context) (bool, error) {
	token := bearerToken(c)
	if token == "" || token == s.config.AnonKey {
		return false, nil
	}
	userID, sessionID, err := s.sessions.Authenticate(c.Request().Context(), token, s.now())
	if errors.Is(err, sqlite.ErrNotFound) {
		return false, errBadJWT
	}
	if err != nil {
		return false, err
	}
	c.Set(ctxUserID, userID)
	c.Set(ctxSessionID, sessionID)
	return true, nil
}

// requireUser admits only requests carrying a live access token.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, err := s.authenticate(c)
		if err != nil {
			return err
		}
		if !ok {
			return errBadJWT
		}
		return next(c)
	}
}

func callerID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

// handleToken serves the password and refresh_token grants.
func (s *Server) handleToken(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return newAuthError(http.StatusBadRequest, "validation_failed", "invalid request body")
	}

	switch grant := c.QueryParam("grant_type"); grant {
	case "password":
		return s.passwordGrant(c, req)
	case "refresh_token":
		return s.refreshGrant(c, req)
	default:
		return newAuthError(http.StatusBadRequest, "unsupported_grant_type", "unsupported grant type: "+grant)
	}
}

func (s *Server) passwordGrant(c echo.Context, req credentialsRequest) error {
	ctx := c.Request().Context()
	logger := logging.FromContext(ctx)

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, sqlite.ErrNotFound) {
		s.metrics.authOutcome("password", "invalid_credentials")
		return newAuthError(http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.metrics.authOutcome("password", "invalid_credentials")
		logger.Debug("password mismatch", zap.String("user_id", user.ID))
		return newAuthError(http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
	}
	if user.ConfirmedAt == nil {
		s.metrics.authOutcome("password", "email_not_confirmed")
		return newAuthError(http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
	}

	body, err := s.issueSession(c, user)
	if err != nil {
		return err
	}
	s.metrics.authOutcome("password", "ok")
	return c.JSON(http.StatusOK, body)
}

func (s *Server) refreshGrant(c echo.Context, req credentialsRequest) error {
	ctx := c.Request().Context()

	access, refresh, err := newTokens()
	if err != nil {
		return err
	}
	pair, err := s.sessions.Rotate(ctx, req.RefreshToken, sqlite.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(s.config.AccessTokenTTL),
	})
	if errors.Is(err, sqlite.ErrNotFound) {
		s.metrics.authOutcome("refresh", "rejected")
		return newAuthError(http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
	}
	if err != nil {
		return err
	}

	user, err := s.users.Get(ctx, pair.UserID)
	if err != nil {
		return err
	}
	s.metrics.authOutcome("refresh", "ok")
	return c.JSON(http.StatusOK, s.sessionBody(pair, user))
}

// handleSignUp registers a user. With autoconfirm the response is a
// session; otherwise it is the unconfirmed user.
func (s *Server) handleSignUp(c echo.Context) error {
	ctx := c.Request().Context()

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return newAuthError(http.StatusBadRequest, "validation_failed", "invalid request body")
	}
	email := strings.TrimSpace(req.Email)
	if !strings.Contains(email, "@") {
		s.metrics.authOutcome("signup", "invalid")
		return newAuthError(http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
	}
	if len(req.Password) < minPasswordLength {
		s.metrics.authOutcome("signup", "invalid")
		return newAuthError(http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.PasswordCost)
	if err != nil {
		return err
	}
	now := s.now()
	user := &sqlite.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if s.config.Autoconfirm {
		user.ConfirmedAt = &now
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sqlite.ErrDuplicate) {
			s.metrics.authOutcome("signup", "duplicate")
			return newAuthError(http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		}
		return err
	}
	logging.FromContext(ctx).Info("user registered",
		zap.String("user_id", user.ID),
		zap.Bool("confirmed", user.ConfirmedAt != nil),
		logging.Redacted("password", req.Password),
	)

	if !s.config.Autoconfirm {
		s.metrics.authOutcome("signup", "pending")
		return c.JSON(http.StatusOK, newUserBody(user))
	}
	body, err := s.issueSession(c, user)
	if err != nil {
		return err
	}
	s.metrics.authOutcome("signup", "ok")
	return c.JSON(http.StatusOK, body)
}

// handleLogout revokes the caller's session, or every session of the
// caller with scope=global. Global sign-outs are announced on the relay.
func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	userID := callerID(c)
	sessionID, _ := c.Get(ctxSessionID).(string)

	scope := c.QueryParam("scope")
	switch scope {
	case "", "local":
		if err := s.sessions.Revoke(ctx, sessionID); err != nil {
			return err
		}
	case "global":
		n, err := s.sessions.RevokeUser(ctx, userID)
		if err != nil {
			return err
		}
		logging.FromContext(ctx).Info("revoked sessions", zap.String("user_id", userID), zap.Int64("count", n))
		rev := notify.Revocation{UserID: userID, Scope: scope, At: s.now()}
		if err := s.relay.PublishRevocation(ctx, rev); err != nil {
			logging.FromContext(ctx).Warn("failed to announce revocation", zap.Error(err))
		}
	default:
		return newAuthError(http.StatusBadRequest, "validation_failed", "unsupported scope: "+scope)
	}
	s.metrics.authOutcome("logout", "ok")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUser(c echo.Context) error {
	user, err := s.users.Get(c.Request().Context(), callerID(c))
	if errors.Is(err, sqlite.ErrNotFound) {
		return newAuthError(http.StatusNotFound, "user_not_found", "User not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserBody(user))
}

// issueSession starts a session for user and returns its body.
func (s *Server) issueSession(c echo.Context, user *sqlite.User) (sessionBody, error) {
	access, refresh, err := newTokens()
	if err != nil {
		return sessionBody{}, err
	}
	now := s.now()
	pair := sqlite.TokenPair{
		SessionID:    uuid.NewString(),
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.config.AccessTokenTTL),
	}
	if err := s.sessions.Create(c.Request().Context(), pair, now); err != nil {
		return sessionBody{}, err
	}
	return s.sessionBody(pair, user), nil
}

func (s *Server) sessionBody(pair sqlite.TokenPair, user *sqlite.User) sessionBody {
	return sessionBody{
		AccessToken:  pair.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.config.AccessTokenTTL / time.Second),
		ExpiresAt:    pair.ExpiresAt.Unix(),
		RefreshToken: pair.RefreshToken,
		User:         newUserBody(user),
	}
}

// newTokens returns a fresh access and refresh token.
func newTokens() (access, refresh string, err error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(buf[:32]), hex.EncodeToString(buf[32:]), nil
}
