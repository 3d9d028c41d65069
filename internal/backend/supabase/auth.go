package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"projectdesk/internal/notify"
	"projectdesk/internal/service"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpResponse is either a session (autoconfirm) or a bare user
// (confirmation pending).
type signUpResponse struct {
	tokenResponse
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CurrentSession implements service.Service. It restores the persisted
// session on first use and refreshes the access token if it has expired.
func (c *Client) CurrentSession(ctx context.Context) (*service.Session, error) {
	c.mu.Lock()
	if c.current != nil {
		sess := c.current.session()
		c.mu.Unlock()
		return sess, nil
	}
	c.mu.Unlock()

	stored, err := loadSession(c.sessionPath)
	if err != nil {
		c.logger.Warn("discarding unreadable session", zap.Error(err))
		if rmErr := removeSession(c.sessionPath); rmErr != nil {
			c.logger.Warn("failed to remove session file", zap.Error(rmErr))
		}
		return nil, nil
	}
	if stored == nil {
		return nil, nil
	}

	c.mu.Lock()
	gen := c.installLocked(stored)
	c.mu.Unlock()
	c.watchRevocations(stored.User.ID, gen)

	if _, err := c.accessToken(); err != nil {
		if service.IsTransient(err) {
			return nil, err
		}
		// The refresh token was rejected and the session already cleared.
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, nil
	}
	return c.current.session(), nil
}

// SignInWithPassword implements service.Service.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	var resp tokenResponse
	_, err := c.doRequest(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=password",
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return wrapAuthError("sign in", err)
	}
	if resp.AccessToken == "" {
		return service.NewAuthError("sign in", service.AuthUnknown, "response carried no session")
	}
	return c.establish(&resp, service.SignedIn)
}

// SignUp implements service.Service.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	var resp signUpResponse
	_, err := c.doRequest(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return wrapAuthError("sign up", err)
	}
	if resp.AccessToken == "" {
		c.logger.Debug("sign up pending confirmation", zap.String("user_id", resp.ID))
		return nil
	}
	return c.establish(&resp.tokenResponse, service.SignedIn)
}

// SignOut implements service.Service. The local session is dropped unless
// the store could not be reached; a session the store no longer knows is
// still dropped locally.
func (c *Client) SignOut(ctx context.Context, scope service.SignOutScope) error {
	c.mu.Lock()
	has := c.current != nil
	c.mu.Unlock()

	if has {
		_, err := c.doRequest(ctx, request{
			method: http.MethodPost,
			path:   "/auth/v1/logout?scope=" + url.QueryEscape(string(scope)),
			auth:   true,
		}, nil)
		if err != nil {
			err = wrapAuthError("sign out", err)
			if service.IsTransient(err) {
				return err
			}
			c.logger.Debug("store rejected sign out, clearing locally", zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked(true)
	c.feed.Publish(service.AuthEvent{Kind: service.SignedOut})
	return nil
}

// establish installs a fresh session, persists it and announces it.
func (c *Client) establish(resp *tokenResponse, kind service.AuthEventKind) error {
	stored := resp.stored()

	c.mu.Lock()
	gen := c.installLocked(stored)
	if err := saveSession(c.sessionPath, stored); err != nil {
		c.logger.Warn("failed to persist session", zap.Error(err))
	}
	c.feed.Publish(service.AuthEvent{Kind: kind, Session: stored.session()})
	c.mu.Unlock()

	c.watchRevocations(stored.User.ID, gen)
	return nil
}

// installLocked makes stored the live session and returns its generation.
func (c *Client) installLocked(stored *storedSession) uint64 {
	c.cancelRevocationsLocked()
	c.gen++
	c.current = stored
	src := &refreshSource{c: c, gen: c.gen, refreshToken: stored.Token.RefreshToken}
	c.tokens = oauth2.ReuseTokenSource(stored.Token, src)
	return c.gen
}

// clearLocked drops the live session. removeFile also deletes session.json.
// It reports whether a session was live.
func (c *Client) clearLocked(removeFile bool) bool {
	had := c.current != nil
	c.cancelRevocationsLocked()
	c.gen++
	c.current = nil
	c.tokens = nil
	if removeFile {
		if err := removeSession(c.sessionPath); err != nil {
			c.logger.Warn("failed to remove session file", zap.Error(err))
		}
	}
	return had
}

// accessToken returns a valid access token, refreshing it if needed.
func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	ts := c.tokens
	c.mu.Unlock()
	if ts == nil {
		return "", &service.AuthError{Op: "authorize", Kind: service.AuthNotAuthenticated}
	}
	tok, err := ts.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// refreshSource exchanges the refresh token for a new session. It is
// wrapped in oauth2.ReuseTokenSource, which calls it only once the cached
// access token has expired.
type refreshSource struct {
	c   *Client
	gen uint64

	mu           sync.Mutex
	refreshToken string
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.c
	ctx, cancel := context.WithTimeout(c.lifetime, c.timeout)
	defer cancel()

	var resp tokenResponse
	_, err := c.doRequest(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=refresh_token",
		body:   map[string]string{"refresh_token": s.refreshToken},
	}, &resp)
	if err != nil {
		err = wrapAuthError("refresh session", err)
		if service.IsTransient(err) {
			return nil, err
		}
		c.logger.Debug("refresh rejected, signing out", zap.Error(err))
		c.expire(s.gen)
		return nil, &service.AuthError{Op: "refresh session", Kind: service.AuthSessionExpired, Err: err}
	}

	stored := resp.stored()
	s.refreshToken = stored.Token.RefreshToken

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != s.gen {
		return nil, &service.AuthError{Op: "refresh session", Kind: service.AuthNotAuthenticated, Err: fmt.Errorf("session replaced during refresh")}
	}
	c.current = stored
	if err := saveSession(c.sessionPath, stored); err != nil {
		c.logger.Warn("failed to persist refreshed session", zap.Error(err))
	}
	c.feed.Publish(service.AuthEvent{Kind: service.TokenRefreshed, Session: stored.session()})
	return stored.Token, nil
}

// expire drops the session of generation gen after its refresh token was rejected.
func (c *Client) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.clearLocked(true)
	c.feed.Publish(service.AuthEvent{Kind: service.SignedOut})
}

// watchRevocations subscribes to revocations of userID while generation gen is live.
func (c *Client) watchRevocations(userID string, gen uint64) {
	if c.relay == nil {
		return
	}
	cancel, err := c.relay.SubscribeRevocations(userID, c.onRevoked)
	if err != nil {
		c.logger.Warn("revocation relay unavailable", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.closed {
		cancel()
		return
	}
	c.relayCancel = cancel
}

func (c *Client) cancelRevocationsLocked() {
	if c.relayCancel != nil {
		c.relayCancel()
		c.relayCancel = nil
	}
}

// onRevoked handles a sign-out issued elsewhere.
func (c *Client) onRevoked(rev notify.Revocation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.current == nil || c.current.User.ID != rev.UserID {
		return
	}
	c.logger.Debug("session revoked elsewhere", zap.String("scope", rev.Scope))
	c.clearLocked(true)
	c.feed.Publish(service.AuthEvent{Kind: service.SignedOut})
}

// onSessionFileChange reconciles with session.json after another process
// wrote or removed it.
func (c *Client) onSessionFileChange() {
	stored, err := loadSession(c.sessionPath)
	if err != nil {
		// Usually a write in progress; the next event brings the final content.
		c.logger.Debug("ignoring unreadable session file", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if stored == nil {
		if c.clearLocked(false) {
			c.logger.Debug("session file removed, signing out")
			c.feed.Publish(service.AuthEvent{Kind: service.SignedOut})
		}
		c.mu.Unlock()
		return
	}

	cur := c.current
	if cur != nil && cur.User.ID == stored.User.ID && cur.Token.AccessToken == stored.Token.AccessToken {
		c.mu.Unlock()
		return
	}
	kind := service.SignedIn
	if cur != nil && cur.User.ID == stored.User.ID {
		kind = service.TokenRefreshed
	}
	gen := c.installLocked(stored)
	c.logger.Debug("session file changed", zap.String("event", string(kind)))
	c.feed.Publish(service.AuthEvent{Kind: kind, Session: stored.session()})
	c.mu.Unlock()

	c.watchRevocations(stored.User.ID, gen)
}
