// Package app wires the session and project managers into one client.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"projectdesk/internal/projects"
	"projectdesk/internal/service"
	"projectdesk/internal/session"
)

// Options configures a Client.
type Options struct {
	Logger *zap.Logger

	// AutoLoad reloads the project list whenever a user signs in and clears
	// it on sign-out. Interactive views want this; one-shot commands load
	// explicitly instead.
	AutoLoad bool
}

// Client is the view layer's single entry point. Views read state, subscribe
// for changes and forward user intents; they never touch the store.
type Client struct {
	Session  *session.Manager
	Projects *projects.Manager

	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	loadedAs string

	cancelWatch func()
	closeOnce   sync.Once
}

// New builds a client over svc.
func New(svc service.Service, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := session.New(svc, logger)
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		Session:     sm,
		Projects:    projects.New(svc, sm, logger),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		cancelWatch: func() {},
	}
	if opts.AutoLoad {
		c.cancelWatch = sm.Subscribe(c.onSession)
	}
	return c
}

// onSession follows session transitions: a new user gets a fresh load,
// signing out clears the list.
func (c *Client) onSession(s session.State) {
	c.mu.Lock()
	prev := c.loadedAs
	switch {
	case s.Status == session.Authenticated && s.Session != nil:
		c.loadedAs = s.Session.UserID
	case s.Status == session.Anonymous:
		c.loadedAs = ""
	}
	next := c.loadedAs
	c.mu.Unlock()

	if next == prev {
		return
	}
	if next == "" {
		c.logger.Debug("clearing projects after sign out")
		c.Projects.Clear()
		return
	}
	if prev != "" {
		c.Projects.Clear()
	}
	c.logger.Debug("loading projects for user", zap.String("user_id", next))
	if err := c.Projects.Load(c.ctx); err != nil {
		c.logger.Debug("automatic load failed", zap.Error(err))
	}
}

// Start resolves the persisted session.
func (c *Client) Start(ctx context.Context) error {
	return c.Session.CheckExisting(ctx)
}

// SessionState returns the session snapshot.
func (c *Client) SessionState() session.State { return c.Session.State() }

// ProjectsState returns the collection snapshot.
func (c *Client) ProjectsState() projects.State { return c.Projects.State() }

// SubscribeSession registers fn for session changes.
func (c *Client) SubscribeSession(fn func(session.State)) func() { return c.Session.Subscribe(fn) }

// SubscribeProjects registers fn for collection changes.
func (c *Client) SubscribeProjects(fn func(projects.State)) func() { return c.Projects.Subscribe(fn) }

// SignIn forwards a sign-in intent.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	return c.Session.SignIn(ctx, email, password)
}

// SignUp forwards a sign-up intent.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	return c.Session.SignUp(ctx, email, password)
}

// SignOut forwards a sign-out intent. everywhere revokes all of the user's sessions.
func (c *Client) SignOut(ctx context.Context, everywhere bool) error {
	if everywhere {
		return c.Session.SignOutEverywhere(ctx)
	}
	return c.Session.SignOut(ctx)
}

// LoadProjects forwards a reload intent.
func (c *Client) LoadProjects(ctx context.Context) error {
	return c.Projects.Load(ctx)
}

// AddProject forwards a create intent.
func (c *Client) AddProject(ctx context.Context, d service.Draft) (service.Project, error) {
	return c.Projects.Add(ctx, d)
}

// DeleteProject forwards a delete intent.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.Projects.Delete(ctx, id)
}

// Close tears the client down. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancelWatch()
		c.cancel()
		c.Projects.Close()
		c.Session.Close()
	})
}
