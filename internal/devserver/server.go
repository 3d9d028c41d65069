// Package devserver is a local stand-in for the hosted store. It serves the
// subset of the GoTrue and PostgREST APIs that projectdesk uses, backed by
// SQLite, with row-level security emulated by owner scoping.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"projectdesk/internal/logging"
	"projectdesk/internal/notify"
	"projectdesk/internal/sqlite"
)

// DefaultAccessTokenTTL is the lifetime of issued access tokens.
const DefaultAccessTokenTTL = time.Hour

// Config holds dev server configuration.
type Config struct {
	// AnonKey must be sent in the apikey header of every API request.
	AnonKey string
	// Autoconfirm signs new users in immediately instead of leaving
	// their email unconfirmed.
	Autoconfirm bool
	// AccessTokenTTL defaults to DefaultAccessTokenTTL.
	AccessTokenTTL time.Duration
	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
}

// Server provides the auth and REST endpoints.
type Server struct {
	echo     *echo.Echo
	users    *sqlite.UserRepository
	sessions *sqlite.SessionRepository
	projects *sqlite.ProjectRepository
	relay    notify.Relay
	metrics  *Metrics
	logger   *zap.Logger
	config   Config
	now      func() time.Time
}

// NewServer creates a server over db. A nil relay disables revocation notices.
func NewServer(db *sqlite.DB, relay notify.Relay, logger *zap.Logger, cfg Config) (*Server, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("anon key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if relay == nil {
		relay = notify.Nop{}
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handleError

	s := &Server{
		echo:     e,
		users:    sqlite.NewUserRepository(db),
		sessions: sqlite.NewSessionRepository(db),
		projects: sqlite.NewProjectRepository(db),
		relay:    relay,
		metrics:  NewMetrics(),
		logger:   logger.Named("devserver"),
		config:   cfg,
		now:      time.Now,
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(s.metrics.Middleware())

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	auth := s.echo.Group("/auth/v1", s.requireAPIKey)
	auth.POST("/token", s.handleToken)
	auth.POST("/signup", s.handleSignUp)
	auth.POST("/logout", s.handleLogout, s.requireUser)
	auth.GET("/user", s.handleUser, s.requireUser)

	rest := s.echo.Group("/rest/v1", s.requireAPIKey, s.resolveRole)
	rest.GET("/projects", s.handleSelect)
	rest.POST("/projects", s.handleInsert)
	rest.DELETE("/projects", s.handleDelete)
}

// requestLogger logs every request and hands handlers a logger carrying
// the request ID.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		id := c.Response().Header().Get(echo.HeaderXRequestID)

		req := c.Request()
		ctx := logging.WithRequestID(logging.WithLogger(req.Context(), s.logger), id)
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", id),
		)
		return nil
	}
}

// Echo exposes the router, for mounting extra handlers.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting dev store", zap.String("addr", addr), zap.Bool("autoconfirm", s.config.Autoconfirm))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dev store")
	return s.echo.Shutdown(ctx)
}
