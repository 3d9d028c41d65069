// Package supabase implements service.Service against a Supabase project
// (GoTrue for auth, PostgREST for the projects table).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"projectdesk/internal/config"
	"projectdesk/internal/notify"
	"projectdesk/internal/service"
	"projectdesk/internal/watch"
)

const (
	// DefaultAPITimeout is the per-call timeout when none is configured.
	DefaultAPITimeout = 10 * time.Second

	// ProjectsTable is the PostgREST resource holding projects.
	ProjectsTable = "projects"

	maxErrorBody = 1 << 20 // 1 MB
)

// Options configure a Client.
type Options struct {
	URL     string
	AnonKey string

	// Timeout bounds every API call.
	Timeout time.Duration

	// SessionPath persists the session between runs. Empty keeps it in memory.
	SessionPath string

	// WatchSession turns changes to SessionPath made by other processes
	// into auth events.
	WatchSession bool

	// Relay delivers revocations issued elsewhere. Nil disables it.
	Relay notify.Relay

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client implements service.Service.
type Client struct {
	baseURL     string
	anonKey     string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
	sessionPath string
	relay       notify.Relay

	feed watch.Feed[service.AuthEvent]

	// lifetime bounds work that has no caller context, such as token
	// refreshes made inside oauth2.TokenSource. Close cancels it.
	lifetime     context.Context
	stopLifetime context.CancelFunc

	mu          sync.Mutex
	current     *storedSession
	gen         uint64 // bumped whenever the live session is replaced or cleared
	tokens      oauth2.TokenSource
	relayCancel func()
	watcher     *sessionWatcher
	closed      bool
}

// New creates a client. No request is made until the first call.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("supabase url required")
	}
	if opts.AnonKey == "" {
		return nil, fmt.Errorf("supabase anon key required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:     strings.TrimRight(opts.URL, "/"),
		anonKey:     opts.AnonKey,
		timeout:     timeout,
		httpClient:  httpClient,
		logger:      logger.Named("supabase"),
		sessionPath: opts.SessionPath,
		relay:       opts.Relay,
	}
	c.lifetime, c.stopLifetime = context.WithCancel(context.Background())

	if opts.WatchSession && opts.SessionPath != "" {
		w, err := newSessionWatcher(opts.SessionPath, c.onSessionFileChange, c.logger)
		if err != nil {
			c.stopLifetime()
			return nil, err
		}
		c.watcher = w
	}
	return c, nil
}

// NewFromConfig creates a client from loaded settings, persisting the
// session in the config directory.
func NewFromConfig(cfg *config.Config, relay notify.Relay, logger *zap.Logger) (*Client, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return New(Options{
		URL:          cfg.Settings.Store.URL,
		AnonKey:      cfg.Settings.Store.AnonKey,
		Timeout:      cfg.Settings.Store.Timeout,
		SessionPath:  cfg.SessionPath(),
		WatchSession: true,
		Relay:        relay,
		Logger:       logger,
	})
}

// Close stops the session file watcher and the revocation subscription
// and detaches every auth subscriber.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopLifetime()
	w := c.watcher
	relayCancel := c.relayCancel
	c.relayCancel = nil
	c.mu.Unlock()

	if w != nil {
		w.Close()
	}
	if relayCancel != nil {
		relayCancel()
	}
	c.feed.Close()
}

// Subscribe implements service.Service.
func (c *Client) Subscribe(fn func(service.AuthEvent)) func() {
	return c.feed.Subscribe(fn)
}

// request describes one API call.
type request struct {
	method string
	path   string // including query string
	body   any
	auth   bool   // send the session's access token
	prefer string // PostgREST Prefer header
}

// doRequest performs req with the per-call timeout and decodes the JSON
// response into out. Non-2xx responses become *apiError.
func (c *Client) doRequest(ctx context.Context, req request, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	bearer := c.anonKey
	if req.auth {
		tok, err := c.accessToken()
		if err != nil {
			return 0, err
		}
		bearer = tok
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("api call",
		zap.String("method", req.method),
		zap.String("path", pathOnly(req.path)),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return resp.StatusCode, &apiError{Status: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return resp.StatusCode, parseAPIError(resp.StatusCode, respBody)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// pathOnly strips the query string, which may carry user IDs.
func pathOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
