// Package session tracks whether the user is signed in.
//
// The manager's state only moves when the store pushes an auth event.
// SignIn, SignUp and SignOut ask the store to act and report failures;
// the resulting transition arrives through the store's subscription.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"projectdesk/internal/service"
	"projectdesk/internal/watch"
)

// Status is the coarse session state.
type Status int

const (
	// Unknown is the state before the persisted session has been checked.
	Unknown Status = iota
	// Authenticated means a session is live.
	Authenticated
	// Anonymous means no session exists.
	Anonymous
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is a snapshot of the manager.
type State struct {
	Status  Status
	Session *service.Session

	// LastError is the most recent failure reported to a caller.
	LastError error
}

// ErrClosed is returned by operations on a closed manager.
var ErrClosed = errors.New("session manager closed")

// Manager owns the session state machine for one client.
type Manager struct {
	auth   service.AuthService
	logger *zap.Logger
	cell   *watch.Cell[State]

	mu     sync.Mutex
	pushes uint64
	closed bool

	cancelFeed func()
	closeOnce  sync.Once
}

// New creates a manager and subscribes it to auth events.
// The subscription is held until Close.
func New(auth service.AuthService, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		auth:   auth,
		logger: logger.Named("session"),
		cell:   watch.NewCell(State{Status: Unknown}),
	}
	m.cancelFeed = auth.Subscribe(m.handleEvent)
	return m
}

// handleEvent applies a pushed auth event.
func (m *Manager) handleEvent(ev service.AuthEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.pushes++

	switch ev.Kind {
	case service.SignedOut:
		m.logger.Debug("signed out")
		m.cell.Set(State{Status: Anonymous})
	case service.SignedIn, service.TokenRefreshed, service.UserUpdated:
		if ev.Session == nil {
			m.logger.Warn("auth event without session", zap.String("event", string(ev.Kind)))
			return
		}
		sess := *ev.Session
		m.logger.Debug("session updated",
			zap.String("event", string(ev.Kind)),
			zap.String("user_id", sess.UserID),
		)
		m.cell.Update(func(s State) State {
			next := State{Status: Authenticated, Session: &sess}
			// A refresh of the same user keeps any error the user has not seen yet.
			if ev.Kind != service.SignedIn && s.Session != nil && s.Session.UserID == sess.UserID {
				next.LastError = s.LastError
			}
			return next
		})
	default:
		m.logger.Debug("ignoring auth event", zap.String("event", string(ev.Kind)))
	}
}

// CheckExisting asks the store for a persisted session and resolves the
// Unknown state. If an auth event arrives while the check is in flight,
// the event wins and the check's result is dropped.
func (m *Manager) CheckExisting(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	start := m.pushes
	m.mu.Unlock()

	sess, err := m.auth.CurrentSession(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return err
	}
	if m.pushes != start {
		m.logger.Debug("dropping session check overtaken by auth event")
		return nil
	}

	if err != nil {
		err = asAuthError("check session", err)
		m.cell.Update(func(s State) State {
			if s.Status == Unknown {
				s.Status = Anonymous
				s.Session = nil
			}
			s.LastError = err
			return s
		})
		return err
	}

	if sess == nil {
		m.cell.Set(State{Status: Anonymous})
		return nil
	}
	cp := *sess
	m.cell.Set(State{Status: Authenticated, Session: &cp})
	return nil
}

// SignIn asks the store to verify credentials.
// On success the transition to Authenticated follows as a push.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	return m.request(ctx, "sign in", func(ctx context.Context) error {
		return m.auth.SignInWithPassword(ctx, email, password)
	})
}

// SignUp asks the store to register a user. Depending on the store's
// confirmation policy a SignedIn push may or may not follow.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	return m.request(ctx, "sign up", func(ctx context.Context) error {
		return m.auth.SignUp(ctx, email, password)
	})
}

// SignOut ends this client's session. It is a no-op when already anonymous.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.signOut(ctx, service.ScopeLocal)
}

// SignOutEverywhere revokes every session of the user.
func (m *Manager) SignOutEverywhere(ctx context.Context) error {
	return m.signOut(ctx, service.ScopeGlobal)
}

func (m *Manager) signOut(ctx context.Context, scope service.SignOutScope) error {
	if m.State().Status == Anonymous {
		m.logger.Debug("sign out while anonymous")
		return nil
	}
	return m.request(ctx, "sign out", func(ctx context.Context) error {
		return m.auth.SignOut(ctx, scope)
	})
}

// request runs a fire-and-forget auth call and records its outcome.
// The session itself is left for the push stream to update.
func (m *Manager) request(ctx context.Context, op string, call func(context.Context) error) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	err := call(ctx)
	if err != nil {
		err = asAuthError(op, err)
		m.logger.Debug("auth request failed", zap.String("op", op), zap.Error(err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return err
	}
	m.cell.Update(func(s State) State {
		s.LastError = err
		return s
	})
	return err
}

// State returns the current snapshot.
func (m *Manager) State() State {
	return m.cell.Get()
}

// Session returns the live session, or nil.
func (m *Manager) Session() *service.Session {
	s := m.cell.Get()
	if s.Status != Authenticated || s.Session == nil {
		return nil
	}
	cp := *s.Session
	return &cp
}

// UserID returns the signed-in user's ID.
func (m *Manager) UserID() (string, bool) {
	if sess := m.Session(); sess != nil {
		return sess.UserID, true
	}
	return "", false
}

// LastError returns the most recent failure.
func (m *Manager) LastError() error {
	return m.cell.Get().LastError
}

// Subscribe registers fn for state changes.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	return m.cell.Subscribe(fn)
}

// WaitFor blocks until the state satisfies ready or ctx is done.
func (m *Manager) WaitFor(ctx context.Context, ready func(State) bool) (State, error) {
	ch := make(chan State, 1)
	cancel := m.cell.Subscribe(func(s State) {
		if ready(s) {
			select {
			case ch <- s:
			default:
			}
		}
	})
	defer cancel()

	if s := m.cell.Get(); ready(s) {
		return s, nil
	}
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return m.cell.Get(), ctx.Err()
	}
}

// Close releases the auth subscription and stops notifying observers.
// Events and results that arrive afterwards are ignored.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		m.cancelFeed()
		m.cell.Close()
	})
}

// asAuthError keeps typed auth errors and classifies everything else.
func asAuthError(op string, err error) error {
	var ae *service.AuthError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &service.AuthError{Op: op, Kind: service.AuthTransient, Err: err}
	}
	return &service.AuthError{Op: op, Kind: service.AuthUnknown, Err: err}
}
