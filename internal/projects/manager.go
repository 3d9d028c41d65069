// Package projects keeps the signed-in user's project list in sync with the store.
//
// The list is only ever replaced by a full reload. Mutations go to the store
// first and are followed by a reload; nothing is applied locally ahead of the
// store. Each reload carries a sequence number and only the latest-issued one
// may replace the list, so an older reload that completes late is dropped.
package projects

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"projectdesk/internal/service"
	"projectdesk/internal/watch"
)

// SessionReader exposes the signed-in user without granting control over the session.
type SessionReader interface {
	UserID() (string, bool)
}

// State is a snapshot of the collection.
// Projects is shared between snapshots and must not be modified.
type State struct {
	Projects  []service.Project
	Loading   bool
	LastError error
}

// ErrClosed is returned by operations on a closed manager.
var ErrClosed = errors.New("project manager closed")

// Manager owns the project collection and the draft form.
type Manager struct {
	store   service.RecordService
	session SessionReader
	logger  *zap.Logger
	cell    *watch.Cell[State]

	mu      sync.Mutex
	seq     uint64 // latest issued load
	draft   service.Draft
	closed  bool
	closing sync.Once
}

// New creates an empty manager.
func New(store service.RecordService, session SessionReader, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		session: session,
		logger:  logger.Named("projects"),
		cell:    watch.NewCell(State{}),
		draft:   service.DefaultDraft(),
	}
}

// Load fetches the user's projects and replaces the collection.
// A load that is overtaken by a newer one returns nil and changes nothing.
// On failure the previous collection is kept and the error recorded.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	userID, ok := m.session.UserID()
	if !ok {
		err := &service.AuthError{Op: "load projects", Kind: service.AuthNotAuthenticated}
		m.recordLocked(err)
		m.mu.Unlock()
		return err
	}
	m.seq++
	seq := m.seq
	m.cell.Update(func(s State) State {
		s.Loading = true
		return s
	})
	m.mu.Unlock()

	projects, err := m.store.QueryProjects(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if seq != m.seq {
		m.logger.Debug("discarding stale load", zap.Uint64("seq", seq), zap.Uint64("latest", m.seq))
		return nil
	}

	if err != nil {
		err = asStoreError("load projects", err)
		m.logger.Debug("load failed", zap.Error(err))
		m.cell.Update(func(s State) State {
			s.Loading = false
			s.LastError = err
			return s
		})
		return err
	}

	Sort(projects)
	m.logger.Debug("loaded projects", zap.Int("count", len(projects)), zap.Uint64("seq", seq))
	m.cell.Set(State{Projects: projects})
	return nil
}

// Add stores draft as the form state, validates it, inserts it for the
// signed-in user and reloads. The draft is reset to defaults only when the
// insert succeeds. If the insert succeeds but the reload fails, the created
// project is returned together with the reload error.
func (m *Manager) Add(ctx context.Context, draft service.Draft) (service.Project, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return service.Project{}, ErrClosed
	}
	m.draft = draft
	userID, ok := m.session.UserID()
	if !ok {
		err := &service.AuthError{Op: "add project", Kind: service.AuthNotAuthenticated}
		m.recordLocked(err)
		m.mu.Unlock()
		return service.Project{}, err
	}
	np, err := draft.Build(userID)
	if err != nil {
		serr := &service.StoreError{Op: "add project", Kind: service.StoreValidation, Err: err}
		m.recordLocked(serr)
		m.mu.Unlock()
		return service.Project{}, serr
	}
	m.mu.Unlock()

	created, err := m.store.InsertProject(ctx, np)
	if err != nil {
		err = asStoreError("add project", err)
		m.record(err)
		return service.Project{}, err
	}

	m.mu.Lock()
	if !m.closed {
		m.draft = service.DefaultDraft()
	}
	m.mu.Unlock()
	m.logger.Debug("project added", zap.String("id", created.ID))

	if err := m.Load(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// SubmitDraft adds the current draft.
func (m *Manager) SubmitDraft(ctx context.Context) (service.Project, error) {
	return m.Add(ctx, m.Draft())
}

// Delete removes the project with the given ID and reloads.
// IDs that are not in the current collection are rejected without contacting the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	known := slices.ContainsFunc(m.cell.Get().Projects, func(p service.Project) bool { return p.ID == id })
	if !known {
		err := service.NewStoreError("delete project", service.StoreValidation, "unknown project id: %s", id)
		m.recordLocked(err)
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.store.DeleteProject(ctx, id); err != nil {
		err = asStoreError("delete project", err)
		m.record(err)
		return err
	}
	m.logger.Debug("project deleted", zap.String("id", id))

	return m.Load(ctx)
}

// Find returns the project with the given ID from the current collection.
func (m *Manager) Find(id string) (service.Project, bool) {
	for _, p := range m.cell.Get().Projects {
		if p.ID == id {
			return p, true
		}
	}
	return service.Project{}, false
}

// Clear empties the collection and resets the draft. Loads still in flight are dropped.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.seq++
	m.draft = service.DefaultDraft()
	m.cell.Set(State{})
}

// Draft returns the form state.
func (m *Manager) Draft() service.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// SetDraft replaces the form state.
func (m *Manager) SetDraft(d service.Draft) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = d
}

// State returns the current snapshot.
func (m *Manager) State() State {
	return m.cell.Get()
}

// Subscribe registers fn for state changes.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	return m.cell.Subscribe(fn)
}

// Close stops notifying observers. Results that arrive afterwards are ignored.
func (m *Manager) Close() {
	m.closing.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.cell.Close()
	})
}

func (m *Manager) record(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.recordLocked(err)
	}
}

func (m *Manager) recordLocked(err error) {
	m.cell.Update(func(s State) State {
		s.LastError = err
		return s
	})
}

// Sort orders projects by due date ascending with undated projects last.
// Projects with equal due dates keep their relative order.
func Sort(projects []service.Project) {
	slices.SortStableFunc(projects, func(a, b service.Project) int {
		return service.CompareDue(a.DueDate, b.DueDate)
	})
}

func asStoreError(op string, err error) error {
	var se *service.StoreError
	var ae *service.AuthError
	if errors.As(err, &se) || errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &service.StoreError{Op: op, Kind: service.StoreTransient, Err: err}
	}
	return &service.StoreError{Op: op, Kind: service.StoreUnknown, Err: err}
}
