// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"projectdesk/internal/service"
	"projectdesk/internal/watch"
)

type fakeUser struct {
	id       string
	password string
}

type queryResult struct {
	projects []service.Project
	err      error
}

// PendingQuery is a QueryProjects call held by HoldQueries until resolved.
type PendingQuery struct {
	OwnerID string
	f       *FakeService
	release chan queryResult
}

// Resolve completes the held call with the given result.
func (p *PendingQuery) Resolve(projects []service.Project, err error) {
	p.release <- queryResult{projects: projects, err: err}
}

// ResolveCurrent completes the held call with the store's contents at this moment.
func (p *PendingQuery) ResolveCurrent() {
	p.Resolve(p.f.Projects(p.OwnerID), nil)
}

// FakeService is an in-memory implementation of service.Service for testing.
// It emits auth events the way a real store does: only after a successful
// sign-in, confirmed sign-up or sign-out.
type FakeService struct {
	mu       sync.Mutex
	users    map[string]fakeUser // email -> user
	session  *service.Session
	projects []service.Project
	nextID   int
	calls    map[string]int
	held     chan *PendingQuery
	feed     watch.Feed[service.AuthEvent]

	// RequireConfirmation makes SignUp succeed without signing in.
	RequireConfirmation bool

	// Error injection for testing
	CurrentSessionErr error
	SignInErr         error
	SignUpErr         error
	SignOutErr        error
	QueryErr          error
	InsertErr         error
	DeleteErr         error
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		users: make(map[string]fakeUser),
		calls: make(map[string]int),
	}
}

// AddUser registers a user and returns its ID.
func (f *FakeService) AddUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, password)
}

func (f *FakeService) addUserLocked(email, password string) string {
	id := fmt.Sprintf("user-%d", len(f.users)+1)
	f.users[email] = fakeUser{id: id, password: password}
	return id
}

// SetSession seeds a persisted session without emitting an event.
func (f *FakeService) SetSession(sess *service.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = sess
}

// AddProject seeds a stored project. An empty ID is assigned.
func (f *FakeService) AddProject(p service.Project) service.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		f.nextID++
		p.ID = fmt.Sprintf("p%d", f.nextID)
	}
	f.projects = append(f.projects, p)
	return p
}

// Projects returns the stored projects of ownerID in insertion order.
func (f *FakeService) Projects(ownerID string) []service.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []service.Project
	for _, p := range f.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out
}

// Emit pushes an auth event to subscribers.
func (f *FakeService) Emit(ev service.AuthEvent) {
	f.feed.Publish(ev)
}

// Subscribers returns the number of live auth subscriptions.
func (f *FakeService) Subscribers() int {
	return f.feed.Len()
}

// Calls returns how many times the named method was called.
func (f *FakeService) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of network-facing calls made so far.
func (f *FakeService) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// HoldQueries makes every later QueryProjects call block until the test
// resolves it. Held calls are delivered on the returned channel.
func (f *FakeService) HoldQueries() <-chan *PendingQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = make(chan *PendingQuery, 16)
	return f.held
}

// CurrentSession implements service.Service.
func (f *FakeService) CurrentSession(ctx context.Context) (*service.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CurrentSession"]++
	if f.CurrentSessionErr != nil {
		return nil, f.CurrentSessionErr
	}
	if f.session == nil {
		return nil, nil
	}
	cp := *f.session
	return &cp, nil
}

// Subscribe implements service.Service.
func (f *FakeService) Subscribe(fn func(service.AuthEvent)) func() {
	return f.feed.Subscribe(fn)
}

// SignInWithPassword implements service.Service.
func (f *FakeService) SignInWithPassword(ctx context.Context, email, password string) error {
	f.mu.Lock()
	f.calls["SignInWithPassword"]++
	if f.SignInErr != nil {
		f.mu.Unlock()
		return f.SignInErr
	}
	u, ok := f.users[email]
	if !ok || u.password != password {
		f.mu.Unlock()
		return &service.AuthError{Op: "sign in", Kind: service.AuthInvalidCredentials}
	}
	sess := &service.Session{UserID: u.id, Email: email, CredentialsValid: true}
	f.session = sess
	f.mu.Unlock()

	f.feed.Publish(service.AuthEvent{Kind: service.SignedIn, Session: sess})
	return nil
}

// SignUp implements service.Service.
func (f *FakeService) SignUp(ctx context.Context, email, password string) error {
	f.mu.Lock()
	f.calls["SignUp"]++
	if f.SignUpErr != nil {
		f.mu.Unlock()
		return f.SignUpErr
	}
	if _, exists := f.users[email]; exists {
		f.mu.Unlock()
		return &service.AuthError{Op: "sign up", Kind: service.AuthDuplicateUser}
	}
	id := f.addUserLocked(email, password)
	if f.RequireConfirmation {
		f.mu.Unlock()
		return nil
	}
	sess := &service.Session{UserID: id, Email: email, CredentialsValid: true}
	f.session = sess
	f.mu.Unlock()

	f.feed.Publish(service.AuthEvent{Kind: service.SignedIn, Session: sess})
	return nil
}

// SignOut implements service.Service.
func (f *FakeService) SignOut(ctx context.Context, scope service.SignOutScope) error {
	f.mu.Lock()
	f.calls["SignOut"]++
	if f.SignOutErr != nil {
		f.mu.Unlock()
		return f.SignOutErr
	}
	f.session = nil
	f.mu.Unlock()

	f.feed.Publish(service.AuthEvent{Kind: service.SignedOut})
	return nil
}

// QueryProjects implements service.Service.
// Results are returned in insertion order so callers must sort.
func (f *FakeService) QueryProjects(ctx context.Context, ownerID string) ([]service.Project, error) {
	f.mu.Lock()
	f.calls["QueryProjects"]++
	held := f.held
	queryErr := f.QueryErr
	f.mu.Unlock()

	if held != nil {
		p := &PendingQuery{OwnerID: ownerID, f: f, release: make(chan queryResult, 1)}
		held <- p
		select {
		case r := <-p.release:
			return r.projects, r.err
		case <-ctx.Done():
			return nil, &service.StoreError{Op: "query projects", Kind: service.StoreTransient, Err: ctx.Err()}
		}
	}

	if queryErr != nil {
		return nil, queryErr
	}
	return f.Projects(ownerID), nil
}

// InsertProject implements service.Service.
func (f *FakeService) InsertProject(ctx context.Context, np service.NewProject) (service.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["InsertProject"]++
	if f.InsertErr != nil {
		return service.Project{}, f.InsertErr
	}
	if f.session == nil || f.session.UserID != np.OwnerID {
		return service.Project{}, &service.StoreError{Op: "insert project", Kind: service.StorePermissionDenied}
	}
	f.nextID++
	p := service.Project{
		ID:         fmt.Sprintf("p%d", f.nextID),
		OwnerID:    np.OwnerID,
		Project:    np.Project,
		Area:       np.Area,
		Status:     np.Status,
		NextAction: np.NextAction,
		DueDate:    np.DueDate,
		Priority:   np.Priority,
		Notes:      np.Notes,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, f.nextID, 0, time.UTC),
	}
	f.projects = append(f.projects, p)
	return p, nil
}

// DeleteProject implements service.Service.
func (f *FakeService) DeleteProject(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteProject"]++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i, p := range f.projects {
		if p.ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			return nil
		}
	}
	return &service.StoreError{Op: "delete project", Kind: service.StoreNotFound}
}
