// Package service defines the backend-agnostic contract for the remote store.
package service

import "context"

// AuthService is the authentication half of the remote store.
// Session state changes are never returned by these calls; they arrive
// through Subscribe.
type AuthService interface {
	// CurrentSession returns the persisted session, or nil when none exists.
	CurrentSession(ctx context.Context) (*Session, error)

	// Subscribe registers fn for auth events in transport order.
	// The returned cancel func detaches fn and is safe to call more than once.
	Subscribe(fn func(AuthEvent)) (cancel func())

	// SignInWithPassword verifies credentials. On success a SignedIn event follows.
	SignInWithPassword(ctx context.Context, email, password string) error

	// SignUp registers a new user. Whether a SignedIn event follows depends
	// on the store's email confirmation policy.
	SignUp(ctx context.Context, email, password string) error

	// SignOut invalidates the session. A SignedOut event follows.
	SignOut(ctx context.Context, scope SignOutScope) error
}

// RecordService is the record half of the remote store.
// Row-level ownership is enforced by the store.
type RecordService interface {
	// QueryProjects returns every project owned by ownerID,
	// ordered by due date ascending with undated projects last.
	QueryProjects(ctx context.Context, ownerID string) ([]Project, error)

	// InsertProject creates a project and returns it with its server-assigned ID.
	InsertProject(ctx context.Context, p NewProject) (Project, error)

	// DeleteProject removes a project by ID.
	DeleteProject(ctx context.Context, id string) error
}

// Service is the full remote store client contract.
// Commands and managers never import a backend package directly.
type Service interface {
	AuthService
	RecordService
}
