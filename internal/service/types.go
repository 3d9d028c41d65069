// Package service defines the backend-agnostic contract for the remote store.
package service

import (
	"fmt"
	"strings"
	"time"
)

// Session identifies the signed-in user. Token material stays in the backend.
type Session struct {
	UserID string
	Email  string

	// CredentialsValid is false once the backend knows the tokens can no
	// longer be refreshed.
	CredentialsValid bool
}

// AuthEventKind is the kind of an auth push notification.
type AuthEventKind string

const (
	SignedIn       AuthEventKind = "SIGNED_IN"
	SignedOut      AuthEventKind = "SIGNED_OUT"
	TokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	UserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is a push notification from the store's auth subsystem.
// Session is nil for SignedOut.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// SignOutScope selects which sessions a sign-out revokes.
type SignOutScope string

const (
	// ScopeLocal revokes only this client's session.
	ScopeLocal SignOutScope = "local"
	// ScopeGlobal revokes every session of the user.
	ScopeGlobal SignOutScope = "global"
)

// Status is the workflow state of a project.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusBlocked    Status = "Blocked"
	StatusDone       Status = "Done"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusBlocked, StatusDone}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus matches s case-insensitively against the known statuses.
// Dashes and underscores count as spaces, so "in-progress" is accepted.
func ParseStatus(s string) (Status, error) {
	norm := strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s))
	for _, v := range Statuses {
		if strings.EqualFold(norm, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s", s)
}

// Priority is the urgency of a project.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// ParsePriority matches s case-insensitively against the known priorities.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	for _, v := range Priorities {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid priority: %s", s)
}

// DateLayout is the wire and display format of a due date.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone.
type Date struct {
	t time.Time
}

// NewDate returns the date y-m-d.
func NewDate(y int, m time.Month, d int) Date {
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return Date{t: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.t.Format(DateLayout)
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.t.Compare(o.t)
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string. Timestamps are truncated to their date.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CompareDue orders optional due dates ascending with nil last.
func CompareDue(a, b *Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// Project is a stored project record.
type Project struct {
	ID         string
	OwnerID    string
	Project    string
	Area       string
	Status     Status
	NextAction string
	DueDate    *Date
	Priority   Priority
	Notes      string
	CreatedAt  time.Time
}

// NewProject is a project ready for insertion. The store assigns ID and CreatedAt.
type NewProject struct {
	OwnerID    string
	Project    string
	Area       string
	Status     Status
	NextAction string
	DueDate    *Date
	Priority   Priority
	Notes      string
}

// Draft is the editable form state for a project that is not yet stored.
// DueDate is kept as typed so an invalid entry survives a failed submit.
type Draft struct {
	Project    string
	Area       string
	Status     Status
	NextAction string
	DueDate    string
	Priority   Priority
	Notes      string
}

// DefaultDraft returns an empty draft with the default status and priority.
func DefaultDraft() Draft {
	return Draft{
		Status:   StatusNotStarted,
		Priority: PriorityMedium,
	}
}

// Build validates the draft and converts it into an insertable project owned by ownerID.
// Empty status and priority fall back to the defaults.
func (d Draft) Build(ownerID string) (NewProject, error) {
	name := strings.TrimSpace(d.Project)
	if name == "" {
		return NewProject{}, fmt.Errorf("project name required")
	}

	status := d.Status
	if status == "" {
		status = StatusNotStarted
	}
	if !status.Valid() {
		return NewProject{}, fmt.Errorf("invalid status: %s", status)
	}

	priority := d.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return NewProject{}, fmt.Errorf("invalid priority: %s", priority)
	}

	var due *Date
	if strings.TrimSpace(d.DueDate) != "" {
		parsed, err := ParseDate(d.DueDate)
		if err != nil {
			return NewProject{}, err
		}
		due = &parsed
	}

	return NewProject{
		OwnerID:    ownerID,
		Project:    name,
		Area:       d.Area,
		Status:     status,
		NextAction: d.NextAction,
		DueDate:    due,
		Priority:   priority,
		Notes:      d.Notes,
	}, nil
}
