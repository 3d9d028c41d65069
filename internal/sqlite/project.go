package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Project is a row of the projects table. JSON tags match the REST representation.
type Project struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Project    string    `json:"project"`
	Area       string    `json:"area"`
	Status     string    `json:"status"`
	NextAction string    `json:"next_action"`
	DueDate    *string   `json:"due_date"`
	Priority   string    `json:"priority"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Order is one ORDER BY term.
type Order struct {
	Column     string
	Desc       bool
	NullsFirst bool
}

// columns lists the columns that may appear in an Order or Filter.
var columns = map[string]bool{
	"id": true, "user_id": true, "project": true, "area": true, "status": true, "next_action": true,
	"due_date": true, "priority": true, "notes": true, "created_at": true,
}

// Filter restricts a listing to rows whose column equals value.
type Filter struct {
	Column string
	Value  string
}

// ProjectRepository stores projects. Every method is scoped to one owner.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, user_id, project, area, status, next_action, due_date, priority, notes, created_at`

// Create inserts p. CHECK violations return ErrConstraint.
func (r *ProjectRepository) Create(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.Project, p.Area, p.Status, p.NextAction, p.DueDate, p.Priority, p.Notes, formatTime(p.CreatedAt))
	switch {
	case isCheckViolation(err), isForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	case isUniqueViolation(err):
		return ErrDuplicate
	case err != nil:
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// List returns ownerID's projects matching every filter, sorted by orders
// and then by creation time.
func (r *ProjectRepository) List(ctx context.Context, ownerID string, filters []Filter, orders []Order) ([]Project, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{ownerID}
	)
	for _, f := range filters {
		if !columns[f.Column] {
			return nil, fmt.Errorf("%w: unknown column %s", ErrConstraint, f.Column)
		}
		where = append(where, f.Column+" = ?")
		args = append(args, f.Value)
	}

	var terms []string
	for _, o := range orders {
		if !columns[o.Column] {
			return nil, fmt.Errorf("%w: unknown column %s", ErrConstraint, o.Column)
		}
		nulls, dir := "ASC", "ASC"
		if o.NullsFirst {
			nulls = "DESC"
		}
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, fmt.Sprintf("(%s IS NULL) %s, %s %s", o.Column, nulls, o.Column, dir))
	}
	terms = append(terms, "created_at ASC")

	query := `SELECT ` + projectColumns + ` FROM projects WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + strings.Join(terms, ", ")

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Get returns one of ownerID's projects.
func (r *ProjectRepository) Get(ctx context.Context, ownerID, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, ownerID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Delete removes one of ownerID's projects and returns it.
// Projects of other owners are reported as ErrNotFound.
func (r *ProjectRepository) Delete(ctx context.Context, ownerID, id string) (*Project, error) {
	p, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, ownerID); err != nil {
		return nil, fmt.Errorf("failed to delete project: %w", err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*Project, error) {
	var (
		p       Project
		due     sql.NullString
		created string
	)
	if err := s.Scan(&p.ID, &p.UserID, &p.Project, &p.Area, &p.Status, &p.NextAction, &due, &p.Priority, &p.Notes, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	if due.Valid {
		p.DueDate = &due.String
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t
	return &p, nil
}
