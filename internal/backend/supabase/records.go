package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"projectdesk/internal/service"
)

const preferRepresentation = "return=representation"

// rowID accepts both text and numeric primary keys.
type rowID string

func (id *rowID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = rowID(s)
		return nil
	}
	*id = rowID(b)
	return nil
}

// projectRow is a row of the projects table as PostgREST returns it.
type projectRow struct {
	ID         rowID         `json:"id"`
	UserID     string        `json:"user_id"`
	Project    string        `json:"project"`
	Area       string        `json:"area"`
	Status     string        `json:"status"`
	NextAction string        `json:"next_action"`
	DueDate    *service.Date `json:"due_date"`
	Priority   string        `json:"priority"`
	Notes      string        `json:"notes"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (r projectRow) project() service.Project {
	return service.Project{
		ID:         string(r.ID),
		OwnerID:    r.UserID,
		Project:    r.Project,
		Area:       r.Area,
		Status:     service.Status(r.Status),
		NextAction: r.NextAction,
		DueDate:    r.DueDate,
		Priority:   service.Priority(r.Priority),
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt,
	}
}

// insertRow is the body of an insert. The store fills id and created_at.
type insertRow struct {
	UserID     string        `json:"user_id"`
	Project    string        `json:"project"`
	Area       string        `json:"area"`
	Status     string        `json:"status"`
	NextAction string        `json:"next_action"`
	DueDate    *service.Date `json:"due_date"`
	Priority   string        `json:"priority"`
	Notes      string        `json:"notes"`
}

// QueryProjects implements service.Service.
func (c *Client) QueryProjects(ctx context.Context, ownerID string) ([]service.Project, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+ownerID)
	q.Set("order", "due_date.asc.nullslast")

	var rows []projectRow
	_, err := c.doRequest(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + ProjectsTable + "?" + q.Encode(),
		auth:   true,
	}, &rows)
	if err != nil {
		return nil, wrapStoreError("query projects", err)
	}

	projects := make([]service.Project, len(rows))
	for i, r := range rows {
		projects[i] = r.project()
	}
	return projects, nil
}

// InsertProject implements service.Service.
func (c *Client) InsertProject(ctx context.Context, p service.NewProject) (service.Project, error) {
	body := insertRow{
		UserID:     p.OwnerID,
		Project:    p.Project,
		Area:       p.Area,
		Status:     string(p.Status),
		NextAction: p.NextAction,
		DueDate:    p.DueDate,
		Priority:   string(p.Priority),
		Notes:      p.Notes,
	}

	var rows []projectRow
	_, err := c.doRequest(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/" + ProjectsTable,
		body:   body,
		auth:   true,
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return service.Project{}, wrapStoreError("insert project", err)
	}
	if len(rows) == 0 {
		return service.Project{}, service.NewStoreError("insert project", service.StoreUnknown, "store returned no row")
	}
	return rows[0].project(), nil
}

// DeleteProject implements service.Service. Deleting a row that does not
// exist, or that row-level security hides, is reported as not found.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	var rows []projectRow
	_, err := c.doRequest(ctx, request{
		method: http.MethodDelete,
		path:   "/rest/v1/" + ProjectsTable + "?" + q.Encode(),
		auth:   true,
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return wrapStoreError("delete project", err)
	}
	if len(rows) == 0 {
		return service.NewStoreError("delete project", service.StoreNotFound, "no project with id %s", id)
	}
	return nil
}
