package devserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"projectdesk/internal/logging"
	"projectdesk/internal/sqlite"
)

const (
	dateLayout = "2006-01-02"

	defaultStatus   = "Not Started"
	defaultPriority = "Medium"
)

// resolveRole authenticates the bearer token if it is not the anon key.
// Anonymous callers see no rows and may not write.
func (s *Server) resolveRole(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := s.authenticate(c); err != nil {
			if errors.Is(err, errBadJWT) {
				return newRestError(http.StatusUnauthorized, "PGRST301", "JWT expired")
			}
			return err
		}
		return next(c)
	}
}

// parseQuery splits PostgREST query parameters into filters and orders.
// Only eq filters are supported.
func parseQuery(c echo.Context) ([]sqlite.Filter, []sqlite.Order, error) {
	var (
		filters []sqlite.Filter
		orders  []sqlite.Order
	)
	for key, values := range c.QueryParams() {
		switch key {
		case "select":
			if values[0] != "*" {
				return nil, nil, newRestError(http.StatusBadRequest, "PGRST100", "only select=* is supported")
			}
		case "order":
			o, err := parseOrder(values[0])
			if err != nil {
				return nil, nil, err
			}
			orders = append(orders, o...)
		default:
			for _, v := range values {
				op, arg, ok := strings.Cut(v, ".")
				if !ok || op != "eq" {
					return nil, nil, newRestError(http.StatusBadRequest, "PGRST100", "unsupported filter %s=%s", key, v)
				}
				filters = append(filters, sqlite.Filter{Column: key, Value: arg})
			}
		}
	}
	return filters, orders, nil
}

// parseOrder parses "col[.asc|.desc][.nullsfirst|.nullslast],...".
// Nulls sort as in Postgres when unspecified: last ascending, first descending.
func parseOrder(s string) ([]sqlite.Order, error) {
	var orders []sqlite.Order
	for _, term := range strings.Split(s, ",") {
		parts := strings.Split(term, ".")
		o := sqlite.Order{Column: parts[0]}
		nulls := ""
		for _, p := range parts[1:] {
			switch p {
			case "asc":
				o.Desc = false
			case "desc":
				o.Desc = true
			case "nullsfirst", "nullslast":
				nulls = p
			default:
				return nil, newRestError(http.StatusBadRequest, "PGRST100", "failed to parse order (%s)", term)
			}
		}
		switch nulls {
		case "nullsfirst":
			o.NullsFirst = true
		case "":
			o.NullsFirst = o.Desc
		}
		if o.Column == "" {
			return nil, newRestError(http.StatusBadRequest, "PGRST100", "failed to parse order (%s)", term)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func listError(err error) error {
	if errors.Is(err, sqlite.ErrConstraint) {
		return newRestError(http.StatusBadRequest, "42703", "%v", err)
	}
	return err
}

func (s *Server) handleSelect(c echo.Context) error {
	filters, orders, err := parseQuery(c)
	if err != nil {
		return err
	}
	owner := callerID(c)
	if owner == "" {
		return c.JSON(http.StatusOK, []sqlite.Project{})
	}
	rows, err := s.projects.List(c.Request().Context(), owner, filters, orders)
	if err != nil {
		return listError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

// insertBody is one row of an insert. Pointers tell absent from empty.
type insertBody struct {
	UserID     string  `json:"user_id"`
	Project    string  `json:"project"`
	Area       string  `json:"area"`
	Status     *string `json:"status"`
	NextAction string  `json:"next_action"`
	DueDate    *string `json:"due_date"`
	Priority   *string `json:"priority"`
	Notes      string  `json:"notes"`
}

// decodeRows accepts a single object or an array of objects.
func decodeRows(r io.Reader) ([]insertBody, error) {
	data, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var rows []insertBody
		err := json.Unmarshal(data, &rows)
		return rows, err
	}
	var row insertBody
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return []insertBody{row}, nil
}

func (s *Server) handleInsert(c echo.Context) error {
	ctx := c.Request().Context()
	owner := callerID(c)

	rows, err := decodeRows(c.Request().Body)
	if err != nil {
		return newRestError(http.StatusBadRequest, "PGRST102", "invalid body: %v", err)
	}

	created := make([]sqlite.Project, 0, len(rows))
	for _, row := range rows {
		// Row-level security: a user may only insert rows they own.
		if owner == "" || row.UserID != owner {
			return errRLSViolation
		}
		p := sqlite.Project{
			ID:         uuid.NewString(),
			UserID:     owner,
			Project:    row.Project,
			Area:       row.Area,
			Status:     defaultStatus,
			NextAction: row.NextAction,
			Priority:   defaultPriority,
			Notes:      row.Notes,
			CreatedAt:  s.now().UTC(),
		}
		if row.Status != nil {
			p.Status = *row.Status
		}
		if row.Priority != nil {
			p.Priority = *row.Priority
		}
		if row.DueDate != nil {
			d, err := time.Parse(dateLayout, *row.DueDate)
			if err != nil {
				return newRestError(http.StatusBadRequest, "22007", "invalid input syntax for type date: %q", *row.DueDate)
			}
			due := d.Format(dateLayout)
			p.DueDate = &due
		}
		if err := s.projects.Create(ctx, &p); err != nil {
			if errors.Is(err, sqlite.ErrConstraint) {
				return newRestError(http.StatusBadRequest, "23514", `new row for relation "projects" violates check constraint`)
			}
			return err
		}
		created = append(created, p)
	}

	logging.FromContext(ctx).Debug("inserted projects", zap.String("user_id", owner), zap.Int("count", len(created)))
	if wantsRepresentation(c) {
		return c.JSON(http.StatusCreated, created)
	}
	return c.NoContent(http.StatusCreated)
}

// handleDelete deletes by id. Rows of other owners are invisible, so
// deleting them matches nothing.
func (s *Server) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()

	filters, _, err := parseQuery(c)
	if err != nil {
		return err
	}
	var id string
	for _, f := range filters {
		if f.Column != "id" {
			return newRestError(http.StatusBadRequest, "PGRST100", "delete supports only an id filter")
		}
		id = f.Value
	}
	if id == "" {
		return newRestError(http.StatusBadRequest, "21000", "DELETE requires a WHERE clause")
	}

	deleted := []sqlite.Project{}
	if owner := callerID(c); owner != "" {
		p, err := s.projects.Delete(ctx, owner, id)
		switch {
		case err == nil:
			deleted = append(deleted, *p)
		case !errors.Is(err, sqlite.ErrNotFound):
			return err
		}
	}

	if wantsRepresentation(c) {
		return c.JSON(http.StatusOK, deleted)
	}
	return c.NoContent(http.StatusNoContent)
}

func wantsRepresentation(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get("Prefer"), "return=representation")
}
