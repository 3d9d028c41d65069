package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"projectdesk/internal/service"
)

// ProjectRef is a parsed project reference: either a row number from the
// list output or a project ID.
type ProjectRef struct {
	Num int    // 1-based row number, 0 if ID is set
	ID  string // project ID, "" if Num is set
}

// ErrProjectRefRequired indicates no project reference was provided.
var ErrProjectRefRequired = errors.New("project reference required")

// ParseProjectRef parses a project reference from args.
//
// Parsing rules:
// 1. No args or a blank first arg → error: project reference required
// 2. More than one arg → error: too many arguments
// 3. All digits → row number
// 4. Anything else → project ID
func ParseProjectRef(args []string) (ProjectRef, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return ProjectRef{}, ErrProjectRefRequired
	}
	if len(args) > 1 {
		return ProjectRef{}, fmt.Errorf("too many arguments: %s", strings.Join(args[1:], " "))
	}

	ref := strings.TrimSpace(args[0])
	if isAllDigits(ref) {
		num, err := strconv.Atoi(ref)
		if err != nil {
			return ProjectRef{}, fmt.Errorf("invalid project reference: %s", ref)
		}
		return ProjectRef{Num: num}, nil
	}
	return ProjectRef{ID: ref}, nil
}

// Resolve finds the referenced project in projects, which must be in the
// order they were listed.
func (r ProjectRef) Resolve(projects []service.Project) (service.Project, error) {
	if r.ID != "" {
		for _, p := range projects {
			if p.ID == r.ID {
				return p, nil
			}
		}
		return service.Project{}, fmt.Errorf("project not found: %s", r.ID)
	}
	if r.Num < 1 || r.Num > len(projects) {
		return service.Project{}, fmt.Errorf("project number out of range: %d", r.Num)
	}
	return projects[r.Num-1], nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
