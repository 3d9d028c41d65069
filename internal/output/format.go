// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"projectdesk/internal/service"
)

const (
	// Separator underlines the table header.
	Separator = "------------"

	noDate = "-"
)

// FormatHeader writes the column header of the project table.
func FormatHeader(w io.Writer) {
	fmt.Fprintf(w, "%4s  %-10s  %-6s  %-11s  %s\n", "#", "DUE", "PRI", "STATUS", "PROJECT")
	fmt.Fprintln(w, Separator)
}

// FormatProject formats one project row.
// Format: "{N:>4}  {DUE:<10}  {PRI:<6}  {STATUS:<11}  {PROJECT}[ [AREA]]\n",
// followed by indented "next:" and "notes:" lines when those fields are set.
func FormatProject(w io.Writer, num int, p service.Project) {
	due := noDate
	if p.DueDate != nil {
		due = p.DueDate.String()
	}
	title := normalizeTitle(p.Project)
	if area := strings.TrimSpace(p.Area); area != "" {
		title += " [" + normalizeLine(area) + "]"
	}
	fmt.Fprintf(w, "%4d  %-10s  %-6s  %-11s  %s\n", num, due, p.Priority, p.Status, title)

	if next := normalizeLine(p.NextAction); next != "" {
		fmt.Fprintf(w, "%6s%s\n", "", "next: "+next)
	}
	if notes := normalizeLine(p.Notes); notes != "" {
		fmt.Fprintf(w, "%6s%s\n", "", "notes: "+notes)
	}
}

// FormatProjects writes the header and every project, numbered from 1.
func FormatProjects(w io.Writer, projects []service.Project) {
	FormatHeader(w)
	for i, p := range projects {
		FormatProject(w, i+1, p)
	}
}

// FormatSession describes the signed-in user, or its absence.
func FormatSession(w io.Writer, s *service.Session) {
	if s == nil {
		fmt.Fprintln(w, "not logged in")
		return
	}
	fmt.Fprintf(w, "logged in as %s (%s)\n", normalizeLine(s.Email), s.UserID)
}

// normalizeTitle normalizes a project name for display.
// - Empty or whitespace-only names become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = normalizeLine(title)
	if title == "" {
		return "(untitled)"
	}
	return title
}

// normalizeLine folds newlines into spaces and trims the result.
func normalizeLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
