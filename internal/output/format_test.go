package output

import (
	"bytes"
	"testing"
	"time"

	"projectdesk/internal/service"
	"projectdesk/internal/testutil"
)

func date(y, m, d int) *service.Date {
	v := service.NewDate(y, time.Month(m), d)
	return &v
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Write thesis", "Write thesis"},
		{"", "(untitled)"},
		{"   ", "(untitled)"},
		{"two\nlines", "two lines"},
		{"crlf\r\nend", "crlf  end"},
	}
	for _, tt := range tests {
		if got := normalizeTitle(tt.in); got != tt.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatProjects(t *testing.T) {
	projects := []service.Project{
		{
			ID: "p1", Project: "Taxes", Area: "Home", Status: service.StatusInProgress,
			Priority: service.PriorityHigh, DueDate: date(2025, 4, 15), NextAction: "find receipts",
		},
		{
			ID: "p2", Project: "Write thesis", Status: service.StatusBlocked,
			Priority: service.PriorityMedium, DueDate: date(2025, 6, 1), Notes: "waiting on\nadvisor",
		},
		{ID: "p3", Project: "", Status: service.StatusNotStarted, Priority: service.PriorityLow},
	}

	var buf bytes.Buffer
	FormatProjects(&buf, projects)
	testutil.Golden(t, "projects", buf.Bytes())
}

func TestFormatSession(t *testing.T) {
	var buf bytes.Buffer
	FormatSession(&buf, nil)
	FormatSession(&buf, &service.Session{UserID: "u-1", Email: "ada@example.com"})

	want := "not logged in\nlogged in as ada@example.com (u-1)\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}
