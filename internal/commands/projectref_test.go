package commands

import (
	"testing"

	"projectdesk/internal/service"
)

func TestParseProjectRef_Number(t *testing.T) {
	ref, err := ParseProjectRef([]string{"5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Num != 5 || ref.ID != "" {
		t.Errorf("expected row 5, got %+v", ref)
	}
}

func TestParseProjectRef_ID(t *testing.T) {
	ref, err := ParseProjectRef([]string{"3f2a-77"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != "3f2a-77" || ref.Num != 0 {
		t.Errorf("expected id 3f2a-77, got %+v", ref)
	}
}

func TestParseProjectRef_Errors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "project reference required"},
		{[]string{"  "}, "project reference required"},
		{[]string{"1", "2"}, "too many arguments: 2"},
	}
	for _, tt := range tests {
		_, err := ParseProjectRef(tt.args)
		if err == nil || err.Error() != tt.want {
			t.Errorf("ParseProjectRef(%q): expected %q, got %v", tt.args, tt.want, err)
		}
	}
}

func TestProjectRefResolve(t *testing.T) {
	projects := []service.Project{{ID: "a", Project: "First"}, {ID: "b", Project: "Second"}}

	tests := []struct {
		ref     ProjectRef
		want    string
		wantErr string
	}{
		{ref: ProjectRef{Num: 1}, want: "a"},
		{ref: ProjectRef{Num: 2}, want: "b"},
		{ref: ProjectRef{ID: "b"}, want: "b"},
		{ref: ProjectRef{Num: 3}, wantErr: "project number out of range: 3"},
		{ref: ProjectRef{Num: 0}, wantErr: "project number out of range: 0"},
		{ref: ProjectRef{ID: "zzz"}, wantErr: "project not found: zzz"},
	}
	for _, tt := range tests {
		p, err := tt.ref.Resolve(projects)
		if tt.wantErr != "" {
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("%+v: expected %q, got %v", tt.ref, tt.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%+v: unexpected error: %v", tt.ref, err)
			continue
		}
		if p.ID != tt.want {
			t.Errorf("%+v: expected %s, got %s", tt.ref, tt.want, p.ID)
		}
	}
}
