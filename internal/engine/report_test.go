package engine

import (
	"errors"
	"testing"
)

func TestToolStatus(t *testing.T) {
	tests := []struct {
		name     string
		deployed int
		errors   int
		want     ToolStatus
	}{
		{"clean deploy", 5, 0, StatusSuccess},
		{"nothing deployed no errors", 0, 0, StatusSuccess},
		{"some deployed some failed", 3, 2, StatusPartial},
		{"all failed", 0, 4, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toolStatus(tt.deployed, tt.errors); got != tt.want {
				t.Errorf("toolStatus(%d, %d) = %q, want %q", tt.deployed, tt.errors, got, tt.want)
			}
		})
	}
}

func TestFinalizeDerivesSuccess(t *testing.T) {
	tests := []struct {
		name    string
		results []ToolSyncResult
		errors  []SyncError
		want    bool
	}{
		{
			name: "all success",
			results: []ToolSyncResult{
				{Tool: "claude", Status: StatusSuccess, FilesDeployed: 2},
				{Tool: "nvim", Status: StatusSuccess, FilesDeployed: 1},
			},
			want: true,
		},
		{
			name: "skips do not fail the sync",
			results: []ToolSyncResult{
				{Tool: "claude", Status: StatusSuccess, FilesDeployed: 2},
				{Tool: "zed", Status: StatusSkipped},
			},
			want: true,
		},
		{
			name: "partial tool fails the sync",
			results: []ToolSyncResult{
				{Tool: "claude", Status: StatusPartial, FilesDeployed: 1},
			},
			errors: []SyncError{{Tool: "claude", Recoverable: true, Err: errors.New("disk full")}},
			want:   false,
		},
		{
			name: "failed tool fails the sync",
			results: []ToolSyncResult{
				{Tool: "claude", Status: StatusFailed},
			},
			errors: []SyncError{{Tool: "claude", Err: errors.New("boom")}},
			want:   false,
		},
		{
			name: "errors without tool results fail the sync",
			results: []ToolSyncResult{
				{Tool: "claude", Status: StatusSuccess, FilesDeployed: 1},
			},
			errors: []SyncError{{Tool: "other", Recoverable: true, Err: errors.New("bad file")}},
			want:   false,
		},
		{
			name:    "empty sync succeeds",
			results: nil,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewSyncReport(false)
			report.Results = tt.results
			for _, e := range tt.errors {
				report.AddError(e)
			}
			report.Finalize()

			if report.Success != tt.want {
				t.Errorf("Success = %v, want %v", report.Success, tt.want)
			}
			if report.EndTime.Before(report.StartTime) {
				t.Error("EndTime should not precede StartTime")
			}
		})
	}
}

func TestFinalizeCountsFiles(t *testing.T) {
	report := NewSyncReport(true)
	report.Results = []ToolSyncResult{
		{Tool: "claude", Status: StatusSuccess, FilesDeployed: 3, FilesSkipped: 1},
		{Tool: "nvim", Status: StatusSuccess, FilesDeployed: 2},
		{Tool: "zed", Status: StatusSkipped},
	}
	report.Finalize()

	if report.TotalFiles != 6 {
		t.Errorf("TotalFiles = %d, want 6", report.TotalFiles)
	}
}

func TestSyncErrorFormat(t *testing.T) {
	inner := errors.New("permission denied")

	tests := []struct {
		name string
		err  SyncError
		want string
	}{
		{"tool and path", SyncError{Tool: "claude", Path: "/x", Err: inner}, "claude: /x: permission denied"},
		{"tool only", SyncError{Tool: "claude", Err: inner}, "claude: permission denied"},
		{"bare", SyncError{Err: inner}, "permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(SyncError{Err: inner}, inner) {
		t.Error("SyncError should unwrap to its cause")
	}
}

func TestScopeSelection(t *testing.T) {
	for _, s := range []ScopeSelection{ScopeAll, ScopeUser, ScopeProject, ""} {
		if !s.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}
	if ScopeSelection("global").IsValid() {
		t.Error("IsValid(global) = true, want false")
	}

	if got := ScopeUser.scopes(); len(got) != 1 || got[0] != "user" {
		t.Errorf("ScopeUser.scopes() = %v", got)
	}
	if got := ScopeAll.scopes(); len(got) != 2 {
		t.Errorf("ScopeAll.scopes() = %v, want both scopes", got)
	}
	if got := ScopeSelection("").scopes(); len(got) != 2 {
		t.Errorf("empty selection scopes() = %v, want both scopes", got)
	}
}
