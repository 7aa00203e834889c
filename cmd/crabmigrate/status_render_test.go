package main

import (
	"fmt"
	"strings"
	"testing"

	"crabmigrate/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("overall", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Overall:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("overall", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestOverallStatus(t *testing.T) {
	cases := []struct {
		name    string
		status  api.MigrationStatus
		kind    statusKind
		message string
	}{
		{"empty", api.MigrationStatus{}, statusInfo, "No tracked assets yet"},
		{"done", api.MigrationStatus{Completed: 3, Total: 3}, statusOK, "3/3 completed"},
		{"failures", api.MigrationStatus{Completed: 2, Failed: 1, Total: 4}, statusWarn, "2/4 completed, 1 failed"},
		{"in progress", api.MigrationStatus{Pending: 2, Completed: 1, Total: 3}, statusInfo, "1/3 completed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := overallKind(&tc.status); got != tc.kind {
				t.Fatalf("kind = %d, want %d", got, tc.kind)
			}
			if got := overallMessage(&tc.status); got != tc.message {
				t.Fatalf("message = %q, want %q", got, tc.message)
			}
		})
	}
}

func TestRenderTableFillsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	if !strings.Contains(out, "only") {
		t.Fatalf("expected rendered cell, got:\n%s", out)
	}
}
