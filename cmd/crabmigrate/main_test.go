package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"crabmigrate/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func TestRootCommandShowsHelp(t *testing.T) {
	out, err := runCLI(t, "--config", writeTestConfig(t))
	if err != nil {
		t.Fatalf("root command: %v", err)
	}
	requireContains(t, out, "Usage:")
	requireContains(t, out, "migrate")
}

func TestStatusCommandJSON(t *testing.T) {
	server := newFakeAPI(t, fakeAPIState{pending: 2, completed: 3, failed: 1})
	defer server.Close()

	out, err := runCLI(t, "--config", writeTestConfig(t), "--url", server.URL, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, `"pending": 2`)
	requireContains(t, out, `"total": 6`)
}

func TestStatusCommandTable(t *testing.T) {
	server := newFakeAPI(t, fakeAPIState{completed: 4})
	defer server.Close()

	out, err := runCLI(t, "--config", writeTestConfig(t), "--url", server.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Migration Status")
	requireContains(t, out, "Completed")
	requireContains(t, out, "4")
}

func TestDiscoverCommandWalksPages(t *testing.T) {
	server := newFakeAPI(t, fakeAPIState{discoverPages: 3})
	defer server.Close()

	out, err := runCLI(t, "--config", writeTestConfig(t), "--url", server.URL, "discover")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	requireContains(t, out, "3 assets scanned")
}

func TestRewriteCommandAccumulates(t *testing.T) {
	server := newFakeAPI(t, fakeAPIState{rewritePages: 2, replacedPerPage: 5})
	defer server.Close()

	out, err := runCLI(t, "--config", writeTestConfig(t), "--url", server.URL, "rewrite")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	requireContains(t, out, "rewrote 10")
}

func TestStatusCommandSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()

	_, err := runCLI(t, "--config", writeTestConfig(t), "--url", server.URL, "status")
	if err == nil {
		t.Fatal("expected error when API is unreachable")
	}
}
