package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"crabmigrate/internal/api"
	"crabmigrate/internal/discovery"
	"crabmigrate/internal/rewrite"
)

type fakeAPIState struct {
	pending   int
	completed int
	failed    int

	discoverPages   int
	rewritePages    int
	replacedPerPage int
}

// newFakeAPI serves just enough of the daemon surface for CLI tests:
// one asset per discovery page, fixed rewrite counters per page.
func newFakeAPI(t *testing.T, state fakeAPIState) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/discover", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		total := state.discoverPages
		if total < 1 {
			total = 1
		}
		result := discovery.Result{
			Current:    page,
			TotalPages: total,
			TotalCount: total,
			IsLast:     page >= total,
		}
		if page <= total && state.discoverPages > 0 {
			result.Images = []discovery.Image{{
				ID:       int64(page),
				Title:    fmt.Sprintf("photo-%d", page),
				URL:      fmt.Sprintf("http://example.test/media/file/photo-%d.jpg", page),
				MimeType: "image/jpeg",
			}}
		}
		writeTestJSON(t, w, result)
	})
	mux.HandleFunc("GET /api/get-migration-status", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(t, w, api.MigrationStatus{
			Pending:   state.pending,
			Completed: state.completed,
			Failed:    state.failed,
			Total:     state.pending + state.completed + state.failed,
		})
	})
	mux.HandleFunc("POST /api/replace-content", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		total := state.rewritePages
		if total < 1 {
			total = 1
		}
		writeTestJSON(t, w, rewrite.PageResult{
			CurrentPage: page,
			Processed:   1,
			Replaced:    state.replacedPerPage,
			TotalPages:  total,
			IsLast:      page >= total,
		})
	})

	return httptest.NewServer(mux)
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}
