package forge_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pop-os/popci/internal/forge"
)

// pagedRepos serves total repos across pages of perPage, mimicking the real
// API's Link-header-free pagination that the client infers purely from
// page length (page, per_page=100, stop when a page is shorter than
// per_page).
func pagedRepos(total int) http.HandlerFunc {
	const perPage = 100
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &page)
		}
		start := (page - 1) * perPage
		end := start + perPage
		if end > total {
			end = total
		}
		var out []map[string]interface{}
		for i := start; i < end; i++ {
			out = append(out, map[string]interface{}{
				"name":     fmt.Sprintf("repo-%d", i),
				"html_url": fmt.Sprintf("https://example.invalid/repo-%d", i),
			})
		}
		json.NewEncoder(w).Encode(out)
	}
}

func TestOrganizationReposPaginatesUntilShortPage(t *testing.T) {
	srv := httptest.NewServer(pagedRepos(250))
	defer srv.Close()

	c, err := forge.NewClientAt(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClientAt: %v", err)
	}

	repos, err := c.OrganizationRepos(context.Background(), "pop-os")
	if err != nil {
		t.Fatalf("OrganizationRepos: %v", err)
	}
	if len(repos) != 250 {
		t.Fatalf("got %d repos, want 250", len(repos))
	}
	if repos[0].Name != "repo-0" || repos[249].Name != "repo-249" {
		t.Errorf("unexpected repo ordering: first=%q last=%q", repos[0].Name, repos[249].Name)
	}
}

func TestOrganizationReposEmpty(t *testing.T) {
	srv := httptest.NewServer(pagedRepos(0))
	defer srv.Close()

	c, err := forge.NewClientAt(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClientAt: %v", err)
	}
	repos, err := c.OrganizationRepos(context.Background(), "pop-os")
	if err != nil {
		t.Fatalf("OrganizationRepos: %v", err)
	}
	if len(repos) != 0 {
		t.Errorf("got %d repos, want 0", len(repos))
	}
}

func pagedBranches(total int) http.HandlerFunc {
	const perPage = 100
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &page)
		}
		start := (page - 1) * perPage
		end := start + perPage
		if end > total {
			end = total
		}
		var out []map[string]interface{}
		for i := start; i < end; i++ {
			out = append(out, map[string]interface{}{
				"name":   fmt.Sprintf("branch-%d", i),
				"commit": map[string]interface{}{"sha": fmt.Sprintf("%040d", i)},
			})
		}
		json.NewEncoder(w).Encode(out)
	}
}

func TestRepositoryBranchesPaginatesExactMultiple(t *testing.T) {
	// Exactly one full page (100) plus a final empty page: the client must
	// stop on the short (zero-length) page rather than looping forever.
	srv := httptest.NewServer(pagedBranches(100))
	defer srv.Close()

	c, err := forge.NewClientAt(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClientAt: %v", err)
	}
	branches, err := c.RepositoryBranches(context.Background(), "pop-os", "popci")
	if err != nil {
		t.Fatalf("RepositoryBranches: %v", err)
	}
	if len(branches) != 100 {
		t.Fatalf("got %d branches, want 100", len(branches))
	}
}

func TestRepositoryBranchesSingleShortPage(t *testing.T) {
	srv := httptest.NewServer(pagedBranches(7))
	defer srv.Close()

	c, err := forge.NewClientAt(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClientAt: %v", err)
	}
	branches, err := c.RepositoryBranches(context.Background(), "pop-os", "popci")
	if err != nil {
		t.Fatalf("RepositoryBranches: %v", err)
	}
	if len(branches) != 7 {
		t.Fatalf("got %d branches, want 7", len(branches))
	}
	if branches[3].SHA != fmt.Sprintf("%040d", 3) {
		t.Errorf("branches[3].SHA = %q", branches[3].SHA)
	}
}

func TestSetStatusPostsCommitStatus(t *testing.T) {
	var gotState, gotContext string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/pop-os/popci/statuses/deadbeef", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			State   string `json:"state"`
			Context string `json:"context"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotState, gotContext = body.State, body.Context
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := forge.NewClientAt(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClientAt: %v", err)
	}

	err = c.SetStatus(context.Background(), "pop-os", "popci", "deadbeef", forge.StatusContext{
		Context: "popci/build", Description: "building", State: "pending",
	})
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if gotState != "pending" || gotContext != "popci/build" {
		t.Errorf("server received state=%q context=%q", gotState, gotContext)
	}
}
