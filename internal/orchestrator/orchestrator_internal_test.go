package orchestrator

import (
	"testing"

	"github.com/pop-os/popci/internal/config"
	"github.com/pop-os/popci/internal/forge"
)

func TestFilterReposExcludesMatchingPrefix(t *testing.T) {
	org := config.Organization{Name: "pop-os", StartsFilter: "wip-"}
	repos := []forge.Repo{{Name: "wip-scratch"}, {Name: "popci"}, {Name: "wip-other"}}
	got := filterRepos(org, repos)
	if len(got) != 1 || got[0].Name != "popci" {
		t.Errorf("filterRepos = %+v, want only popci", got)
	}
}

func TestFilterReposNoFilterReturnsAll(t *testing.T) {
	org := config.Organization{Name: "pop-os"}
	repos := []forge.Repo{{Name: "a"}, {Name: "b"}}
	got := filterRepos(org, repos)
	if len(got) != 2 {
		t.Errorf("filterRepos = %+v, want all repos unfiltered", got)
	}
}

func TestHasPrefix(t *testing.T) {
	cases := []struct {
		s, prefix string
		want      bool
	}{
		{"wip-scratch", "wip-", true},
		{"popci", "wip-", false},
		{"wip", "wip-", false},
		{"anything", "", true},
	}
	for _, c := range cases {
		if got := hasPrefix(c.s, c.prefix); got != c.want {
			t.Errorf("hasPrefix(%q, %q) = %v, want %v", c.s, c.prefix, got, c.want)
		}
	}
}

func TestConcurrentBuildsDefaultsToOne(t *testing.T) {
	if got := concurrentBuilds(&config.Config{ConcurrentBuilds: 0}); got != 1 {
		t.Errorf("concurrentBuilds(0) = %d, want 1", got)
	}
	if got := concurrentBuilds(&config.Config{ConcurrentBuilds: -3}); got != 1 {
		t.Errorf("concurrentBuilds(-3) = %d, want 1", got)
	}
	if got := concurrentBuilds(&config.Config{ConcurrentBuilds: 4}); got != 4 {
		t.Errorf("concurrentBuilds(4) = %d, want 4", got)
	}
}

func TestPocketSetDeduplicatesAndPreservesOrder(t *testing.T) {
	var s pocketSet
	s.add("main", "jammy")
	s.add("extra", "focal")
	s.add("main", "jammy") // duplicate, must not re-append
	s.add("main", "focal")

	cells := s.cells()
	want := []pocketCell{{"main", "jammy"}, {"extra", "focal"}, {"main", "focal"}}
	if len(cells) != len(want) {
		t.Fatalf("cells = %+v, want %+v", cells, want)
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("cells[%d] = %+v, want %+v", i, cells[i], want[i])
		}
	}
}

func TestBuildVersionFormat(t *testing.T) {
	v := buildVersion()
	if len(v) != 14 {
		t.Errorf("buildVersion() = %q, want a 14-digit YYYYMMDDHHMMSS timestamp", v)
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			t.Errorf("buildVersion() = %q, contains non-digit %q", v, r)
			break
		}
	}
}
