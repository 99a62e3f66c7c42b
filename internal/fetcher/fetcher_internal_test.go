package fetcher

import (
	"testing"

	"github.com/pop-os/popci/internal/forge"
)

func TestFilterNamespacedDropsSlashedNames(t *testing.T) {
	in := []forge.Branch{
		{Name: "main", SHA: "a"},
		{Name: "release/20.04", SHA: "b"},
		{Name: "no-build/experiment", SHA: "c"},
		{Name: "feature-x", SHA: "d"},
	}
	got := filterNamespaced(in)
	if len(got) != 2 {
		t.Fatalf("filterNamespaced returned %d branches, want 2: %+v", len(got), got)
	}
	for _, b := range got {
		if b.Name == "release/20.04" || b.Name == "no-build/experiment" {
			t.Errorf("namespaced branch %q was not filtered out", b.Name)
		}
	}
}

func TestFilterNamespacedEmptyInput(t *testing.T) {
	got := filterNamespaced(nil)
	if len(got) != 0 {
		t.Errorf("filterNamespaced(nil) = %v, want empty", got)
	}
}
