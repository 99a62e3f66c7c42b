package blacklist_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pop-os/popci/internal/blacklist"
)

func TestLoadAbsentCreatesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist")
	store, entries, err := blacklist.Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want empty", entries)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("blacklist file not created: %v", err)
	}
	_ = store
}

func TestLoadParsesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist")
	if err := os.WriteFile(path, []byte("aaaa111 focal\nbbbb222 jammy\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, entries, err := blacklist.Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %v, want 2", entries)
	}
	if !blacklist.Contains(entries, "aaaa111", "focal") {
		t.Errorf("Contains(aaaa111, focal) = false, want true")
	}
	if blacklist.Contains(entries, "aaaa111", "jammy") {
		t.Errorf("Contains(aaaa111, jammy) = true, want false")
	}
}

// TestLoadCorruptRecreatesEmpty covers the invariant that on the first
// malformed line, the file is truncated and treated as empty.
func TestLoadCorruptRecreatesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist")
	if err := os.WriteFile(path, []byte("not-a-valid-line\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, entries, err := blacklist.Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want empty after corruption recovery", entries)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recreated file: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("recreated file not empty: %q", b)
	}
}

// TestLoadRetryTruncates covers retry mode: the blacklist is truncated at
// startup even if it parses fine.
func TestLoadRetryTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist")
	if err := os.WriteFile(path, []byte("aaa focal\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, entries, err := blacklist.Load(path, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want empty under retry", entries)
	}
}

func TestWriterAppendsAndClosesDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist")
	store, _, err := blacklist.Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entries, done := store.Writer(context.Background())
	entries <- blacklist.Entry{CommitID: "aaa", Series: "focal"}
	entries <- blacklist.Entry{CommitID: "bbb", Series: "jammy"}
	close(entries)
	<-done

	_, reloaded, err := blacklist.Load(path, false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded) != 2 {
		t.Fatalf("reloaded = %v, want 2 entries", reloaded)
	}
	if !blacklist.Contains(reloaded, "aaa", "focal") || !blacklist.Contains(reloaded, "bbb", "jammy") {
		t.Errorf("reloaded entries missing expected pairs: %v", reloaded)
	}
}
