// Package popcitest provides subprocess fixtures for component and
// integration tests: fake external-tool scripts installed onto PATH, and a
// small real-git repository builder for gitrepo/fetcher/collate tests.
package popcitest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// RemoveAll wraps os.RemoveAll and fails the test on error.
func RemoveAll(t testing.TB, path string) {
	t.Helper()
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

// FakeTool writes an executable shell script named name into dir, with
// body as its script content (shebang added automatically). Use
// PrependPATH to make dir, and therefore name, resolve ahead of any real
// tool of the same name.
func FakeTool(t testing.TB, dir, name, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts require a POSIX shell")
	}
	path := filepath.Join(dir, name)
	content := "#!/bin/sh\nset -e\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("writing fake tool %s: %v", name, err)
	}
}

// PrependPATH puts dir at the front of PATH for the duration of the
// calling test, restoring the previous value on cleanup.
func PrependPATH(t testing.TB, dir string) {
	t.Helper()
	old, had := os.LookupEnv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+old); err != nil {
		t.Fatalf("extending PATH: %v", err)
	}
	t.Cleanup(func() {
		if had {
			os.Setenv("PATH", old)
		} else {
			os.Unsetenv("PATH")
		}
	})
}

// RecordInvocations returns a fake-tool body that appends its own argv (as
// a single line) to logPath, for tests asserting a tool was (or was not)
// invoked.
func RecordInvocations(logPath string) string {
	return fmt.Sprintf(`echo "$0 $*" >> %s`, shellQuote(logPath))
}

func shellQuote(s string) string {
	return "'" + s + "'"
}

// RequireGit skips the test if the real git binary isn't on PATH — the
// gitrepo/fetcher/collate fixtures below shell out to it directly rather
// than faking it.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found on PATH")
	}
}

// InitRepo creates a git repository at dir with a single commit containing
// files, and returns the commit's full SHA. Used to build fixtures for
// gitrepo/fetcher/collate tests without a real forge.
func InitRepo(t testing.TB, dir string, files map[string]string) string {
	t.Helper()
	RequireGit(t)

	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=popci-test", "GIT_AUTHOR_EMAIL=test@popci.invalid",
			"GIT_COMMITTER_NAME=popci-test", "GIT_COMMITTER_EMAIL=test@popci.invalid",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
		return string(out)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	run("init", "-q", "-b", "main")
	for name, contents := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(contents), 0644); err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
	}
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return trimNewline(run("rev-parse", "HEAD"))
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
