package config

import (
	"os"
	"path/filepath"

	"github.com/pop-os/popci/internal/errs"
)

// Dirs is the _build/ directory layout used across a run.
type Dirs struct {
	Base   string // current working directory
	Build  string // Base/_build
	Git    string // Build/git
	Source string // Build/source
	Binary string // Build/binary
	Repo   string // Build/repos
}

func newDirs(base string) Dirs {
	build := filepath.Join(base, "_build")
	return Dirs{
		Base:   base,
		Build:  build,
		Git:    filepath.Join(build, "git"),
		Source: filepath.Join(build, "source"),
		Binary: filepath.Join(build, "binary"),
		Repo:   filepath.Join(build, "repos"),
	}
}

// setup creates the additive directories (git, source, binary) and wipes +
// recreates the publisher output directory (repo): repo is the only
// directory truncated on startup.
func (d Dirs) setup() error {
	for _, dir := range []string{d.Git, d.Source, d.Binary} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &errs.Filesystem{Op: "create", Path: dir, Cause: err}
		}
	}

	if _, err := os.Stat(d.Repo); err == nil {
		if err := os.RemoveAll(d.Repo); err != nil {
			return &errs.Filesystem{Op: "remove", Path: d.Repo, Cause: err}
		}
	}
	if err := os.MkdirAll(d.Repo, 0755); err != nil {
		return &errs.Filesystem{Op: "create", Path: d.Repo, Cause: err}
	}

	return nil
}
