// Package gitrepo is a thin wrapper over the git command line tool.
package gitrepo

import (
	"context"
	"strings"

	"github.com/pop-os/popci/internal/errs"
	"github.com/pop-os/popci/internal/proc"
)

// Clone clones url (recursively) into a subdirectory of parentDir.
func Clone(ctx context.Context, parentDir, url string) error {
	if err := proc.Run(ctx, parentDir, "git", "clone", "--recursive", url); err != nil {
		return &errs.Git{Cause: err}
	}
	return nil
}

// Fetch runs `git fetch origin` in dir.
func Fetch(ctx context.Context, dir string) error {
	if err := proc.Run(ctx, dir, "git", "fetch", "origin"); err != nil {
		return &errs.Git{Cause: err}
	}
	return nil
}

// CheckoutID detaches HEAD at id, syncs and initializes submodules, and
// removes untracked files. Callers MUST serialize calls to CheckoutID (and
// Fetch) against the same working tree: concurrent mutating invocations of
// git in one tree corrupt its refs.
func CheckoutID(ctx context.Context, dir, id string) error {
	if err := proc.Run(ctx, dir, "git", "checkout", "--force", "--detach", id); err != nil {
		return &errs.Git{Cause: err}
	}
	if err := proc.Run(ctx, dir, "git", "submodule", "sync", "--recursive"); err != nil {
		return &errs.Git{Cause: err}
	}
	if err := proc.Run(ctx, dir, "git", "submodule", "update", "--init", "--recursive"); err != nil {
		return &errs.Git{Cause: err}
	}
	return Clean(ctx, dir)
}

// Clean removes untracked files and directories, including ignored ones.
func Clean(ctx context.Context, dir string) error {
	if err := proc.Run(ctx, dir, "git", "clean", "-xfd"); err != nil {
		return &errs.Git{Cause: err}
	}
	return nil
}

// ArchiveID produces an uncompressed tar of the tree at id.
func ArchiveID(ctx context.Context, dir, id, outPath string) error {
	if err := proc.Run(ctx, dir, "git", "archive", "--format", "tar", "-o", outPath, id); err != nil {
		return &errs.Git{Cause: err}
	}
	return nil
}

// DatetimeID returns the RFC-2822 commit date of id, trimmed.
func DatetimeID(ctx context.Context, dir, id string) (string, error) {
	out, err := proc.Capture(ctx, dir, "git", "log", "-1", "--pretty=format:%cD", id)
	if err != nil {
		return "", &errs.Git{Cause: err}
	}
	return strings.TrimSpace(out), nil
}

// TimestampID returns the UNIX timestamp of id as decimal text, trimmed.
func TimestampID(ctx context.Context, dir, id string) (string, error) {
	out, err := proc.Capture(ctx, dir, "git", "log", "-1", "--pretty=format:%ct", id)
	if err != nil {
		return "", &errs.Git{Cause: err}
	}
	return strings.TrimSpace(out), nil
}

// LocalBranchHeads returns a branch name -> commit id mapping for dir's
// local branches.
func LocalBranchHeads(ctx context.Context, dir string) (map[string]string, error) {
	out, err := proc.Capture(ctx, dir, "git", "branch", "--format=%(refname:lstrip=2) %(objectname)")
	if err != nil {
		return nil, &errs.Git{Cause: err}
	}

	heads := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		heads[fields[0]] = fields[1]
	}
	return heads, nil
}
