// Package errs collects the error kinds used across popci. Each kind is a
// distinct Go type rather than a shared sentinel, so that callers can use
// errors.As to recover kind-specific context (the offending path, command,
// or cause) while the cause chain remains intact via Unwrap.
package errs

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// Wrap annotates cause with context using golang.org/x/xerrors.Errorf, for
// call sites that don't carry one of the kinds below (e.g. a builder
// failure whose build log couldn't be attached as context).
func Wrap(context string, cause error) error {
	return xerrors.Errorf("%s: %w", context, cause)
}

// Config errors are fatal: missing file, unparseable, unable to prepare
// directories.
type Config struct {
	Op    string // "locate", "stat", "read", "parse", "getwd", "setup-dirs"
	Cause error
}

func (e *Config) Error() string { return fmt.Sprintf("config: %s: %v", e.Op, e.Cause) }
func (e *Config) Unwrap() error { return e.Cause }

// Forge errors are bounded to a single organization or repository.
type Forge struct {
	Org, Repo string
	Cause     error
}

func (e *Forge) Error() string {
	if e.Repo != "" {
		return fmt.Sprintf("forge: %s/%s: %v", e.Org, e.Repo, e.Cause)
	}
	return fmt.Sprintf("forge: %s: %v", e.Org, e.Cause)
}
func (e *Forge) Unwrap() error { return e.Cause }

// Git errors are bounded to a single repository.
type Git struct {
	Repo, Branch string
	Cause        error
}

func (e *Git) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("git: %s/%s: %v", e.Repo, e.Branch, e.Cause)
	}
	return fmt.Sprintf("git: %s: %v", e.Repo, e.Cause)
}
func (e *Git) Unwrap() error { return e.Cause }

// Process errors are bounded to a single build cell. Code and Signal are
// mutually exclusive; both zero means the wait status was unrecognized.
type Process struct {
	Cmd    string
	Code   int
	Signal string
	Stdout string // captured stdout/stderr context, if any
}

func (e *Process) Error() string {
	switch {
	case e.Signal != "":
		return fmt.Sprintf("process: %s terminated with signal %s", e.Cmd, e.Signal)
	case e.Code != 0:
		return fmt.Sprintf("process: %s exited with status %d", e.Cmd, e.Code)
	default:
		return fmt.Sprintf("process: %s exited with unknown status", e.Cmd)
	}
}

// Parse errors are fatal for the enclosing build cell only.
type Parse struct {
	What  string // "dsc", "control", "commit date"
	Cause error
}

func (e *Parse) Error() string { return fmt.Sprintf("parse: %s: %v", e.What, e.Cause) }
func (e *Parse) Unwrap() error { return e.Cause }

// Filesystem errors annotate the offending path and are bounded to the
// smallest enclosing work unit.
type Filesystem struct {
	Op    string // "create", "remove", "read", "write", "render", "verify"
	Path  string
	Cause error
}

func (e *Filesystem) Error() string {
	return fmt.Sprintf("filesystem: unable to %s %s: %v", e.Op, e.Path, e.Cause)
}
func (e *Filesystem) Unwrap() error { return e.Cause }

// Chain renders err and its full cause chain, one "caused by" line per
// wrapped error, for logging.
func Chain(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(err.Error())
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cause := u.Unwrap()
		if cause == nil {
			break
		}
		b.WriteString("\n    caused by: ")
		b.WriteString(cause.Error())
		err = cause
	}
	return b.String()
}
