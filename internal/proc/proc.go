// Package proc executes external commands the way every stage of the
// pipeline needs to: run to completion, inherit the environment, and turn
// a non-zero exit, a signal, or invalid UTF-8 output into a typed error.
package proc

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/pop-os/popci/internal/errs"
)

// Run executes cmd with args, discarding stdout, and requires a zero exit.
func Run(ctx context.Context, dir, cmd string, args ...string) error {
	return run(ctx, dir, nil, nil, cmd, args...)
}

// RunEnv is Run with additional environment variables appended to the
// inherited os.Environ().
func RunEnv(ctx context.Context, dir string, env []string, cmd string, args ...string) error {
	return run(ctx, dir, env, nil, cmd, args...)
}

// Capture executes cmd with args and returns its stdout as UTF-8. Invalid
// UTF-8 is treated as failure, per spec.
func Capture(ctx context.Context, dir, cmd string, args ...string) (string, error) {
	var out bytes.Buffer
	if err := run(ctx, dir, nil, &out, cmd, args...); err != nil {
		return "", err
	}
	if !utf8.Valid(out.Bytes()) {
		return "", &errs.Process{Cmd: cmd, Stdout: "output was not valid UTF-8"}
	}
	return out.String(), nil
}

// RunLogged is Run, but additionally tees stdout+stderr to a log file under
// logDir, so the output survives for later inspection. The builders do not
// call it: sbuild and debuild run through Run.
func RunLogged(ctx context.Context, dir, logDir, logName, cmd string, args ...string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return &errs.Filesystem{Op: "create", Path: logDir, Cause: err}
	}
	logPath := filepath.Join(logDir, logName)
	f, err := os.Create(logPath)
	if err != nil {
		return &errs.Filesystem{Op: "create", Path: logPath, Cause: err}
	}
	defer f.Close()

	// exec.Command, not CommandContext: a canceled ctx must not kill an
	// in-flight subprocess.
	c := exec.Command(cmd, args...)
	if dir != "" {
		c.Dir = dir
	}
	c.Env = os.Environ()
	c.Stdout = f
	c.Stderr = f
	log.WithField("cmd", c.Args).Debug("running")
	return eval(cmd, c.Run())
}

func run(ctx context.Context, dir string, extraEnv []string, stdout *bytes.Buffer, cmd string, args ...string) error {
	// exec.Command, not CommandContext: a canceled ctx must not kill an
	// in-flight subprocess.
	c := exec.Command(cmd, args...)
	if dir != "" {
		c.Dir = dir
	}
	c.Env = os.Environ()
	if len(extraEnv) > 0 {
		c.Env = append(c.Env, extraEnv...)
	}
	if stdout != nil {
		c.Stdout = stdout
	}
	var stderr bytes.Buffer
	c.Stderr = &stderr
	log.WithField("cmd", c.Args).Debug("running")
	if err := eval(cmd, c.Run()); err != nil {
		if pe, ok := err.(*errs.Process); ok {
			pe.Stdout = stderr.String()
		}
		return err
	}
	return nil
}

func eval(cmd string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if !asExitError(err, &exitErr) {
		return &errs.Process{Cmd: cmd, Stdout: err.Error()}
	}
	status := exitErr.ProcessState
	if ws, ok := status.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			return &errs.Process{Cmd: cmd, Signal: ws.Signal().String()}
		}
		if ws.Exited() {
			return &errs.Process{Cmd: cmd, Code: ws.ExitStatus()}
		}
	}
	if code := status.ExitCode(); code >= 0 {
		return &errs.Process{Cmd: cmd, Code: code}
	}
	return &errs.Process{Cmd: cmd}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
