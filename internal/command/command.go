// Package command runs external programs synchronously.
//
// Every package-manager, git and notebook invocation in refdrift goes through
// a Runner so that tests can substitute a recording fake. A non-zero exit
// status is always surfaced as an *Error; callers treat it as fatal.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command in a working directory and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env is appended to the current process environment when non-empty.
	Env []string
}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes name with args in dir. Stdout and stderr are captured; on
// failure both are attached to the returned *Error.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cmdErr := &Error{
			Cmd:      Line(name, args...),
			Dir:      dir,
			Output:   strings.TrimSpace(stdout.String() + "\n" + stderr.String()),
			ExitCode: -1,
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		return strings.TrimSpace(stdout.String()), cmdErr
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Error describes a failed external command.
type Error struct {
	Cmd      string // Command line that was run
	Dir      string // Working directory
	Output   string // Combined stdout/stderr
	ExitCode int    // Exit status, -1 if the process never started or was killed
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("command %q failed (exit %d)", e.Cmd, e.ExitCode)
	if e.Output != "" {
		return msg + ": " + e.Output
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCommandError reports whether err wraps a failed external command.
func IsCommandError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Line renders a command and its arguments as a single display string.
func Line(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
