// Package subprocess resolves executables on PATH (memoized) and
// invokes them, returning captured output or a typed failure (spec §6
// C2). PATH resolution is memoized via an LRU cache rather than a
// process-wide map, per the design note against lazy module-level
// singletons (spec §9) — the cache is owned by the Runner value the
// composition root constructs once.
package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrCommandUnavailable is returned when a command cannot be resolved
// on PATH.
var ErrCommandUnavailable = errors.New("subprocess: command unavailable")

// ProcessFailedError reports a subprocess that exited non-zero.
type ProcessFailedError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *ProcessFailedError) Error() string {
	return fmt.Sprintf("subprocess: %s %v failed: %v (stderr: %s)", e.Command, e.Args, e.Err, e.Stderr)
}

func (e *ProcessFailedError) Unwrap() error { return e.Err }

// Result is the captured output of a successful invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Runner resolves commands (memoized) and invokes them.
type Runner struct {
	resolveCache *lru.Cache[string, string]
}

// NewRunner constructs a Runner with a bounded memoization cache for
// PATH lookups.
func NewRunner() *Runner {
	cache, err := lru.New[string, string](256)
	if err != nil {
		// Only returns an error for a non-positive size, which 256 never is.
		panic(err)
	}
	return &Runner{resolveCache: cache}
}

// Resolve returns the absolute path of command on PATH, memoized.
func (r *Runner) Resolve(command string) (string, error) {
	if path, ok := r.resolveCache.Get(command); ok {
		return path, nil
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCommandUnavailable, command)
	}
	r.resolveCache.Add(command, path)
	return path, nil
}

// Call resolves cmd and invokes it with args in dir, returning
// captured stdout/stderr or a ProcessFailedError.
func (r *Runner) Call(ctx context.Context, dir, cmd string, args ...string) (Result, error) {
	path, err := r.Resolve(cmd)
	if err != nil {
		return Result{}, err
	}

	command := exec.CommandContext(ctx, path, args...)
	command.Dir = dir

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{Stdout: stdout.String(), Stderr: stderr.String()}, &ProcessFailedError{
			Command: cmd,
			Args:    args,
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Err:     err,
		}
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
