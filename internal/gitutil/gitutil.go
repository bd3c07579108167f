// Package gitutil provides typed bindings over the git subprocess
// (spec §6 C4): init, clone, pull, push, commit, and the receive config
// a transactional push target needs.
package gitutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ottojung/volodyslav-scheduler/internal/subprocess"
)

// PushError wraps a failed `git push`, the one failure gitstore's
// retry coordinator treats as transient (spec §4.4).
type PushError struct {
	Dir string
	Err error
}

func (e *PushError) Error() string { return fmt.Sprintf("gitutil: push in %s failed: %v", e.Dir, e.Err) }
func (e *PushError) Unwrap() error { return e.Err }

// Git wraps a subprocess.Runner with the git-specific operations.
type Git struct {
	runner *subprocess.Runner
}

// New constructs a Git bound to runner.
func New(runner *subprocess.Runner) *Git {
	return &Git{runner: runner}
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (subprocess.Result, error) {
	// safe.directory=*: every invocation may operate on a repository
	// owned by a different uid than the running process (spec §6).
	full := append([]string{"-c", "safe.directory=*"}, args...)
	return g.runner.Call(ctx, dir, "git", full...)
}

// Init creates a new repository with the given initial branch name.
func (g *Git) Init(ctx context.Context, dir, initialBranch string) error {
	_, err := g.run(ctx, dir, "init", "--initial-branch="+initialBranch)
	return err
}

// ConfigDenyCurrentBranchUpdateInstead sets receive.denyCurrentBranch
// so a bare push into a checked-out branch updates the working tree,
// matching spec §4.4 step 1.
func (g *Git) ConfigDenyCurrentBranchUpdateInstead(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "config", "receive.denyCurrentBranch", "updateInstead")
	return err
}

// MakePushable re-applies the same setting after a clone, so the local
// repository can subsequently accept a transaction's push.
func (g *Git) MakePushable(ctx context.Context, dir string) error {
	return g.ConfigDenyCurrentBranchUpdateInstead(ctx, dir)
}

// CommitEmpty records an empty commit, used to give a freshly
// initialized repository a branch tip to clone from.
func (g *Git) CommitEmpty(ctx context.Context, dir, message string) error {
	_, err := g.run(ctx, dir, "commit", "--allow-empty", "--author=volodyslav <volodyslav>", "-m", message)
	return err
}

// Clone clones src into dest, shallow and single-branch.
func (g *Git) Clone(ctx context.Context, src, dest string) error {
	_, err := g.run(ctx, ".", "clone", "--depth=1", "--single-branch", "--branch=master", src, dest)
	return err
}

// Pull fetches and merges master from origin.
func (g *Git) Pull(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "pull", "origin", "master")
	return err
}

// Push pushes master from dir into dest (a local path or remote URL).
// Failures are reported as *PushError so callers can distinguish a
// retriable conflict from every other error (spec §7).
func (g *Git) Push(ctx context.Context, dir, dest string) error {
	if _, err := g.run(ctx, dir, "push", dest, "master"); err != nil {
		return &PushError{Dir: dir, Err: err}
	}
	return nil
}

// CommitAll stages every change and records a commit authored as
// "volodyslav <volodyslav>" (spec §6).
func (g *Git) CommitAll(ctx context.Context, dir, message string) error {
	if _, err := g.run(ctx, dir, "add", "--all"); err != nil {
		return err
	}
	_, err := g.run(ctx, dir, "commit", "--author=volodyslav <volodyslav>", "-m", message)
	if err != nil && isNothingToCommit(err) {
		return nil
	}
	return err
}

func isNothingToCommit(err error) bool {
	var pf *subprocess.ProcessFailedError
	if !errors.As(err, &pf) {
		return false
	}
	return strings.Contains(pf.Stdout, "nothing to commit") || strings.Contains(pf.Stderr, "nothing to commit")
}
