// Package gitstore implements the atomic, retriable read-modify-write
// transaction engine over a local git repository with an optional
// remote mirror (spec §4.4 C5).
package gitstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ottojung/volodyslav-scheduler/internal/fsx"
	"github.com/ottojung/volodyslav-scheduler/internal/gitutil"
	"github.com/ottojung/volodyslav-scheduler/internal/logging"
	"github.com/ottojung/volodyslav-scheduler/internal/retry"
	"github.com/ottojung/volodyslav-scheduler/internal/tracing"
)

// InitialState selects how a missing repository is bootstrapped (spec
// §4.4 step 1): Empty creates a fresh local repo, RemoteLocation clones
// from url.
type InitialState struct {
	remote bool
	url    string
}

// Empty requests a freshly initialized local repository.
var Empty = InitialState{}

// FromRemote requests cloning the given remote URL.
func FromRemote(url string) InitialState {
	return InitialState{remote: true, url: url}
}

// gitOps is the subset of *gitutil.Git this package calls, narrowed to
// an interface so tests can supply a fake without shelling out to a
// real git binary.
type gitOps interface {
	Init(ctx context.Context, dir, initialBranch string) error
	ConfigDenyCurrentBranchUpdateInstead(ctx context.Context, dir string) error
	MakePushable(ctx context.Context, dir string) error
	CommitEmpty(ctx context.Context, dir, message string) error
	Clone(ctx context.Context, src, dest string) error
	Pull(ctx context.Context, dir string) error
	Push(ctx context.Context, dir, dest string) error
	CommitAll(ctx context.Context, dir, message string) error
}

var _ gitOps = (*gitutil.Git)(nil)

// Capabilities bundles the collaborators a transaction needs, per the
// design note on capability-object injection (spec §9): narrow and
// explicit rather than a god struct.
type Capabilities struct {
	FS       fsx.Filesystem
	Git      gitOps
	Log      logging.Logger
	Attempts int // overrides retry.DefaultOptions().MaxAttempts when > 0
}

// Store is the handle a transaction's transform function operates on.
type Store struct {
	workTree string
	git      gitOps
}

// GetWorkTree returns the stable path for this attempt's disposable
// work-tree.
func (s *Store) GetWorkTree() string { return s.workTree }

// Commit stages every change in the work-tree and records a commit.
// Multiple commits per transaction are allowed (spec §4.4).
func (s *Store) Commit(ctx context.Context, message string) error {
	return s.git.CommitAll(ctx, s.workTree, message)
}

// Transform is the caller's read-modify-write logic, given a Store
// bound to this attempt's work-tree.
type Transform[T any] func(ctx context.Context, store *Store) (T, error)

const localRepoDirName = ".git"

// Transaction runs transform exactly once against a freshly prepared
// work-tree and pushes its commits back, without retrying push
// conflicts itself (see TransactionWithRetry for that).
func Transaction[T any](ctx context.Context, caps Capabilities, workingPath string, initial InitialState, transform Transform[T]) (T, error) {
	ctx, span := tracing.StartSpan(ctx, "gitstore", "gitstore.transaction")
	defer span.End()

	var zero T

	if err := getRepository(ctx, caps, workingPath, initial); err != nil {
		return zero, err
	}

	parent := filepath.Dir(workingPath)
	workTree := filepath.Join(parent, "gitstore-txn-"+newAttemptID())
	if err := caps.FS.CreateDirectory(workTree); err != nil {
		return zero, fmt.Errorf("gitstore: create work-tree: %w", err)
	}
	defer func() {
		if rmErr := caps.FS.DeleteDirectory(workTree); rmErr != nil {
			caps.Log.Warn("gitstore: failed to remove work-tree", "path", workTree, "error", rmErr.Error())
		}
	}()

	if err := caps.Git.Clone(ctx, workingPath, workTree); err != nil {
		return zero, fmt.Errorf("gitstore: clone into work-tree: %w", err)
	}

	store := &Store{workTree: workTree, git: caps.Git}
	result, err := transform(ctx, store)
	if err != nil {
		return zero, err
	}

	if err := caps.Git.Push(ctx, workTree, workingPath); err != nil {
		return zero, err
	}

	return result, nil
}

// TransactionWithRetry wraps Transaction in the retry coordinator (spec
// §4.4): only a *gitutil.PushError is retried; every other error
// propagates immediately. Each attempt gets a fresh work-tree and a
// fresh clone, since the previous attempt's was already deleted.
func TransactionWithRetry[T any](ctx context.Context, caps Capabilities, workingPath string, initial InitialState, transform Transform[T]) (T, error) {
	opts := retry.DefaultOptions("gitstore-transaction:" + workingPath)
	if caps.Attempts > 0 {
		opts.MaxAttempts = caps.Attempts
	}

	return retry.WithRetry(ctx, opts, func(attempt int) (T, error) {
		result, err := Transaction(ctx, caps, workingPath, initial, transform)
		if err == nil {
			return result, nil
		}
		if isPushError(err) {
			return result, retry.Retry()
		}
		return result, err
	})
}

func isPushError(err error) bool {
	var pe *gitutil.PushError
	return errors.As(err, &pe)
}

// getRepository ensures workingPath holds a usable git repository,
// bootstrapping it per spec §4.4 step 1 if missing, or re-anchoring to
// the remote tip (pull) when it already exists.
func getRepository(ctx context.Context, caps Capabilities, workingPath string, initial InitialState) error {
	gitDir := filepath.Join(workingPath, localRepoDirName)
	if caps.FS.Exists(gitDir) {
		if err := caps.Git.Pull(ctx, workingPath); err != nil {
			caps.Log.Warn("gitstore: pull before transaction failed, continuing with local state", "path", workingPath, "error", err.Error())
		}
		return nil
	}

	if err := caps.FS.CreateDirectory(workingPath); err != nil {
		return fmt.Errorf("gitstore: create working path: %w", err)
	}

	if initial.remote {
		if err := caps.Git.Clone(ctx, initial.url, workingPath); err != nil {
			return fmt.Errorf("gitstore: clone from remote: %w", err)
		}
		return caps.Git.MakePushable(ctx, workingPath)
	}

	if err := caps.Git.Init(ctx, workingPath, "master"); err != nil {
		return fmt.Errorf("gitstore: init: %w", err)
	}
	if err := caps.Git.ConfigDenyCurrentBranchUpdateInstead(ctx, workingPath); err != nil {
		return fmt.Errorf("gitstore: config: %w", err)
	}
	return caps.Git.CommitEmpty(ctx, workingPath, "initial commit")
}

// newAttemptID returns a fresh ID for one transaction attempt;
// Transaction uses it to name that attempt's work-tree directory.
func newAttemptID() string {
	return uuid.NewString()
}
