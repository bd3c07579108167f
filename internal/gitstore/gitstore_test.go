package gitstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ottojung/volodyslav-scheduler/internal/fsx"
	"github.com/ottojung/volodyslav-scheduler/internal/gitutil"
)

// fakeGit is a test double for gitOps, avoiding a dependency on a real
// git binary for the transaction/retry logic under test.
type fakeGit struct {
	initCalls         int
	configCalls       int
	makePushableCalls int
	commitEmptyCalls  int
	cloneCalls        int
	pullCalls         int
	pushCalls         int
	commitAllCalls    int

	cloneSources []string
	pushDests    []string

	cloneErr error
	pullErr  error
	// pushFailures is the number of leading Push calls that fail with a
	// *gitutil.PushError before the rest succeed.
	pushFailures int
}

func (f *fakeGit) Init(ctx context.Context, dir, initialBranch string) error {
	f.initCalls++
	return nil
}

func (f *fakeGit) ConfigDenyCurrentBranchUpdateInstead(ctx context.Context, dir string) error {
	f.configCalls++
	return nil
}

func (f *fakeGit) MakePushable(ctx context.Context, dir string) error {
	f.makePushableCalls++
	return nil
}

func (f *fakeGit) CommitEmpty(ctx context.Context, dir, message string) error {
	f.commitEmptyCalls++
	return nil
}

func (f *fakeGit) Clone(ctx context.Context, src, dest string) error {
	f.cloneCalls++
	f.cloneSources = append(f.cloneSources, src)
	return f.cloneErr
}

func (f *fakeGit) Pull(ctx context.Context, dir string) error {
	f.pullCalls++
	return f.pullErr
}

func (f *fakeGit) Push(ctx context.Context, dir, dest string) error {
	f.pushCalls++
	f.pushDests = append(f.pushDests, dest)
	if f.pushCalls <= f.pushFailures {
		return &gitutil.PushError{Dir: dir, Err: errors.New("stale tip")}
	}
	return nil
}

func (f *fakeGit) CommitAll(ctx context.Context, dir, message string) error {
	f.commitAllCalls++
	return nil
}

var _ gitOps = (*fakeGit)(nil)

type nullLogger struct{}

func (nullLogger) Debug(msg string, args ...any) {}
func (nullLogger) Info(msg string, args ...any)  {}
func (nullLogger) Warn(msg string, args ...any)  {}
func (nullLogger) Error(msg string, args ...any) {}

func newCapabilities(t *testing.T, git gitOps) Capabilities {
	t.Helper()
	return Capabilities{
		FS:  fsx.New(),
		Git: git,
		Log: nullLogger{},
	}
}

func TestGetRepository_EmptyBootstrapsFreshRepo(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{}
	caps := newCapabilities(t, git)

	if err := getRepository(context.Background(), caps, workingPath, Empty); err != nil {
		t.Fatalf("getRepository: %v", err)
	}

	if git.initCalls != 1 {
		t.Errorf("Init calls = %d, want 1", git.initCalls)
	}
	if git.configCalls != 1 {
		t.Errorf("Config calls = %d, want 1", git.configCalls)
	}
	if git.commitEmptyCalls != 1 {
		t.Errorf("CommitEmpty calls = %d, want 1", git.commitEmptyCalls)
	}
	if git.cloneCalls != 0 {
		t.Errorf("Clone calls = %d, want 0", git.cloneCalls)
	}
	if !caps.FS.Exists(workingPath) {
		t.Errorf("workingPath %s was not created", workingPath)
	}
}

func TestGetRepository_FromRemoteClonesAndMakesPushable(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{}
	caps := newCapabilities(t, git)

	if err := getRepository(context.Background(), caps, workingPath, FromRemote("https://example.invalid/repo.git")); err != nil {
		t.Fatalf("getRepository: %v", err)
	}

	if git.cloneCalls != 1 {
		t.Errorf("Clone calls = %d, want 1", git.cloneCalls)
	}
	if len(git.cloneSources) != 1 || git.cloneSources[0] != "https://example.invalid/repo.git" {
		t.Errorf("Clone source = %v, want remote URL", git.cloneSources)
	}
	if git.makePushableCalls != 1 {
		t.Errorf("MakePushable calls = %d, want 1", git.makePushableCalls)
	}
	if git.initCalls != 0 {
		t.Errorf("Init calls = %d, want 0", git.initCalls)
	}
}

func TestGetRepository_ExistingRepoPulls(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	caps := newCapabilities(t, &fakeGit{})
	if err := caps.FS.CreateDirectory(filepath.Join(workingPath, ".git")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	git := caps.Git.(*fakeGit)
	if err := getRepository(context.Background(), caps, workingPath, Empty); err != nil {
		t.Fatalf("getRepository: %v", err)
	}

	if git.pullCalls != 1 {
		t.Errorf("Pull calls = %d, want 1", git.pullCalls)
	}
	if git.initCalls != 0 {
		t.Errorf("Init calls = %d, want 0, repo already existed", git.initCalls)
	}
}

func TestGetRepository_ExistingRepoPullFailureIsNonFatal(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{pullErr: errors.New("network unreachable")}
	caps := newCapabilities(t, git)
	if err := caps.FS.CreateDirectory(filepath.Join(workingPath, ".git")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := getRepository(context.Background(), caps, workingPath, Empty); err != nil {
		t.Fatalf("getRepository should tolerate a failed pull, got: %v", err)
	}
}

func TestTransaction_CommitsAndPushesOnSuccess(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{}
	caps := newCapabilities(t, git)

	var sawWorkTree string
	result, err := Transaction(context.Background(), caps, workingPath, Empty, func(ctx context.Context, store *Store) (int, error) {
		sawWorkTree = store.GetWorkTree()
		if err := store.Commit(ctx, "record the change"); err != nil {
			return 0, err
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
	if sawWorkTree == "" || sawWorkTree == workingPath {
		t.Errorf("store was not given a distinct work-tree path: %q", sawWorkTree)
	}
	if caps.FS.Exists(sawWorkTree) {
		t.Errorf("work-tree %s should have been cleaned up after the transaction", sawWorkTree)
	}
	if git.commitAllCalls != 1 {
		t.Errorf("CommitAll calls = %d, want 1", git.commitAllCalls)
	}
	if git.pushCalls != 1 {
		t.Errorf("Push calls = %d, want 1", git.pushCalls)
	}
}

func TestTransaction_TransformErrorSkipsPush(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{}
	caps := newCapabilities(t, git)

	sentinel := errors.New("transform failed")
	_, err := Transaction(context.Background(), caps, workingPath, Empty, func(ctx context.Context, store *Store) (int, error) {
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	if git.pushCalls != 0 {
		t.Errorf("Push calls = %d, want 0 after a transform error", git.pushCalls)
	}
}

func TestTransactionWithRetry_RecoversFromPushConflict(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{pushFailures: 2}
	caps := newCapabilities(t, git)
	caps.Attempts = 5

	calls := 0
	result, err := TransactionWithRetry(context.Background(), caps, workingPath, Empty, func(ctx context.Context, store *Store) (string, error) {
		calls++
		return "committed", nil
	})
	if err != nil {
		t.Fatalf("TransactionWithRetry: %v", err)
	}
	if result != "committed" {
		t.Errorf("result = %q, want %q", result, "committed")
	}
	if git.pushCalls != 3 {
		t.Errorf("Push calls = %d, want 3 (2 failures + 1 success)", git.pushCalls)
	}
	if calls != 3 {
		t.Errorf("transform invocations = %d, want 3, one per attempt", calls)
	}
}

func TestTransactionWithRetry_NonPushErrorIsNotRetried(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{}
	caps := newCapabilities(t, git)
	caps.Attempts = 5

	sentinel := errors.New("validation failed")
	calls := 0
	_, err := TransactionWithRetry(context.Background(), caps, workingPath, Empty, func(ctx context.Context, store *Store) (int, error) {
		calls++
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("transform invocations = %d, want 1, a non-push error must not be retried", calls)
	}
}

func TestTransactionWithRetry_ExhaustsAttemptsOnPersistentConflict(t *testing.T) {
	root := t.TempDir()
	workingPath := filepath.Join(root, "store")
	git := &fakeGit{pushFailures: 99}
	caps := newCapabilities(t, git)
	caps.Attempts = 3

	_, err := TransactionWithRetry(context.Background(), caps, workingPath, Empty, func(ctx context.Context, store *Store) (int, error) {
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected an error after exhausting all attempts")
	}
	if git.pushCalls != 3 {
		t.Errorf("Push calls = %d, want 3 (one per attempt)", git.pushCalls)
	}
}
