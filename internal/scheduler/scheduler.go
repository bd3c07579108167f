// Package scheduler implements the polling scheduler runtime (spec
// §4.5 C9): a tick loop that decides, once per poll interval, which
// registered tasks are due and runs them, persisting outcomes through
// a single gitstore transaction per tick.
//
// Grounded on the teacher's ticker-driven service loop
// (internal/cron/service.go: Start/Stop, a running flag, a stopChan, a
// time.Ticker goroutine, checkJobs as the tick body), generalized to
// the cron-fire-vs-retry selection and git-backed persistence spec §4.5
// adds.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
	"github.com/ottojung/volodyslav-scheduler/internal/cronexpr"
	"github.com/ottojung/volodyslav-scheduler/internal/fsx"
	"github.com/ottojung/volodyslav-scheduler/internal/gitstore"
	"github.com/ottojung/volodyslav-scheduler/internal/logging"
	"github.com/ottojung/volodyslav-scheduler/internal/runtimestate"
	"github.com/ottojung/volodyslav-scheduler/internal/task"
	"github.com/ottojung/volodyslav-scheduler/internal/tracing"
)

// DefaultPollInterval is used when Config.PollInterval is zero. Tests
// pin much smaller values, per spec §4.5.
const DefaultPollInterval = time.Second

// Config bundles the collaborators and tunables a Scheduler needs.
type Config struct {
	WorkingPath  string
	Initial      gitstore.InitialState
	Capabilities gitstore.Capabilities
	Clock        clock.Clock
	PollInterval time.Duration
}

// Scheduler runs the tick loop described in spec §4.5, holding one
// *task.Task per registration: its registration, parsed expression,
// persisted record, and the scheduler's own bookkeeping cursor
// (LastEvaluatedFire is never persisted; spec §4.5 treats it as
// runtime-only).
type Scheduler struct {
	cfg Config
	fs  fsx.Filesystem
	log logging.Logger

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu            sync.Mutex
	tasks         []*task.Task
	registrations map[string]task.Registration
}

// New constructs a Scheduler bound to cfg. Call Initialize to start it.
func New(cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Scheduler{
		cfg: cfg,
		fs:  cfg.Capabilities.FS,
		log: cfg.Capabilities.Log,
	}
}

// Initialize validates registrations, reconciles persisted state
// against them, and starts the tick loop. A second concurrent call
// while already running fails with ErrSchedulerAlreadyRunning (spec
// §4.5).
func (s *Scheduler) Initialize(ctx context.Context, registrations []task.Registration) (err error) {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSchedulerAlreadyRunning
	}
	defer func() {
		if err != nil {
			s.running.Store(false)
		}
	}()

	if err = task.ValidateRegistrations(registrations); err != nil {
		return err
	}

	byName := make(map[string]task.Registration, len(registrations))
	for _, r := range registrations {
		byName[r.Name] = r
	}
	s.registrations = byName

	now := s.cfg.Clock.Now()
	states, err := s.reconcile(ctx, registrations, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = states
	s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop()

	return nil
}

// Stop signals the loop to halt and waits for the current tick (and
// any in-flight callback) to finish, per spec §4.5.
func (s *Scheduler) Stop() error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	close(s.stopCh)
	<-s.doneCh
	s.running.Store(false)
	return nil
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			close(s.doneCh)
			return
		case <-ticker.C:
			s.tick(context.Background())
		}
	}
}

// reconcile implements spec §4.5's startup reconciliation: create
// records for new registrations, drop ones no longer registered,
// repair the rest so the live registration is always authoritative
// over cronExpression/retryDelayMs, then persist once.
func (s *Scheduler) reconcile(ctx context.Context, registrations []task.Registration, now clock.DateTime) ([]*task.Task, error) {
	type reconciled struct {
		states []*task.Task
	}

	result, err := gitstore.TransactionWithRetry(ctx, s.cfg.Capabilities, s.cfg.WorkingPath, s.cfg.Initial, func(ctx context.Context, store *gitstore.Store) (reconciled, error) {
		doc := runtimestate.New(s.fs, s.log, s.registrations, now, store.GetWorkTree())
		current := doc.GetCurrentState()

		persisted := make(map[string]task.Record, len(current.Tasks))
		for _, r := range current.Tasks {
			persisted[r.Name] = r
		}

		states := make([]*task.Task, 0, len(registrations))
		for _, reg := range registrations {
			expr, parseErr := cronexpr.Parse(reg.CronText)
			if parseErr != nil {
				return reconciled{}, parseErr // unreachable: already validated
			}

			record, existed := persisted[reg.Name]
			record.Name = reg.Name
			record.CronExpression = reg.CronText
			record.RetryDelayMs = reg.RetryDelay.ToMillis()
			if !existed {
				record.LastSuccessTime = nil
				record.LastFailureTime = nil
				record.LastAttemptTime = nil
				record.PendingRetryUntil = nil
			}

			states = append(states, &task.Task{
				Registration: reg,
				Expression:   expr,
				Record:       record,
				// One minute behind now, so a cron fire that lands
				// exactly on the startup instant is still caught by the
				// very first tick (spec §8 scenario 1-3 all start a
				// registration exactly on a matching boundary).
				LastEvaluatedFire: now.SubtractDuration(clock.FromMinutes(1)),
			})
		}

		newState := runtimestate.State{
			Version:   runtimestate.CurrentVersion,
			StartTime: current.StartTime,
			Tasks:     recordsOf(states),
		}
		changed, flushErr := doc.Flush(newState)
		if flushErr != nil {
			return reconciled{}, flushErr
		}
		if changed {
			if commitErr := store.Commit(ctx, runtimestate.CommitMessage); commitErr != nil {
				return reconciled{}, commitErr
			}
		}

		return reconciled{states: states}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.states, nil
}

// tick is the single serialized critical section spec §4.5 describes:
// no two tasks' persistence updates interleave, because every due task
// is executed, then the whole batch is persisted in one transaction.
func (s *Scheduler) tick(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "scheduler", "scheduler.tick")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Clock.Now()

	type pending struct {
		state  *task.Task
		chosen clock.DateTime
	}
	var due []pending
	for _, ts := range s.tasks {
		if chosen, _, ok := chosenFireTime(ts, now); ok {
			due = append(due, pending{state: ts, chosen: chosen})
		}
	}
	if len(due) == 0 {
		return
	}

	for _, p := range due {
		s.executeOne(ctx, p.state, p.chosen, now)
	}

	if err := s.persist(ctx); err != nil {
		s.log.Error("scheduler: failed to persist tick outcome", "error", err.Error())
	}
}

// chosenFireTime computes CronDue, RetryDue, and Chosen for one task
// (spec §4.5): the earliest of the two, ties breaking toward retry.
func chosenFireTime(ts *task.Task, now clock.DateTime) (chosen clock.DateTime, isRetry bool, ok bool) {
	cronDue, cronOK := ts.Expression.MostRecentFireInWindow(ts.LastEvaluatedFire, now)

	var retryDue clock.DateTime
	retryOK := ts.Record.PendingRetryUntil != nil && !ts.Record.PendingRetryUntil.After(now)
	if retryOK {
		retryDue = *ts.Record.PendingRetryUntil
	}

	switch {
	case cronOK && retryOK:
		if cronDue.Before(retryDue) {
			return cronDue, false, true
		}
		return retryDue, true, true // tie or retry earlier: retry wins
	case cronOK:
		return cronDue, false, true
	case retryOK:
		return retryDue, true, true
	default:
		return clock.DateTime{}, false, false
	}
}

// executeOne runs one task's callback and updates its in-memory record
// per the success/failure rules in spec §4.5. Errors are never
// rethrown; a failing callback only schedules a retry.
func (s *Scheduler) executeOne(ctx context.Context, ts *task.Task, chosen, now clock.DateTime) {
	err := ts.Registration.Callback(ctx)
	nowCopy := now
	if err == nil {
		ts.Record.LastSuccessTime = &nowCopy
		ts.Record.LastAttemptTime = &nowCopy
		ts.Record.PendingRetryUntil = nil
	} else {
		ts.Record.LastFailureTime = &nowCopy
		ts.Record.LastAttemptTime = &nowCopy
		retryUntil := now.AddDuration(ts.Registration.RetryDelay)
		ts.Record.PendingRetryUntil = &retryUntil
		s.log.Error("scheduler: task failed", "name", ts.Registration.Name, "error", err.Error())
	}
	ts.LastEvaluatedFire = chosen
}

// persist writes the current in-memory task set through one gitstore
// transaction, committing only if the serialized document actually
// changed (spec §4.3 idempotence).
func (s *Scheduler) persist(ctx context.Context) error {
	state := runtimestate.State{
		Version: runtimestate.CurrentVersion,
		Tasks:   recordsOf(s.tasks),
	}

	_, err := gitstore.TransactionWithRetry(ctx, s.cfg.Capabilities, s.cfg.WorkingPath, s.cfg.Initial, func(ctx context.Context, store *gitstore.Store) (struct{}, error) {
		doc := runtimestate.New(s.fs, s.log, s.registrations, s.cfg.Clock.Now(), store.GetWorkTree())
		// Preserve the persisted startTime: GetExistingState re-reads what
		// reconcile already wrote in this same work-tree lineage.
		if existing, ok := doc.GetExistingState(); ok {
			state.StartTime = existing.StartTime
		}

		changed, flushErr := doc.Flush(state)
		if flushErr != nil {
			return struct{}{}, flushErr
		}
		if changed {
			return struct{}{}, store.Commit(ctx, runtimestate.CommitMessage)
		}
		return struct{}{}, nil
	})
	return err
}

// TaskStatus is a read-only snapshot of one task's state, for
// reporting surfaces (statusui, the "status" CLI subcommand) that must
// not reach into the scheduler's own locking.
type TaskStatus struct {
	Name              string
	CronExpression    string
	LastSuccessTime   *clock.DateTime
	LastFailureTime   *clock.DateTime
	LastAttemptTime   *clock.DateTime
	PendingRetryUntil *clock.DateTime
}

// Snapshot returns the current status of every registered task,
// sorted by name.
func (s *Scheduler) Snapshot() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, len(s.tasks))
	for i, ts := range s.tasks {
		out[i] = TaskStatus{
			Name:              ts.Record.Name,
			CronExpression:    ts.Record.CronExpression,
			LastSuccessTime:   ts.Record.LastSuccessTime,
			LastFailureTime:   ts.Record.LastFailureTime,
			LastAttemptTime:   ts.Record.LastAttemptTime,
			PendingRetryUntil: ts.Record.PendingRetryUntil,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func recordsOf(states []*task.Task) []task.Record {
	out := make([]task.Record, len(states))
	for i, ts := range states {
		out[i] = ts.Record
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
