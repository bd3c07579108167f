// Package task implements the Task model (spec §4.2): a registration
// bound to its persisted record, serialization, and deserialization
// rules that treat the live registration as authoritative over stale
// persisted fields.
package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
	"github.com/ottojung/volodyslav-scheduler/internal/cronexpr"
)

// Callback is invoked when a task fires.
type Callback func(ctx context.Context) error

// Registration is the caller-provided tuple supplied to the scheduler
// at startup (spec §3).
type Registration struct {
	Name       string
	CronText   string
	Callback   Callback
	RetryDelay clock.Duration
}

// Record is the persisted form of one task (spec §3 TaskRecord).
type Record struct {
	Name              string
	CronExpression    string
	RetryDelayMs      int64
	LastSuccessTime   *clock.DateTime
	LastFailureTime   *clock.DateTime
	LastAttemptTime   *clock.DateTime
	PendingRetryUntil *clock.DateTime
}

// Task binds a Registration to its persisted Record, plus a cached
// next-fire hint to avoid re-walking from epoch every tick.
type Task struct {
	Registration Registration
	Expression   cronexpr.Expression
	Record       Record

	// LastEvaluatedFire is the most recent cron fire time already
	// considered (fired or superseded), advanced by the scheduler on
	// every chosen execution (spec §4.5).
	LastEvaluatedFire clock.DateTime
}

// Errors returned by deserialization (spec §4.2).
var (
	ErrTaskInvalidStructure = errors.New("task: record is not a well-formed object")
)

// MissingFieldError reports a required field absent from a persisted record.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string { return fmt.Sprintf("task: missing field %q", e.Field) }

// InvalidTypeError reports a field present with the wrong JSON type.
type InvalidTypeError struct{ Field string }

func (e *InvalidTypeError) Error() string { return fmt.Sprintf("task: invalid type for field %q", e.Field) }

// InvalidValueError reports a field present with a disallowed value.
type InvalidValueError struct {
	Field  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("task: invalid value for field %q: %s", e.Field, e.Reason)
}

// ValidateRegistrations checks the invariants spec §4.5 requires of
// initialize(): unique names, parseable cron text, non-negative retry
// delay, non-nil callback.
func ValidateRegistrations(regs []Registration) error {
	seen := make(map[string]struct{}, len(regs))
	for _, r := range regs {
		if r.Name == "" {
			return &InvalidValueError{Field: "name", Reason: "must not be empty"}
		}
		if _, dup := seen[r.Name]; dup {
			return &InvalidValueError{Field: "name", Reason: "duplicate name: " + r.Name}
		}
		seen[r.Name] = struct{}{}

		if _, err := cronexpr.Parse(r.CronText); err != nil {
			return fmt.Errorf("registration %q: %w", r.Name, err)
		}
		if r.RetryDelay.IsNegative() {
			return &InvalidValueError{Field: "retryDelay", Reason: "must be >= 0"}
		}
		if r.Callback == nil {
			return &InvalidValueError{Field: "callback", Reason: "must not be nil"}
		}
	}
	return nil
}
