package scheduler

import "errors"

// ErrSchedulerAlreadyRunning is returned by Initialize when a second
// concurrent call is made while the scheduler is already running
// (spec §4.5).
var ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")

// ErrNotRunning is returned by Stop when the scheduler was never
// started or has already stopped.
var ErrNotRunning = errors.New("scheduler: not running")
