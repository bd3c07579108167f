// Package runtimestate persists the scheduler's durable state document
// (spec §4.3 C6): one TaskRecord per registered task, written through a
// gitstore transaction as pretty JSON.
//
// Grounded on the teacher's internal/cron.Store JSON-document pattern
// (internal/cron/types.go, internal/cron/service.go: a Version field, a
// MarshalIndent write path, slog warnings on a corrupt load), adapted
// to the per-task error isolation and schema migration spec §4.3 adds.
package runtimestate

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
	"github.com/ottojung/volodyslav-scheduler/internal/fsx"
	"github.com/ottojung/volodyslav-scheduler/internal/logging"
	"github.com/ottojung/volodyslav-scheduler/internal/task"
)

// CurrentVersion is the schema version this package writes. Documents
// with a lower version are migrated to it on load; no migration beyond
// version 2 exists, and the on-disk document carries no version history.
const CurrentVersion = 2

// stateFileName is the file name of the persisted document inside a
// gitstore work-tree.
const stateFileName = "state.json"

// State is the persisted document (spec §3 RuntimeState).
type State struct {
	Version   int
	StartTime clock.DateTime
	Tasks     []task.Record // sorted by Name on every write
}

// makeDefault constructs the document a freshly bootstrapped repository
// starts with.
func makeDefault(now clock.DateTime) State {
	return State{Version: CurrentVersion, StartTime: now, Tasks: nil}
}

// wireState is the on-disk JSON shape. version and startTime participate
// in schema migration; tasks are opaque json.RawMessage so a single
// corrupt record cannot fail the whole document (spec §4.3).
type wireState struct {
	Version   int               `json:"version"`
	StartTime string            `json:"startTime"`
	Tasks     []json.RawMessage `json:"tasks"`
}

// Document is the transaction-scoped handle over the state file,
// implementing the four public operations spec §4.3 names.
type Document struct {
	fs            fsx.Filesystem
	log           logging.Logger
	registrations map[string]task.Registration
	now           clock.DateTime

	path string

	loaded     bool
	existing   *State
	taskErrors []error

	queued *State
}

// New constructs a Document bound to a gitstore work-tree.
func New(fs fsx.Filesystem, log logging.Logger, registrations map[string]task.Registration, now clock.DateTime, workTree string) *Document {
	return &Document{
		fs:            fs,
		log:           log,
		registrations: registrations,
		now:           now,
		path:          workTree + "/" + stateFileName,
	}
}

// SetState queues state to be committed by the caller.
func (d *Document) SetState(state State) {
	state.Tasks = sortedCopy(state.Tasks)
	d.queued = &state
}

// GetNewState returns the queued state, if any.
func (d *Document) GetNewState() (State, bool) {
	if d.queued == nil {
		return State{}, false
	}
	return *d.queued, true
}

// GetExistingState lazily parses the on-disk document once per
// transaction. A missing or structurally invalid document is reported
// as (State{}, false) rather than an error: the caller falls back to
// GetCurrentState's default (spec §4.3).
func (d *Document) GetExistingState() (State, bool) {
	d.ensureLoaded()
	if d.existing == nil {
		return State{}, false
	}
	return *d.existing, true
}

// TaskErrors returns the per-task deserialization errors collected
// while parsing the existing document, each already logged at warning
// level by ensureLoaded.
func (d *Document) TaskErrors() []error {
	d.ensureLoaded()
	return d.taskErrors
}

// GetCurrentState returns the queued state if present; otherwise the
// existing state; otherwise a fresh default (spec §4.3).
func (d *Document) GetCurrentState() State {
	if state, ok := d.GetNewState(); ok {
		return state
	}
	if state, ok := d.GetExistingState(); ok {
		return state
	}
	return makeDefault(d.now)
}

func (d *Document) ensureLoaded() {
	if d.loaded {
		return
	}
	d.loaded = true

	f, err := d.fs.OpenExisting(d.path)
	if err != nil {
		return // missing file: treated as "no existing state", not an error
	}

	text, err := d.fs.ReadText(f)
	if err != nil {
		d.log.Warn("runtimestate: failed to read state file, discarding", "path", d.path, "error", err.Error())
		return
	}

	var wire wireState
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		d.log.Warn("runtimestate: state file has invalid top-level structure, discarding", "path", d.path, "error", err.Error())
		return
	}

	startTime, err := clock.FromISOString(wire.StartTime)
	if err != nil {
		d.log.Warn("runtimestate: state file has invalid startTime, discarding", "path", d.path, "error", err.Error())
		return
	}

	version := wire.Version
	if version < CurrentVersion {
		d.log.Info("runtimestate: migrating schema version", "from", version, "to", CurrentVersion, "path", d.path)
		version = CurrentVersion
	}

	tasks := make([]task.Record, 0, len(wire.Tasks))
	var taskErrs []error
	for _, raw := range wire.Tasks {
		record, err := task.TryDeserialize(raw, d.registrations)
		if err != nil {
			taskErrs = append(taskErrs, err)
			d.log.Warn("runtimestate: dropping corrupt task record", "error", err.Error())
			continue
		}
		tasks = append(tasks, record)
	}

	d.existing = &State{Version: version, StartTime: startTime, Tasks: sortedCopy(tasks)}
	d.taskErrors = taskErrs
}

// Flush serializes state as pretty (tab-indented) JSON and writes it to
// the work-tree, skipping both the write and the caller's commit when
// the serialized form is byte-identical to what's already on disk
// (spec §4.3 idempotence). Returns whether a write actually happened.
func (d *Document) Flush(state State) (bool, error) {
	state.Tasks = sortedCopy(state.Tasks)
	data, err := serialize(state)
	if err != nil {
		return false, fmt.Errorf("runtimestate: serialize: %w", err)
	}

	if f, err := d.fs.OpenExisting(d.path); err == nil {
		current, err := d.fs.ReadText(f)
		if err == nil && current == string(data) {
			return false, nil
		}
	}

	if err := d.fs.WriteText(d.path, string(data)); err != nil {
		return false, fmt.Errorf("runtimestate: write: %w", err)
	}
	return true, nil
}

// CommitMessage is the commit message spec §4.3 mandates for a
// non-empty write.
const CommitMessage = "Runtime state update"

func serialize(state State) ([]byte, error) {
	wire := wireState{
		Version:   state.Version,
		StartTime: state.StartTime.ToISOString(),
		Tasks:     make([]json.RawMessage, 0, len(state.Tasks)),
	}
	for _, record := range sortedCopy(state.Tasks) {
		wire.Tasks = append(wire.Tasks, task.Serialize(record))
	}
	return json.MarshalIndent(wire, "", "\t")
}

func sortedCopy(tasks []task.Record) []task.Record {
	out := make([]task.Record, len(tasks))
	copy(out, tasks)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
