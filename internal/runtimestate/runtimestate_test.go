package runtimestate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
	"github.com/ottojung/volodyslav-scheduler/internal/fsx"
	"github.com/ottojung/volodyslav-scheduler/internal/task"
)

type nullLogger struct{}

func (nullLogger) Debug(msg string, args ...any) {}
func (nullLogger) Info(msg string, args ...any)  {}
func (nullLogger) Warn(msg string, args ...any)  {}
func (nullLogger) Error(msg string, args ...any) {}

func dt(s string) clock.DateTime {
	d, err := clock.FromISOString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func regs(names ...string) map[string]task.Registration {
	out := make(map[string]task.Registration, len(names))
	for _, n := range names {
		out[n] = task.Registration{Name: n, CronText: "* * * * *", RetryDelay: clock.FromSeconds(30)}
	}
	return out
}

func TestGetCurrentState_NoFileYieldsDefault(t *testing.T) {
	workTree := t.TempDir()
	now := dt("2026-01-01T00:00:00Z")
	doc := New(fsx.New(), nullLogger{}, regs("a"), now, workTree)

	state := doc.GetCurrentState()
	if state.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", state.Version, CurrentVersion)
	}
	if !state.StartTime.Equal(now) {
		t.Errorf("StartTime = %v, want %v", state.StartTime, now)
	}
	if len(state.Tasks) != 0 {
		t.Errorf("Tasks = %v, want empty", state.Tasks)
	}
}

func TestSetState_GetCurrentStatePrefersQueued(t *testing.T) {
	workTree := t.TempDir()
	doc := New(fsx.New(), nullLogger{}, regs("a"), dt("2026-01-01T00:00:00Z"), workTree)

	queued := State{Version: CurrentVersion, StartTime: dt("2026-01-01T00:00:00Z"), Tasks: []task.Record{{Name: "a", CronExpression: "* * * * *"}}}
	doc.SetState(queued)

	current := doc.GetCurrentState()
	if len(current.Tasks) != 1 || current.Tasks[0].Name != "a" {
		t.Fatalf("expected queued state to win, got %+v", current)
	}
}

func TestFlush_WritesAndIsIdempotent(t *testing.T) {
	workTree := t.TempDir()
	doc := New(fsx.New(), nullLogger{}, regs("a"), dt("2026-01-01T00:00:00Z"), workTree)

	state := State{
		Version:   CurrentVersion,
		StartTime: dt("2026-01-01T00:00:00Z"),
		Tasks:     []task.Record{{Name: "a", CronExpression: "* * * * *", RetryDelayMs: 30000}},
	}

	wrote, err := doc.Flush(state)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !wrote {
		t.Fatal("expected first Flush to write")
	}

	data, err := os.ReadFile(filepath.Join(workTree, "state.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !containsTab(data) {
		t.Error("expected pretty-printed JSON with tab indentation")
	}

	wroteAgain, err := doc.Flush(state)
	if err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if wroteAgain {
		t.Error("identical state should not trigger a second write")
	}
}

func containsTab(data []byte) bool {
	for _, b := range data {
		if b == '\t' {
			return true
		}
	}
	return false
}

func TestLoad_RoundTripsThroughFlush(t *testing.T) {
	workTree := t.TempDir()
	registrations := regs("a", "b")
	now := dt("2026-01-01T00:00:00Z")

	writer := New(fsx.New(), nullLogger{}, registrations, now, workTree)
	success := now
	original := State{
		Version:   CurrentVersion,
		StartTime: now,
		Tasks: []task.Record{
			{Name: "b", CronExpression: "* * * * *", RetryDelayMs: 30000},
			{Name: "a", CronExpression: "* * * * *", RetryDelayMs: 30000, LastSuccessTime: &success, LastAttemptTime: &success},
		},
	}
	if _, err := writer.Flush(original); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reader := New(fsx.New(), nullLogger{}, registrations, now, workTree)
	loaded, ok := reader.GetExistingState()
	if !ok {
		t.Fatal("expected existing state to load")
	}
	if len(loaded.Tasks) != 2 {
		t.Fatalf("Tasks = %v, want 2", loaded.Tasks)
	}
	// sorted by name on write/read
	if loaded.Tasks[0].Name != "a" || loaded.Tasks[1].Name != "b" {
		t.Errorf("Tasks not sorted by name: %+v", loaded.Tasks)
	}
	if loaded.Tasks[0].LastSuccessTime == nil || !loaded.Tasks[0].LastSuccessTime.Equal(success) {
		t.Errorf("LastSuccessTime not round-tripped: %+v", loaded.Tasks[0])
	}
}

func TestGetExistingState_MissingFileIsNotAnError(t *testing.T) {
	workTree := t.TempDir()
	doc := New(fsx.New(), nullLogger{}, regs("a"), dt("2026-01-01T00:00:00Z"), workTree)

	if _, ok := doc.GetExistingState(); ok {
		t.Fatal("expected no existing state when file is absent")
	}
}

func TestGetExistingState_CorruptTopLevelDiscardsWholeDocument(t *testing.T) {
	workTree := t.TempDir()
	if err := os.WriteFile(filepath.Join(workTree, "state.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	doc := New(fsx.New(), nullLogger{}, regs("a"), dt("2026-01-01T00:00:00Z"), workTree)
	if _, ok := doc.GetExistingState(); ok {
		t.Fatal("expected structurally invalid document to be discarded")
	}
}

func TestGetExistingState_OneCorruptTaskDoesNotWipeOthers(t *testing.T) {
	workTree := t.TempDir()
	raw := `{"version":2,"startTime":"2026-01-01T00:00:00.000Z","tasks":[{"name":"a","cronExpression":"* * * * *","retryDelayMs":30000},{"name":"unknown-task","cronExpression":"* * * * *","retryDelayMs":30000},123]}`
	if err := os.WriteFile(filepath.Join(workTree, "state.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	doc := New(fsx.New(), nullLogger{}, regs("a"), dt("2026-01-01T00:00:00Z"), workTree)
	state, ok := doc.GetExistingState()
	if !ok {
		t.Fatal("expected the document itself to still load")
	}
	if len(state.Tasks) != 1 || state.Tasks[0].Name != "a" {
		t.Fatalf("expected only the valid task record to survive, got %+v", state.Tasks)
	}
	if len(doc.TaskErrors()) != 2 {
		t.Errorf("TaskErrors = %d, want 2 (unregistered name + non-object)", len(doc.TaskErrors()))
	}
}

func TestGetExistingState_OldVersionMigratesSilently(t *testing.T) {
	workTree := t.TempDir()
	raw := `{"version":1,"startTime":"2026-01-01T00:00:00.000Z","tasks":[]}`
	if err := os.WriteFile(filepath.Join(workTree, "state.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	doc := New(fsx.New(), nullLogger{}, regs("a"), dt("2026-01-01T00:00:00Z"), workTree)
	state, ok := doc.GetExistingState()
	if !ok {
		t.Fatal("expected a v1 document to still load")
	}
	if state.Version != CurrentVersion {
		t.Errorf("Version = %d, want migrated to %d", state.Version, CurrentVersion)
	}
}
