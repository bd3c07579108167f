// Package statusui implements the "status" and "status --watch"
// terminal dashboard (spec's supplemented CLI surface): a read-only
// table of every registered task's last outcome, rendered with
// bubbletea/lipgloss.
//
// Neither the teacher nor any other example repo in the corpus
// actually calls bubbletea or lipgloss anywhere — both are require
// lines in the teacher's go.mod with no import site. This package is
// therefore grounded on the standard bubbletea Model/Update/View
// idiom (tea.Model, tea.Cmd, lipgloss.NewStyle) rather than on a
// teacher usage site; see DESIGN.md.
package statusui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ottojung/volodyslav-scheduler/internal/scheduler"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	retryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Snapshotter is the part of *scheduler.Scheduler this package needs;
// narrowed to an interface so tests can supply a fixed task list
// without constructing a real scheduler.
type Snapshotter interface {
	Snapshot() []scheduler.TaskStatus
}

// Render formats one static snapshot as a table, used by the
// non-watching "status" subcommand.
func Render(tasks []scheduler.TaskStatus) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-24s %-16s %-24s %s", "TASK", "CRON", "LAST RUN", "STATE")))
	b.WriteString("\n")
	if len(tasks) == 0 {
		b.WriteString(dimStyle.Render("(no tasks registered)"))
		b.WriteString("\n")
		return b.String()
	}
	for _, ts := range tasks {
		b.WriteString(renderRow(ts))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(ts scheduler.TaskStatus) string {
	last := "never"
	if ts.LastAttemptTime != nil {
		last = ts.LastAttemptTime.ToISOString()
	}

	state := dimStyle.Render("idle")
	switch {
	case ts.PendingRetryUntil != nil:
		state = retryStyle.Render("retry pending until " + ts.PendingRetryUntil.ToISOString())
	case ts.LastFailureTime != nil && (ts.LastSuccessTime == nil || ts.LastFailureTime.After(*ts.LastSuccessTime)):
		state = failStyle.Render("failing")
	case ts.LastSuccessTime != nil:
		state = okStyle.Render("ok")
	}

	return fmt.Sprintf("%-24s %-16s %-24s %s", ts.Name, ts.CronExpression, last, state)
}

// model is the bubbletea Model backing the watching dashboard.
type model struct {
	source   Snapshotter
	interval time.Duration
	tasks    []scheduler.TaskStatus
}

type tickMsg time.Time

// New constructs a watching dashboard program polling source every
// interval.
func New(source Snapshotter, interval time.Duration) *tea.Program {
	return tea.NewProgram(model{source: source, interval: interval, tasks: source.Snapshot()})
}

func (m model) Init() tea.Cmd {
	return m.scheduleTick()
}

func (m model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.tasks = m.source.Snapshot()
		return m, m.scheduleTick()
	}
	return m, nil
}

func (m model) View() string {
	return Render(m.tasks) + dimStyle.Render("\n(press q to quit)\n")
}
