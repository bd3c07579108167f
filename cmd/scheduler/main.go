// Command scheduler is the composition root: it wires Clock,
// Filesystem, Git, Gitstore, Scheduler, and the event log together
// and exposes them through a small cobra CLI (spec's supplemented CLI
// surface: serve, status, once, plus log for the event log).
//
// Grounded on the teacher's cmd/ package layout (one *cobra.Command
// constructor per subcommand, no shared root builder left in the
// retrieval pack) — this file supplies the root wiring the pack
// itself never showed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
	"github.com/ottojung/volodyslav-scheduler/internal/config"
	"github.com/ottojung/volodyslav-scheduler/internal/environment"
	"github.com/ottojung/volodyslav-scheduler/internal/eventlog"
	"github.com/ottojung/volodyslav-scheduler/internal/fsx"
	"github.com/ottojung/volodyslav-scheduler/internal/gitstore"
	"github.com/ottojung/volodyslav-scheduler/internal/gitutil"
	"github.com/ottojung/volodyslav-scheduler/internal/logging"
	"github.com/ottojung/volodyslav-scheduler/internal/scheduler"
	"github.com/ottojung/volodyslav-scheduler/internal/statusui"
	"github.com/ottojung/volodyslav-scheduler/internal/subprocess"
	"github.com/ottojung/volodyslav-scheduler/internal/task"
	"github.com/ottojung/volodyslav-scheduler/internal/tracing"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Persistent cron scheduler with git-backed transactional state",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(statusCmd(&configPath))
	cmd.AddCommand(onceCmd(&configPath))
	cmd.AddCommand(logCmd(&configPath))
	return cmd
}

// app bundles everything the four subcommands share: a loaded
// config, the logger, and a scheduler wired against it. Registrations
// are supplied by the caller (this binary ships no built-in tasks of
// its own; embedding applications register their own via the task
// package).
type app struct {
	cfg *config.Config
	log logging.Logger
	sch *scheduler.Scheduler
	env environment.Environment
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load config: %w", err)
	}

	env := environment.Load()
	log := logging.New()

	tracing.SetGlobal(tracing.NewProvider("volodyslav-scheduler"))

	runner := subprocess.NewRunner()
	git := gitutil.New(runner)

	initial := gitstore.Empty
	if cfg.RemoteURL != "" {
		username := "volodyslav-scheduler"
		remote, source := gitutil.ResolvedRemote(cfg.RemoteURL, username)
		log.Info("scheduler: resolved push credential", "source", string(source))
		initial = gitstore.FromRemote(remote)
	}

	caps := gitstore.Capabilities{
		FS:       fsx.New(),
		Git:      git,
		Log:      log,
		Attempts: cfg.MaxAttempts,
	}

	sch := scheduler.New(scheduler.Config{
		WorkingPath:  filepath.Join(env.WorkingDirectory(), "state-repo"),
		Initial:      initial,
		Capabilities: caps,
		Clock:        clock.New(),
		PollInterval: cfg.PollInterval(),
	})

	return &app{cfg: cfg, log: log, sch: sch, env: env}, nil
}

// eventlogCapabilities builds the event-log capability bundle,
// attaching an S3 mirror only when a bucket is configured.
func (a *app) eventlogCapabilities(ctx context.Context) (eventlog.Capabilities, error) {
	caps := eventlog.Capabilities{
		Store: gitstore.Capabilities{
			FS:  fsx.New(),
			Git: gitutil.New(subprocess.NewRunner()),
			Log: a.log,
		},
	}
	if a.cfg.S3.Bucket == "" {
		return caps, nil
	}
	mirror, err := eventlog.NewS3Mirror(ctx, a.cfg.S3.Bucket, a.cfg.S3.Region, a.cfg.S3.AccessKey, a.cfg.S3.SecretKey, a.log)
	if err != nil {
		return eventlog.Capabilities{}, err
	}
	caps.Mirror = mirror
	return caps, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.sch.Initialize(ctx, registeredTasks()); err != nil {
				return fmt.Errorf("scheduler: initialize: %w", err)
			}

			a.log.Info("scheduler: running", "pollInterval", a.cfg.PollInterval().String())
			<-ctx.Done()

			a.log.Info("scheduler: shutting down")
			return a.sch.Stop()
		},
	}
}

func statusCmd(configPath *string) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current status of every registered task",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.sch.Initialize(ctx, registeredTasks()); err != nil {
				return fmt.Errorf("scheduler: initialize: %w", err)
			}
			defer a.sch.Stop()

			if !watch {
				fmt.Print(statusui.Render(a.sch.Snapshot()))
				return nil
			}

			program := statusui.New(a.sch, a.cfg.PollInterval())
			_, err = program.Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "live-update the status table")
	return cmd
}

func onceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Reconcile persisted state against registrations, then stop the scheduler and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.sch.Initialize(ctx, registeredTasks()); err != nil {
				return fmt.Errorf("scheduler: initialize: %w", err)
			}
			return a.sch.Stop()
		},
	}
}

func logCmd(configPath *string) *cobra.Command {
	var kind, message string
	var assets []string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Append one entry to the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			caps, err := a.eventlogCapabilities(ctx)
			if err != nil {
				return err
			}

			workingPath := filepath.Join(a.env.WorkingDirectory(), "event-log-repo")
			entry := eventlog.Entry{
				Timestamp: clock.New().Now(),
				Kind:      kind,
				Message:   message,
				Assets:    assets,
			}
			return eventlog.Append(ctx, caps, workingPath, gitstore.Empty, entry)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "note", "event kind")
	cmd.Flags().StringVar(&message, "message", "", "event message")
	cmd.Flags().StringSliceVar(&assets, "asset", nil, "path to a binary asset to copy alongside this entry (repeatable)")
	return cmd
}

// registeredTasks returns the task set this binary runs. A real
// deployment embeds the scheduler library and supplies its own
// callbacks; this composition root ships none by default.
func registeredTasks() []task.Registration {
	return nil
}
