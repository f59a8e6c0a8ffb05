package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/megvadulthangya/manjaro-awesome/internal/config"
	"github.com/megvadulthangya/manjaro-awesome/internal/daemon"
	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
	"github.com/megvadulthangya/manjaro-awesome/internal/metrics"
	"github.com/megvadulthangya/manjaro-awesome/internal/notify"
	"github.com/megvadulthangya/manjaro-awesome/internal/pipeline"
	"github.com/megvadulthangya/manjaro-awesome/internal/publish"
	"github.com/megvadulthangya/manjaro-awesome/internal/remote"
	"github.com/megvadulthangya/manjaro-awesome/internal/snapshot"
	"github.com/megvadulthangya/manjaro-awesome/internal/state"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
	} `cmd:"" help:"Run one full pipeline pass: detect changes, build, publish"`

	Daemon struct {
	} `cmd:"" help:"Run the pipeline periodically until interrupted"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`

	Status struct {
	} `cmd:"" help:"Show recorded build state and the remote repository contents"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch kctx.Command() {
	case "build":
		err = runBuild(ctx)
	case "daemon":
		err = runDaemon(ctx)
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "status":
		err = runStatus(ctx)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		slog.Error("command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func runBuild(ctx context.Context) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	return executeRun(ctx, cfg, metrics.NoopRecorder{})
}

func runDaemon(ctx context.Context) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	var rec metrics.Recorder
	d := daemon.New(CLI.Config, cfg, func(ctx context.Context, cfg *config.Config) error {
		return executeRun(ctx, cfg, rec)
	})
	rec = metrics.NewPrometheusRecorder(d.Registry())
	return d.Run(ctx)
}

// executeRun wires the collaborators for one pipeline pass and runs it.
func executeRun(ctx context.Context, cfg *config.Config, rec metrics.Recorder) error {
	store, err := state.Open(cfg.StateDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := pipeline.New(cfg, remote.NewSSHTransport(cfg.Remote), store)
	if rec != nil {
		runner.WithRecorder(rec)
	}
	if cfg.Notify.Enabled {
		notifier, err := notify.Connect(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("run notifications unavailable", logfields.Error(err))
		} else {
			defer notifier.Close()
			runner.WithNotifier(notifier)
		}
	}
	if cfg.Publish.PushBumps {
		runner.WithVersionControl(&publish.VersionControl{RepoDir: "."})
	}

	_, err = runner.Run(ctx)
	return err
}

func runStatus(ctx context.Context) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	store, err := state.Open(cfg.StateDB)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.All(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded build state (%d units):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %-30s %-15s built %s\n",
			e.Name, e.Version.String(), e.BuiltAt.Format("2006-01-02 15:04"))
	}

	snap := snapshot.Fetch(ctx, remote.NewSSHTransport(cfg.Remote), cfg.Repo.RemoteDir)
	fmt.Printf("\nRemote repository %s (%d files):\n", cfg.Repo.RemoteDir, snap.Len())
	for _, name := range snap.Filenames() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
