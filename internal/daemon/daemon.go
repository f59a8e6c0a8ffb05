// Package daemon runs the pipeline on a schedule: a gocron interval job
// triggers runs, a watcher reloads the configuration file on change, and an
// HTTP endpoint exposes Prometheus metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/megvadulthangya/manjaro-awesome/internal/config"
	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
	"github.com/megvadulthangya/manjaro-awesome/internal/metrics"
)

// RunFunc executes one pipeline run with the given configuration.
type RunFunc func(ctx context.Context, cfg *config.Config) error

// Daemon schedules pipeline runs until its context is cancelled.
type Daemon struct {
	configPath string
	run        RunFunc

	mu      sync.RWMutex
	cfg     *config.Config
	running sync.Mutex

	registry *prom.Registry
}

// New creates a daemon around the loaded configuration.
func New(configPath string, cfg *config.Config, run RunFunc) *Daemon {
	return &Daemon{
		configPath: configPath,
		cfg:        cfg,
		run:        run,
		registry:   prom.NewRegistry(),
	}
}

// Registry exposes the metrics registry so the caller can build the recorder
// the RunFunc reports into.
func (d *Daemon) Registry() *prom.Registry { return d.registry }

// Config returns the current configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Run blocks until ctx is cancelled. The first run fires immediately, then
// every configured interval.
func (d *Daemon) Run(ctx context.Context) error {
	interval := d.Config().Daemon.Interval.Std()
	if interval <= 0 {
		return fmt.Errorf("daemon interval must be positive")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { d.runOnce(ctx) }),
		gocron.WithName("pipeline-run"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule pipeline job: %w", err)
	}

	watcher, err := WatchConfig(ctx, d.configPath, d.reload)
	if err != nil {
		slog.Warn("config watching disabled", logfields.Error(err))
	}

	srv := d.startMetricsServer()

	slog.Info("daemon started",
		slog.Duration("interval", interval),
		slog.String("config", d.configPath))
	scheduler.Start()

	<-ctx.Done()

	slog.Info("daemon stopping")
	if err := scheduler.Shutdown(); err != nil {
		slog.Error("scheduler shutdown failed", logfields.Error(err))
	}
	if watcher != nil {
		watcher.Close()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	// Let an in-flight run drain.
	d.running.Lock()
	defer d.running.Unlock()
	return nil
}

// runOnce executes one run unless one is already in flight.
func (d *Daemon) runOnce(ctx context.Context) {
	if !d.running.TryLock() {
		slog.Warn("previous run still in progress, skipping tick")
		return
	}
	defer d.running.Unlock()

	if ctx.Err() != nil {
		return
	}
	if err := d.run(ctx, d.Config()); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduled run failed", logfields.Error(err))
	}
}

// reload re-reads the configuration file. Load failures keep the previous
// configuration in place.
func (d *Daemon) reload() {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		slog.Error("config reload failed, keeping previous configuration", logfields.Error(err))
		return
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	slog.Info("configuration reloaded", slog.String("config", d.configPath))
}

func (d *Daemon) startMetricsServer() *http.Server {
	addr := d.Config().Daemon.MetricsAddr
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("metrics endpoint listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", logfields.Error(err))
		}
	}()
	return srv
}
