// Package daemon owns the long-running pipeline process: it enforces
// single-instance execution with a file lock, runs preflight checks, rolls
// interrupted items back, and drives the workflow manager's lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"gestrec/internal/config"
	"gestrec/internal/logging"
	"gestrec/internal/preflight"
	"gestrec/internal/queue"
	"gestrec/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "gestrec.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, validates the environment, rolls back
// interrupted items, and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gestrec instance is already running")
	}

	if err := d.runPreflight(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	if err := d.workflow.ResetStuckItems(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck items: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("gestrec daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("gestrec daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Idle exposes the workflow's drain signal.
func (d *Daemon) Idle() <-chan struct{} {
	return d.workflow.Idle()
}

// Status reports the current daemon and workflow state.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  queue.DatabasePath(d.cfg),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) runPreflight(ctx context.Context) error {
	var failures []string
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		d.logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported path and restart"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
