package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

// Service is what the daemon runs: the RPC surface plus the lifecycle
// hooks for startup recovery, the background scheduler and shutdown.
// *index.Service implements it.
type Service interface {
	Handler
	ResetStuckFolders(ctx context.Context) (int, error)
	RunScheduler(ctx context.Context) error
	Close()
}

// Daemon owns the instance lock, PID file and socket server.
type Daemon struct {
	cfg    Config
	svc    Service
	logger *slog.Logger
	lock   *InstanceLock
	pid    *PIDFile
}

// NewDaemon validates cfg and prepares a daemon for svc.
func NewDaemon(cfg Config, svc Service, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, pierrors.ConfigError("invalid daemon config", err)
	}
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
		lock:   NewInstanceLock(cfg.LockPath),
		pid:    NewPIDFile(cfg.PIDPath),
	}, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives. On start it
// resets folders a crashed process left mid-scan and launches the
// scheduler; on exit it closes the service and removes the PID file.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.lock.Release(); err != nil {
			d.logger.Warn("daemon_unlock_failed", slog.String("path", d.lock.Path()), slog.String("error", err.Error()))
		}
	}()

	if removed, err := d.pid.RemoveStale(); err != nil {
		return err
	} else if removed {
		d.logger.Info("daemon_stale_pid_removed", slog.String("path", d.pid.Path()))
	}
	if err := d.pid.Write(); err != nil {
		return err
	}
	defer func() { _ = d.pid.Remove() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, err := d.svc.ResetStuckFolders(ctx); err != nil {
		d.logger.Warn("daemon_reset_stuck_failed", pierrors.LogAttrs(err)...)
	} else if n > 0 {
		d.logger.Info("daemon_reset_stuck", slog.Int("folders", n))
	}

	srv, err := NewServer(d.cfg, d.svc, d.logger)
	if err != nil {
		return err
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := d.svc.RunScheduler(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("daemon_scheduler_stopped", pierrors.LogAttrs(err)...)
		}
	}()

	d.logger.Info("daemon_started", slog.String("socket", d.cfg.SocketPath))

	serveErr := srv.ListenAndServe(ctx)

	d.svc.Close()
	select {
	case <-schedDone:
	case <-time.After(d.cfg.ShutdownGracePeriod):
		d.logger.Warn("daemon_scheduler_shutdown_timeout")
	}
	d.logger.Info("daemon_stopped")

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}

// Stop signals the daemon recorded in cfg's PID file to shut down.
func Stop(cfg Config) error {
	pid := NewPIDFile(cfg.PIDPath)
	if !pid.IsRunning() {
		return pierrors.New(pierrors.ErrCodeDaemonNotRunning, "daemon is not running", nil)
	}
	return pid.Signal(syscall.SIGTERM)
}
