// Package daemon serves the editor API: JSON-RPC 2.0 over a unix socket,
// one request and one response per connection. The daemon owns the
// index service, keeps folders watched and runs the background scheduler
// so editors and the CLI can query without re-opening the store.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/pathindex/internal/config"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.pathindex/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.pathindex/daemon.pid
	PIDPath string

	// LockPath guards against a second daemon on the same data directory.
	// Default: ~/.pathindex/daemon.lock
	LockPath string

	// Timeout is the maximum duration for client-daemon communication.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod bounds how long in-flight requests may run after
	// a shutdown signal.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return FromConfig(config.NewConfig())
}

// FromConfig derives the daemon settings from the application config.
func FromConfig(cfg *config.Config) Config {
	timeout := cfg.DaemonTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return Config{
		SocketPath:          cfg.Daemon.SocketPath,
		PIDPath:             cfg.Daemon.PIDPath,
		LockPath:            cfg.Daemon.LockPath,
		Timeout:             timeout,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.LockPath == "" {
		return fmt.Errorf("lock path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories holding the socket, PID and lock files.
func (c Config) EnsureDir() error {
	seen := make(map[string]bool, 3)
	for _, p := range []string{c.SocketPath, c.PIDPath, c.LockPath} {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
