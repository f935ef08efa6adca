package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

// InstanceLock keeps a second daemon from serving the same data
// directory. The lock is held for the lifetime of the process and is
// released by the kernel if the process dies.
type InstanceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewInstanceLock creates a lock backed by the file at path.
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock without blocking. It fails with
// ERR_602_DAEMON_RUNNING when another process holds it.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return pierrors.New(pierrors.ErrCodeDaemonRunning,
			"another pathindex daemon is already running", nil).
			WithDetail("lock", l.path).
			WithSuggestion("Stop it with 'pathindex serve --stop'")
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call more than once.
func (l *InstanceLock) Release() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *InstanceLock) Path() string {
	return l.path
}
