package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.pathindex/logs, or a temp-dir fallback when
// the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pathindex", "logs")
	}
	return filepath.Join(home, ".pathindex", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
