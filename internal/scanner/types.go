// Package scanner discovers the files under an attached folder. The
// orchestrator only depends on the Scanner interface; FSScanner is the
// filesystem-backed default.
package scanner

import (
	"context"
	"errors"
	"time"
)

// ErrAborted is returned by Scan when the operation was cancelled. Its
// message is the literal "Aborted" so errors crossing a process boundary
// as plain strings can still be recognised.
var ErrAborted = errors.New("Aborted")

// IsAborted reports whether err signals a cancelled scan.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAborted) || err.Error() == ErrAborted.Error()
}

// FileDescriptor is one file found by a scan.
type FileDescriptor struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	RelativePath string    `json:"relative_path"`
	Size         int64     `json:"size"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// Progress is reported while a scan runs.
type Progress struct {
	Phase              string `json:"phase"`
	Current            int    `json:"current"`
	Total              *int   `json:"total,omitempty"`
	CurrentFile        string `json:"current_file,omitempty"`
	DirectoriesScanned int    `json:"directories_scanned"`
	Skipped            int    `json:"skipped"`
}

// ProgressFunc receives scan progress. Calls are serialized.
type ProgressFunc func(Progress)

// Scanner produces the file list of a folder.
type Scanner interface {
	// Scan walks folderPath. operationID identifies the scan for Cancel.
	// It returns ErrAborted when cancelled.
	Scan(ctx context.Context, folderPath, operationID string, progress ProgressFunc) ([]FileDescriptor, error)

	// Cancel requests that the scan with operationID stop. Unknown ids
	// are ignored.
	Cancel(operationID string)
}
