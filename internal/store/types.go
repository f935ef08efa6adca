// Package store persists registered folders and their file index entries
// in SQLite. It is the only layer that touches the database.
package store

import (
	"context"
	"time"
)

// CurrentSchemaVersion is bumped whenever the table layout changes.
const CurrentSchemaVersion = 1

// FolderStatus is the indexing lifecycle state of a ProjectFolder.
type FolderStatus string

const (
	StatusPending  FolderStatus = "pending"
	StatusIndexing FolderStatus = "indexing"
	StatusIndexed  FolderStatus = "indexed"
	StatusError    FolderStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s FolderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusIndexing, StatusIndexed, StatusError:
		return true
	}
	return false
}

// ProjectFolder is an external directory attached to a logical project.
type ProjectFolder struct {
	ID            string       `json:"id"`
	ProjectPath   string       `json:"project_path"`
	FolderPath    string       `json:"folder_path"`
	AddedAt       time.Time    `json:"added_at"`
	LastIndexedAt *time.Time   `json:"last_indexed_at,omitempty"`
	FileCount     int          `json:"file_count"`
	Status        FolderStatus `json:"status"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// FileIndexEntry is the indexed metadata of one file.
type FileIndexEntry struct {
	ID              int64     `json:"id"`
	ProjectFolderID string    `json:"project_folder_id"`
	FileName        string    `json:"file_name"`
	NormalizedName  string    `json:"normalized_name"`
	FullPath        string    `json:"full_path"`
	RelativePath    string    `json:"relative_path"`
	Extension       string    `json:"extension"`
	Size            int64     `json:"size"`
	ModifiedAt      time.Time `json:"modified_at"`
	IndexedAt       time.Time `json:"indexed_at"`
}

// Stats summarises the store contents.
type Stats struct {
	Folders  int                  `json:"folders"`
	Entries  int                  `json:"entries"`
	ByStatus map[FolderStatus]int `json:"by_status"`
}

// FolderRegistry persists which folders belong to which project.
type FolderRegistry interface {
	// AddFolder creates a pending folder. It fails with
	// ERR_101_DUPLICATE_FOLDER when the pair is already registered.
	AddFolder(ctx context.Context, projectPath, folderPath string) (*ProjectFolder, error)

	// RemoveFolder deletes the folder row only. Callers stop the watcher
	// and delete entries first.
	RemoveFolder(ctx context.Context, id string) error

	// GetFolder returns nil, nil when id is unknown.
	GetFolder(ctx context.Context, id string) (*ProjectFolder, error)

	UpdateStatus(ctx context.Context, id string, status FolderStatus, errorMessage string) error
	UpdateIndexStats(ctx context.Context, id string, fileCount int) error
	SetFileCount(ctx context.Context, id string, fileCount int) error

	ListAll(ctx context.Context) ([]ProjectFolder, error)
	ListByProject(ctx context.Context, projectPath string) ([]ProjectFolder, error)
	ListByStatus(ctx context.Context, status FolderStatus) ([]ProjectFolder, error)
}

// IndexStore persists per-file entries keyed by owning folder.
type IndexStore interface {
	EntriesForFolder(ctx context.Context, folderID string) ([]FileIndexEntry, error)
	EntriesByExtension(ctx context.Context, ext string) ([]FileIndexEntry, error)
	CountForFolder(ctx context.Context, folderID string) (int, error)

	// MatchEntries returns entries whose normalized name contains needle,
	// best matches first: exact (with or without the extension), then
	// prefix, then by file name. An empty
	// folderID searches every folder; limit <= 0 means no limit.
	MatchEntries(ctx context.Context, folderID, needle string, limit int) ([]FileIndexEntry, error)

	UpsertOne(ctx context.Context, entry FileIndexEntry) error

	// RemoveByPath deletes the entry at fullPath, within folderID when it
	// is non-empty. It reports whether anything was deleted.
	RemoveByPath(ctx context.Context, folderID, fullPath string) (bool, error)

	// RemoveUnder deletes the entries of folderID whose full path lies
	// below dir and returns how many were deleted.
	RemoveUnder(ctx context.Context, folderID, dir string) (int, error)

	RemoveAllForFolder(ctx context.Context, folderID string) error

	// InsertChunk writes entries in one transaction: all or nothing.
	InsertChunk(ctx context.Context, entries []FileIndexEntry) error
}

// Store is the full persistence surface.
type Store interface {
	FolderRegistry
	IndexStore
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
