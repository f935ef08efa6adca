package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/normalize"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options tunes the SQLite connection.
type Options struct {
	// CacheMB sizes the page cache. Zero uses 32MB.
	CacheMB int
}

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// validateIntegrity checks an existing database file before it is opened
// for writing. A missing file is fine.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens (creating if needed) the database at path.
// A corrupted file is removed and recreated empty; every folder then
// shows up as unknown and must be re-attached.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	if path == "" {
		path = MemoryPath
	}
	if opts.CacheMB <= 0 {
		opts.CacheMB = 32
	}

	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pierrors.New(pierrors.ErrCodeStoreOpen,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("index_db_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, pierrors.New(pierrors.ErrCodeStoreOpen,
					fmt.Sprintf("index database corrupted at %s and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("index_db_cleared", slog.String("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pierrors.New(pierrors.ErrCodeStoreOpen, "failed to open database", err)
	}

	// One connection serializes writers and keeps an in-memory database
	// alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	if path != MemoryPath {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, pierrors.New(pierrors.ErrCodeStoreOpen, "failed to set pragma", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, pierrors.New(pierrors.ErrCodeStoreOpen, "failed to initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS project_folders (
		id              TEXT PRIMARY KEY,
		project_path    TEXT NOT NULL,
		folder_path     TEXT NOT NULL,
		added_at        INTEGER NOT NULL,
		last_indexed_at INTEGER,
		file_count      INTEGER NOT NULL DEFAULT 0,
		status          TEXT NOT NULL DEFAULT 'pending',
		error_message   TEXT NOT NULL DEFAULT '',
		UNIQUE (project_path, folder_path)
	);
	CREATE INDEX IF NOT EXISTS idx_folders_status ON project_folders(status);
	CREATE INDEX IF NOT EXISTS idx_folders_project ON project_folders(project_path);

	CREATE TABLE IF NOT EXISTS file_entries (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		project_folder_id TEXT NOT NULL REFERENCES project_folders(id) ON DELETE CASCADE,
		file_name         TEXT NOT NULL,
		normalized_name   TEXT NOT NULL,
		full_path         TEXT NOT NULL,
		relative_path     TEXT NOT NULL,
		extension         TEXT NOT NULL DEFAULT '',
		size              INTEGER NOT NULL DEFAULT 0,
		modified_at       INTEGER NOT NULL,
		indexed_at        INTEGER NOT NULL,
		UNIQUE (project_folder_id, full_path)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_extension ON file_entries(extension);
	CREATE INDEX IF NOT EXISTS idx_entries_full_path ON file_entries(full_path);
	CREATE INDEX IF NOT EXISTS idx_entries_normalized ON file_entries(normalized_name);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema v%d is newer than supported v%d", version, CurrentSchemaVersion)
	}
	if version < CurrentSchemaVersion {
		if _, err := s.db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, CurrentSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return pierrors.StoreError("store is closed", nil)
	}
	return nil
}

// --- Folder registry ---

const folderColumns = `id, project_path, folder_path, added_at, last_indexed_at, file_count, status, error_message`

// AddFolder implements FolderRegistry.
func (s *SQLiteStore) AddFolder(ctx context.Context, projectPath, folderPath string) (*ProjectFolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	f := &ProjectFolder{
		ID:          uuid.NewString(),
		ProjectPath: filepath.Clean(projectPath),
		FolderPath:  filepath.Clean(folderPath),
		AddedAt:     s.now().UTC().Truncate(time.Millisecond),
		Status:      StatusPending,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_folders (id, project_path, folder_path, added_at, file_count, status, error_message)
		 VALUES (?, ?, ?, ?, 0, ?, '')`,
		f.ID, f.ProjectPath, f.FolderPath, toMillis(f.AddedAt), string(f.Status))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, pierrors.New(pierrors.ErrCodeDuplicateFolder,
				fmt.Sprintf("folder %s is already attached to project %s", f.FolderPath, f.ProjectPath), err).
				WithDetail("project_path", f.ProjectPath).
				WithDetail("folder_path", f.FolderPath)
		}
		return nil, pierrors.StoreError("failed to add folder", err)
	}
	return f, nil
}

// RemoveFolder implements FolderRegistry. Unknown ids are a no-op.
func (s *SQLiteStore) RemoveFolder(ctx context.Context, id string) error {
	return s.exec(ctx, "failed to remove folder", `DELETE FROM project_folders WHERE id = ?`, id)
}

// GetFolder implements FolderRegistry.
func (s *SQLiteStore) GetFolder(ctx context.Context, id string) (*ProjectFolder, error) {
	folders, err := s.queryFolders(ctx, `WHERE id = ?`, id)
	if err != nil || len(folders) == 0 {
		return nil, err
	}
	return &folders[0], nil
}

// UpdateStatus implements FolderRegistry.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status FolderStatus, errorMessage string) error {
	if !status.Valid() {
		return pierrors.ValidationError(fmt.Sprintf("unknown folder status %q", status), nil)
	}

	switch status {
	case StatusIndexed:
		return s.exec(ctx, "failed to update status",
			`UPDATE project_folders SET status = ?, error_message = '', last_indexed_at = ? WHERE id = ?`,
			string(status), toMillis(s.now()), id)
	case StatusError:
		return s.exec(ctx, "failed to update status",
			`UPDATE project_folders SET status = ?, error_message = ? WHERE id = ?`,
			string(status), errorMessage, id)
	default:
		return s.exec(ctx, "failed to update status",
			`UPDATE project_folders SET status = ?, error_message = '' WHERE id = ?`,
			string(status), id)
	}
}

// UpdateIndexStats implements FolderRegistry.
func (s *SQLiteStore) UpdateIndexStats(ctx context.Context, id string, fileCount int) error {
	return s.exec(ctx, "failed to update index stats",
		`UPDATE project_folders SET file_count = ?, last_indexed_at = ? WHERE id = ?`,
		fileCount, toMillis(s.now()), id)
}

// SetFileCount implements FolderRegistry. Unlike UpdateIndexStats it
// leaves last_indexed_at alone.
func (s *SQLiteStore) SetFileCount(ctx context.Context, id string, fileCount int) error {
	return s.exec(ctx, "failed to set file count",
		`UPDATE project_folders SET file_count = ? WHERE id = ?`, fileCount, id)
}

// ListAll implements FolderRegistry.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]ProjectFolder, error) {
	return s.queryFolders(ctx, ``)
}

// ListByProject implements FolderRegistry.
func (s *SQLiteStore) ListByProject(ctx context.Context, projectPath string) ([]ProjectFolder, error) {
	return s.queryFolders(ctx, `WHERE project_path = ?`, filepath.Clean(projectPath))
}

// ListByStatus implements FolderRegistry.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status FolderStatus) ([]ProjectFolder, error) {
	return s.queryFolders(ctx, `WHERE status = ?`, string(status))
}

func (s *SQLiteStore) queryFolders(ctx context.Context, where string, args ...any) ([]ProjectFolder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM project_folders `+where+` ORDER BY added_at, id`, args...)
	if err != nil {
		return nil, pierrors.StoreError("failed to query folders", err)
	}
	defer rows.Close()

	var folders []ProjectFolder
	for rows.Next() {
		var (
			f           ProjectFolder
			addedAt     int64
			lastIndexed sql.NullInt64
			status      string
		)
		if err := rows.Scan(&f.ID, &f.ProjectPath, &f.FolderPath, &addedAt, &lastIndexed,
			&f.FileCount, &status, &f.ErrorMessage); err != nil {
			return nil, pierrors.StoreError("failed to scan folder", err)
		}
		f.AddedAt = fromMillis(addedAt)
		f.Status = FolderStatus(status)
		if lastIndexed.Valid {
			t := fromMillis(lastIndexed.Int64)
			f.LastIndexedAt = &t
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, pierrors.StoreError("error iterating folders", err)
	}
	return folders, nil
}

// --- Index entries ---

const entryColumns = `id, project_folder_id, file_name, normalized_name, full_path, relative_path,
	extension, size, modified_at, indexed_at`

const upsertEntrySQL = `INSERT INTO file_entries
	(project_folder_id, file_name, normalized_name, full_path, relative_path, extension, size, modified_at, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (project_folder_id, full_path) DO UPDATE SET
		file_name = excluded.file_name,
		normalized_name = excluded.normalized_name,
		relative_path = excluded.relative_path,
		extension = excluded.extension,
		size = excluded.size,
		modified_at = excluded.modified_at,
		indexed_at = excluded.indexed_at`

// EntriesForFolder implements IndexStore.
func (s *SQLiteStore) EntriesForFolder(ctx context.Context, folderID string) ([]FileIndexEntry, error) {
	return s.queryEntries(ctx, `WHERE project_folder_id = ? ORDER BY full_path`, folderID)
}

// EntriesByExtension implements IndexStore. The leading dot is optional.
func (s *SQLiteStore) EntriesByExtension(ctx context.Context, ext string) ([]FileIndexEntry, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return s.queryEntries(ctx, `WHERE extension = ? ORDER BY full_path`, ext)
}

// CountForFolder implements IndexStore.
func (s *SQLiteStore) CountForFolder(ctx context.Context, folderID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_entries WHERE project_folder_id = ?`, folderID).Scan(&n)
	if err != nil {
		return 0, pierrors.StoreError("failed to count entries", err)
	}
	return n, nil
}

// MatchEntries implements IndexStore. The ordering mirrors the search
// ranking so a limit keeps the best candidates.
func (s *SQLiteStore) MatchEntries(ctx context.Context, folderID, needle string, limit int) ([]FileIndexEntry, error) {
	var (
		where strings.Builder
		args  []any
	)
	where.WriteString(`WHERE instr(normalized_name, ?) > 0`)
	args = append(args, needle)
	if folderID != "" {
		where.WriteString(` AND project_folder_id = ?`)
		args = append(args, folderID)
	}
	where.WriteString(` ORDER BY CASE
		WHEN normalized_name = ? THEN 0
		WHEN extension <> '' AND normalized_name = ? || '.' || extension THEN 0
		WHEN substr(normalized_name, 1, length(?)) = ? THEN 1
		ELSE 2 END, file_name, full_path`)
	args = append(args, needle, needle, needle, needle)
	if limit > 0 {
		where.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}
	return s.queryEntries(ctx, where.String(), args...)
}

// UpsertOne implements IndexStore.
func (s *SQLiteStore) UpsertOne(ctx context.Context, entry FileIndexEntry) error {
	prepareEntry(&entry, s.now())
	return s.exec(ctx, "failed to upsert entry", upsertEntrySQL, entryArgs(entry)...)
}

// RemoveByPath implements IndexStore.
func (s *SQLiteStore) RemoveByPath(ctx context.Context, folderID, fullPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var (
		res sql.Result
		err error
	)
	if folderID == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM file_entries WHERE full_path = ?`, fullPath)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM file_entries WHERE project_folder_id = ? AND full_path = ?`, folderID, fullPath)
	}
	if err != nil {
		return false, pierrors.StoreError("failed to remove entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pierrors.StoreError("failed to get rows affected", err)
	}
	return n > 0, nil
}

// RemoveUnder implements IndexStore. The prefix is compared with substr
// rather than LIKE so names containing wildcards need no escaping.
func (s *SQLiteStore) RemoveUnder(ctx context.Context, folderID, dir string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	prefix := filepath.Clean(dir) + string(filepath.Separator)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM file_entries WHERE project_folder_id = ? AND substr(full_path, 1, length(?)) = ?`,
		folderID, prefix, prefix)
	if err != nil {
		return 0, pierrors.StoreError("failed to remove entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pierrors.StoreError("failed to get rows affected", err)
	}
	return int(n), nil
}

// RemoveAllForFolder implements IndexStore.
func (s *SQLiteStore) RemoveAllForFolder(ctx context.Context, folderID string) error {
	return s.exec(ctx, "failed to remove folder entries",
		`DELETE FROM file_entries WHERE project_folder_id = ?`, folderID)
}

// InsertChunk implements IndexStore.
func (s *SQLiteStore) InsertChunk(ctx context.Context, entries []FileIndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pierrors.StoreError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertEntrySQL)
	if err != nil {
		return pierrors.StoreError("failed to prepare insert", err)
	}
	defer stmt.Close()

	now := s.now()
	for i := range entries {
		e := entries[i]
		prepareEntry(&e, now)
		if _, err := stmt.ExecContext(ctx, entryArgs(e)...); err != nil {
			return pierrors.StoreError(fmt.Sprintf("failed to insert %s", e.FullPath), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pierrors.StoreError("failed to commit chunk", err)
	}
	return nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	st := &Stats{ByStatus: make(map[FolderStatus]int)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_entries`).Scan(&st.Entries); err != nil {
		return nil, pierrors.StoreError("failed to count entries", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM project_folders GROUP BY status`)
	if err != nil {
		return nil, pierrors.StoreError("failed to count folders", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, pierrors.StoreError("failed to scan folder counts", err)
		}
		st.ByStatus[FolderStatus(status)] = n
		st.Folders += n
	}
	return st, rows.Err()
}

func (s *SQLiteStore) queryEntries(ctx context.Context, clause string, args ...any) ([]FileIndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM file_entries `+clause, args...)
	if err != nil {
		return nil, pierrors.StoreError("failed to query entries", err)
	}
	defer rows.Close()

	var entries []FileIndexEntry
	for rows.Next() {
		var (
			e                   FileIndexEntry
			modified, indexedAt int64
		)
		if err := rows.Scan(&e.ID, &e.ProjectFolderID, &e.FileName, &e.NormalizedName, &e.FullPath,
			&e.RelativePath, &e.Extension, &e.Size, &modified, &indexedAt); err != nil {
			return nil, pierrors.StoreError("failed to scan entry", err)
		}
		e.ModifiedAt = fromMillis(modified)
		e.IndexedAt = fromMillis(indexedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pierrors.StoreError("error iterating entries", err)
	}
	return entries, nil
}

func (s *SQLiteStore) exec(ctx context.Context, msg, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return pierrors.StoreError(msg, err)
	}
	return nil
}

// prepareEntry fills derived fields so NormalizedName and Extension can
// never drift from FileName.
func prepareEntry(e *FileIndexEntry, now time.Time) {
	if e.FileName == "" {
		e.FileName = filepath.Base(e.FullPath)
	}
	e.NormalizedName = normalize.Name(e.FileName)
	e.Extension = normalize.Extension(e.FileName)
	if e.IndexedAt.IsZero() {
		e.IndexedAt = now
	}
}

func entryArgs(e FileIndexEntry) []any {
	return []any{
		e.ProjectFolderID, e.FileName, e.NormalizedName, e.FullPath, e.RelativePath,
		e.Extension, e.Size, toMillis(e.ModifiedAt), toMillis(e.IndexedAt),
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
