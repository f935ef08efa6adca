package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/pathindex/internal/normalize"
	"github.com/Aman-CERP/pathindex/internal/scanner"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/internal/watcher"
)

// ChangeWatcherConfig configures a ChangeWatcher.
type ChangeWatcherConfig struct {
	Registry store.FolderRegistry
	Entries  store.IndexStore
	Watcher  watcher.Watcher

	// Depth bounds recursion below each folder root.
	Depth int

	// Debounce is passed to every subscription.
	Debounce time.Duration

	// IgnoredNames are never indexed, on any path segment. Names starting
	// with "." are always ignored.
	IgnoredNames []string

	Broker *Broker
	Logger *slog.Logger
}

// ChangeWatcher keeps indexed folders fresh from live change events. It
// holds at most one subscription per folder.
type ChangeWatcher struct {
	registry store.FolderRegistry
	entries  store.IndexStore
	watcher  watcher.Watcher
	opts     watcher.Options
	ignored  map[string]bool
	broker   *Broker
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	handles map[string]watcher.Handle

	// events for one folder are applied in order
	applyMu sync.Mutex
}

// NewChangeWatcher creates a ChangeWatcher.
func NewChangeWatcher(cfg ChangeWatcherConfig) (*ChangeWatcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("folder registry is required")
	}
	if cfg.Entries == nil {
		return nil, fmt.Errorf("index store is required")
	}
	if cfg.Watcher == nil {
		return nil, fmt.Errorf("watcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ignored := make(map[string]bool, len(cfg.IgnoredNames))
	for _, name := range cfg.IgnoredNames {
		ignored[name] = true
	}

	return &ChangeWatcher{
		registry: cfg.Registry,
		entries:  cfg.Entries,
		watcher:  cfg.Watcher,
		opts: watcher.Options{
			Persistent:    true,
			IgnoreInitial: true,
			Depth:         cfg.Depth,
			Debounce:      cfg.Debounce,
			IgnoredNames:  cfg.IgnoredNames,
		},
		ignored: ignored,
		broker:  cfg.Broker,
		logger:  logger,
		now:     time.Now,
		handles: make(map[string]watcher.Handle),
	}, nil
}

// StartWatching subscribes to changes under the folder. It is a no-op when
// the folder is already watched, absent or not indexed.
func (cw *ChangeWatcher) StartWatching(ctx context.Context, folderID string) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if _, ok := cw.handles[folderID]; ok {
		return nil
	}

	folder, err := cw.registry.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder == nil || folder.Status != store.StatusIndexed {
		return nil
	}

	eventCtx := context.WithoutCancel(ctx)
	h, err := cw.watcher.Watch(folder.FolderPath, cw.opts, func(ev watcher.Event) {
		cw.OnChange(eventCtx, ev)
	})
	if err != nil {
		return err
	}

	// The folder may have been removed while the subscription was set up.
	still, err := cw.registry.GetFolder(ctx, folderID)
	if err != nil || still == nil {
		if uerr := cw.watcher.Unwatch(h); uerr != nil {
			cw.logger.Warn("watch_stop_failed",
				slog.String("folder_id", folderID),
				slog.String("error", uerr.Error()))
		}
		return err
	}
	cw.handles[folderID] = h

	cw.logger.Info("watching_started",
		slog.String("folder_id", folderID),
		slog.String("path", folder.FolderPath))
	cw.broker.Publish(Event{Kind: EventWatchingStarted, FolderID: folderID})
	return nil
}

// StopWatching ends the folder's subscription. Unknown folders are a no-op.
func (cw *ChangeWatcher) StopWatching(folderID string) error {
	cw.mu.Lock()
	h, ok := cw.handles[folderID]
	delete(cw.handles, folderID)
	cw.mu.Unlock()

	if !ok {
		return nil
	}
	cw.broker.Publish(Event{Kind: EventWatchingStopped, FolderID: folderID})
	return cw.watcher.Unwatch(h)
}

// StopAll ends every subscription.
func (cw *ChangeWatcher) StopAll() {
	for _, id := range cw.Watching() {
		if err := cw.StopWatching(id); err != nil {
			cw.logger.Warn("watch_stop_failed",
				slog.String("folder_id", id),
				slog.String("error", err.Error()))
		}
	}
}

// IsWatching reports whether folderID has an active subscription.
func (cw *ChangeWatcher) IsWatching(folderID string) bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	_, ok := cw.handles[folderID]
	return ok
}

// Watching returns the ids of watched folders.
func (cw *ChangeWatcher) Watching() []string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	ids := make([]string, 0, len(cw.handles))
	for id := range cw.handles {
		ids = append(ids, id)
	}
	return ids
}

// OnChange applies one change event to the index. The event is attributed
// to the registered folders whose path is the longest ancestor of
// ev.Path; the same directory attached to several projects updates each
// of them. Failures are logged and never end the subscription.
func (cw *ChangeWatcher) OnChange(ctx context.Context, ev watcher.Event) {
	if ev.Type == watcher.EventChange {
		return
	}

	cw.applyMu.Lock()
	defer cw.applyMu.Unlock()

	folders, err := cw.owners(ctx, ev.Path)
	if err != nil {
		cw.logger.Warn("watch_event_failed",
			slog.String("type", string(ev.Type)),
			slog.String("path", ev.Path),
			slog.String("error", err.Error()))
		return
	}

	for i := range folders {
		folder := &folders[i]
		if folder.Status != store.StatusIndexed || cw.ignoredPath(folder.FolderPath, ev.Path) {
			continue
		}
		if err := cw.apply(ctx, folder, ev); err != nil {
			cw.logger.Warn("watch_event_failed",
				slog.String("folder_id", folder.ID),
				slog.String("type", string(ev.Type)),
				slog.String("path", ev.Path),
				slog.String("error", err.Error()))
		}
	}
}

func (cw *ChangeWatcher) apply(ctx context.Context, folder *store.ProjectFolder, ev watcher.Event) error {
	switch ev.Type {
	case watcher.EventAdd:
		if err := cw.entries.UpsertOne(ctx, cw.entryFor(folder, ev.Path)); err != nil {
			return err
		}
	case watcher.EventUnlink:
		removed, err := cw.unlink(ctx, folder.ID, ev)
		if err != nil {
			return err
		}
		if removed == 0 {
			return nil
		}
	default:
		return nil
	}

	count, err := cw.entries.CountForFolder(ctx, folder.ID)
	if err != nil {
		return err
	}
	if err := cw.registry.SetFileCount(ctx, folder.ID, count); err != nil {
		return err
	}

	cw.logger.Debug("watch_event_applied",
		slog.String("folder_id", folder.ID),
		slog.String("type", string(ev.Type)),
		slog.String("path", ev.Path),
		slog.Int("file_count", count))
	cw.broker.Publish(Event{Kind: EventEntriesChanged, FolderID: folder.ID})
	return nil
}

// unlink removes what an unlink event took away. A directory takes its
// whole subtree; a path with no entry of its own may be a directory the
// watcher did not track, so its subtree is cleared too.
func (cw *ChangeWatcher) unlink(ctx context.Context, folderID string, ev watcher.Event) (int, error) {
	if !ev.IsDir {
		removed, err := cw.entries.RemoveByPath(ctx, folderID, ev.Path)
		if err != nil || removed {
			return boolToInt(removed), err
		}
	}
	return cw.entries.RemoveUnder(ctx, folderID, ev.Path)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// entryFor synthesizes the entry for a newly added file. Size and
// modification time come from a stat; they stay zero when the file is
// already gone.
func (cw *ChangeWatcher) entryFor(folder *store.ProjectFolder, path string) store.FileIndexEntry {
	name := filepath.Base(path)
	rel, err := filepath.Rel(folder.FolderPath, path)
	if err != nil {
		rel = name
	}
	now := cw.now()
	entry := store.FileIndexEntry{
		ProjectFolderID: folder.ID,
		FileName:        name,
		NormalizedName:  normalize.Name(name),
		FullPath:        path,
		RelativePath:    filepath.ToSlash(rel),
		Extension:       normalize.Extension(name),
		IndexedAt:       now,
	}
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		entry.Size = info.Size()
		entry.ModifiedAt = info.ModTime()
	}
	return entry
}

// owners returns the registered folders with the longest FolderPath that
// contains path.
func (cw *ChangeWatcher) owners(ctx context.Context, path string) ([]store.ProjectFolder, error) {
	all, err := cw.registry.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var best []store.ProjectFolder
	bestLen := -1
	for _, f := range all {
		if !isAncestor(f.FolderPath, path) {
			continue
		}
		switch n := len(f.FolderPath); {
		case n > bestLen:
			best = []store.ProjectFolder{f}
			bestLen = n
		case n == bestLen:
			best = append(best, f)
		}
	}
	return best, nil
}

// ignoredPath reports whether any segment of path below root is a dotfile
// or an ignored name.
func (cw *ChangeWatcher) ignoredPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if scanner.IsIgnoredName(seg, cw.ignored) {
			return true
		}
	}
	return false
}

func isAncestor(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	if dir == path {
		return false
	}
	if dir == string(filepath.Separator) {
		return strings.HasPrefix(path, dir)
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
