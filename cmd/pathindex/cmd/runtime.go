package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/pathindex/internal/daemon"
	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/scanner"
	"github.com/Aman-CERP/pathindex/internal/search"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/internal/watcher"
)

// localRuntime is an in-process service over the configured database.
type localRuntime struct {
	store   *store.SQLiteStore
	watcher *watcher.FSWatcher
	svc     *index.Service
}

// openLocal opens the store and wires the default scanner and watcher.
func (a *app) openLocal() (*localRuntime, error) {
	st, err := store.NewSQLiteStore(a.cfg.Store.Path, store.Options{CacheMB: a.cfg.Store.CacheMB})
	if err != nil {
		return nil, err
	}

	sc, err := scanner.New(scanner.Options{
		IgnoredNames:     a.cfg.Indexing.IgnoredNames,
		RespectGitignore: !a.cfg.Indexing.SkipGitignore,
		Workers:          a.cfg.Indexing.ScanWorkers,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	w := watcher.NewFSWatcher(a.logger)
	svc, err := index.NewService(index.ServiceDependencies{
		Store:   st,
		Scanner: sc,
		Watcher: w,
		Config:  a.cfg,
		Logger:  a.logger,
	})
	if err != nil {
		_ = w.Close()
		_ = st.Close()
		return nil, err
	}

	return &localRuntime{store: st, watcher: w, svc: svc}, nil
}

// Close stops the service, then the watcher, then the store.
func (r *localRuntime) Close() {
	r.svc.Close()
	_ = r.watcher.Close()
	_ = r.store.Close()
}

func (a *app) daemonConfig() daemon.Config {
	return daemon.FromConfig(a.cfg)
}

func (a *app) client() *daemon.Client {
	return daemon.NewClient(a.daemonConfig())
}

// runningClient returns a client when a daemon answers. A daemon whose PID
// file exists but whose socket is not up yet is given a few retries.
func (a *app) runningClient() (*daemon.Client, bool) {
	c := a.client()
	if c.IsRunning() {
		return c, true
	}
	if !daemon.NewPIDFile(a.daemonConfig().PIDPath).IsRunning() {
		return nil, false
	}
	if err := c.WaitReady(context.Background(), pierrors.DefaultRetryConfig()); err != nil {
		a.logger.Warn("daemon_not_ready", pierrors.LogAttrs(err)...)
		return nil, false
	}
	return c, true
}

// backend is the folder and search surface shared by the daemon client
// and the local service.
type backend interface {
	AddFolder(ctx context.Context, projectPath, folderPath string) (*store.ProjectFolder, error)
	RemoveFolder(ctx context.Context, folderID string) error
	ListFolders(ctx context.Context, projectPath string) ([]store.ProjectFolder, error)
	Search(ctx context.Context, params daemon.SearchParams) ([]store.FileIndexEntry, error)
}

// localBackend adapts *index.Service to backend.
type localBackend struct {
	svc *index.Service
}

func (b localBackend) AddFolder(ctx context.Context, projectPath, folderPath string) (*store.ProjectFolder, error) {
	return b.svc.AddFolder(ctx, projectPath, folderPath)
}

func (b localBackend) RemoveFolder(ctx context.Context, folderID string) error {
	return b.svc.RemoveFolder(ctx, folderID)
}

func (b localBackend) ListFolders(ctx context.Context, projectPath string) ([]store.ProjectFolder, error) {
	return b.svc.Folders(ctx, projectPath)
}

func (b localBackend) Search(ctx context.Context, params daemon.SearchParams) ([]store.FileIndexEntry, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return b.svc.SearchWithOptions(ctx, params.Query, search.SearchOptions{
		ProjectPath: params.ProjectPath,
		Limit:       params.Limit,
		Extensions:  params.Extensions,
	})
}

// resolveFolder finds the folder whose id equals or starts with ref, so
// the short ids printed by list commands can be typed back.
func resolveFolder(ctx context.Context, b backend, ref string) (*store.ProjectFolder, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pierrors.ValidationError("folder id is required", nil)
	}
	folders, err := b.ListFolders(ctx, "")
	if err != nil {
		return nil, err
	}

	var match *store.ProjectFolder
	for i := range folders {
		f := &folders[i]
		if f.ID == ref {
			return f, nil
		}
		if strings.HasPrefix(f.ID, ref) {
			if match != nil {
				return nil, pierrors.ValidationError(fmt.Sprintf("folder id %q is ambiguous", ref), nil)
			}
			match = f
		}
	}
	if match == nil {
		return nil, pierrors.New(pierrors.ErrCodeFolderNotFound, "folder not found: "+ref, nil).
			WithSuggestion("List folders with 'pathindex folder list'")
	}
	return match, nil
}

// openBackend prefers a running daemon so writes go through the process
// that owns the watchers. It falls back to the local store.
func (a *app) openBackend() (backend, func(), error) {
	if c, ok := a.runningClient(); ok {
		a.logger.Debug("backend_selected", slog.String("mode", "daemon"))
		return c, func() {}, nil
	}

	rt, err := a.openLocal()
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("backend_selected", slog.String("mode", "local"))
	return localBackend{svc: rt.svc}, rt.Close, nil
}
