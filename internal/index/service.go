package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/pathindex/internal/config"
	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/scanner"
	"github.com/Aman-CERP/pathindex/internal/search"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/internal/telemetry"
	"github.com/Aman-CERP/pathindex/internal/watcher"
)

// ServiceDependencies contains the injected dependencies for a Service.
type ServiceDependencies struct {
	// Store persists folders and entries (required).
	Store store.Store

	// Scanner walks folders (required).
	Scanner scanner.Scanner

	// Watcher delivers live changes (required).
	Watcher watcher.Watcher

	// Config supplies tuning values. Defaults are used when nil.
	Config *config.Config

	Logger *slog.Logger
}

// Service is the facade the editor API, MCP tools and CLI call into. It
// wires the orchestrator, change watcher, scheduler and search engine to
// one store.
type Service struct {
	store     store.Store
	orch      *Orchestrator
	watching  *ChangeWatcher
	scheduler *Scheduler
	engine    *search.Engine
	metrics   *telemetry.SearchMetrics
	broker    *Broker
	cfg       *config.Config
	logger    *slog.Logger
}

// NewService creates a Service and its components.
func NewService(deps ServiceDependencies) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if deps.Watcher == nil {
		return nil, fmt.Errorf("watcher is required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	broker := NewBroker(logger)

	cw, err := NewChangeWatcher(ChangeWatcherConfig{
		Registry:     deps.Store,
		Entries:      deps.Store,
		Watcher:      deps.Watcher,
		Depth:        cfg.Indexing.WatchDepth,
		Debounce:     cfg.WatchDebounce(),
		IgnoredNames: cfg.Indexing.IgnoredNames,
		Broker:       broker,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	orch, err := NewOrchestrator(OrchestratorDependencies{
		Registry:  deps.Store,
		Entries:   deps.Store,
		Scanner:   deps.Scanner,
		Watching:  cw,
		Broker:    broker,
		Logger:    logger,
		BatchSize: cfg.Indexing.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	sched, err := NewScheduler(SchedulerConfig{
		Registry:         deps.Store,
		Indexer:          orch,
		Watching:         cw,
		StaleAfter:       cfg.StaleAfter(),
		InterFolderDelay: cfg.InterFolderDelay(),
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	engine, err := search.NewEngine(deps.Store, deps.Store,
		search.EngineConfig{MaxResults: cfg.Search.MaxResults},
		search.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     deps.Store,
		orch:      orch,
		watching:  cw,
		scheduler: sched,
		engine:    engine,
		metrics:   telemetry.New(telemetry.DefaultConfig()),
		broker:    broker,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// AddFolder attaches folderPath to projectPath. The folder must exist and
// be a directory; both paths are made absolute.
func (s *Service) AddFolder(ctx context.Context, projectPath, folderPath string) (*store.ProjectFolder, error) {
	project, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, pierrors.ValidationError("invalid project path", err)
	}
	dir, err := filepath.Abs(folderPath)
	if err != nil {
		return nil, pierrors.New(pierrors.ErrCodeInvalidFolder, "invalid folder path", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, pierrors.New(pierrors.ErrCodeInvalidFolder, "folder does not exist or is not a directory", err).
			WithDetail("path", dir)
	}

	f, err := s.store.AddFolder(ctx, project, dir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("folder_added",
		slog.String("folder_id", f.ID),
		slog.String("project", f.ProjectPath),
		slog.String("path", f.FolderPath))
	s.broker.Publish(Event{Kind: EventFolderAdded, FolderID: f.ID, Status: f.Status})
	return f, nil
}

// RemoveFolder detaches a folder: its watcher stops first, then its
// entries and finally the row go, so a late event cannot resurrect an
// entry. Active indexing of the folder is cancelled. Unknown ids are a
// no-op.
func (s *Service) RemoveFolder(ctx context.Context, id string) error {
	f, err := s.store.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}

	if opID, ok := s.orch.Operations().ActiveFor(id); ok {
		s.orch.CancelIndexing(opID)
	}
	if err := s.watching.StopWatching(id); err != nil {
		s.logger.Warn("watch_stop_failed",
			slog.String("folder_id", id),
			slog.String("error", err.Error()))
	}
	if err := s.store.RemoveAllForFolder(ctx, id); err != nil {
		return err
	}
	if err := s.store.RemoveFolder(ctx, id); err != nil {
		return err
	}
	// A watch that started after the first stop sees the folder gone.
	_ = s.watching.StopWatching(id)

	s.logger.Info("folder_removed",
		slog.String("folder_id", id),
		slog.String("path", f.FolderPath))
	s.broker.Publish(Event{Kind: EventFolderRemoved, FolderID: id})
	return nil
}

// StartIndexing runs a full scan of the folder and blocks until it ends.
func (s *Service) StartIndexing(ctx context.Context, folderID string) error {
	return s.orch.StartIndexing(ctx, folderID)
}

// CancelIndexing requests cancellation of an operation.
func (s *Service) CancelIndexing(opID string) {
	s.orch.CancelIndexing(opID)
}

// CancelAllIndexing cancels every active operation.
func (s *Service) CancelAllIndexing() {
	s.orch.CancelAllIndexing()
}

// Search runs a path query.
func (s *Service) Search(ctx context.Context, query, projectPath string) ([]store.FileIndexEntry, error) {
	start := time.Now()
	entries, err := s.engine.Search(ctx, query, projectPath)
	s.record(query, nil, entries, err, start)
	return entries, err
}

// SearchWithOptions runs a path query with filters.
func (s *Service) SearchWithOptions(ctx context.Context, query string, opts search.SearchOptions) ([]store.FileIndexEntry, error) {
	start := time.Now()
	entries, err := s.engine.SearchWithOptions(ctx, query, opts)
	s.record(query, opts.Extensions, entries, err, start)
	return entries, err
}

// List browses a project, or everything when projectPath is empty.
func (s *Service) List(ctx context.Context, projectPath string) ([]store.FileIndexEntry, error) {
	start := time.Now()
	entries, err := s.engine.List(ctx, projectPath)
	s.record("", nil, entries, err, start)
	return entries, err
}

// record feeds a successful search into the metrics.
func (s *Service) record(query string, exts []string, entries []store.FileIndexEntry, err error, start time.Time) {
	if err != nil {
		return
	}
	s.metrics.Record(telemetry.SearchEvent{
		Query:      query,
		Extensions: exts,
		Results:    len(entries),
		Latency:    time.Since(start),
	})
}

// StartBackgroundIndexing indexes every due folder sequentially.
func (s *Service) StartBackgroundIndexing(ctx context.Context) error {
	return s.scheduler.StartBackgroundIndexing(ctx)
}

// ResetStuckFolders recovers folders a terminated process left indexing.
func (s *Service) ResetStuckFolders(ctx context.Context) (int, error) {
	return s.scheduler.ResetStuckFolders(ctx)
}

// RunScheduler repeats background passes until ctx is done.
func (s *Service) RunScheduler(ctx context.Context) error {
	return s.scheduler.Run(ctx, s.cfg.RescanInterval())
}

// Folders lists the folders of projectPath, or all when it is empty.
func (s *Service) Folders(ctx context.Context, projectPath string) ([]store.ProjectFolder, error) {
	if projectPath == "" {
		return s.store.ListAll(ctx)
	}
	project, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, pierrors.ValidationError("invalid project path", err)
	}
	return s.store.ListByProject(ctx, project)
}

// Folder returns one folder, or nil when unknown.
func (s *Service) Folder(ctx context.Context, id string) (*store.ProjectFolder, error) {
	return s.store.GetFolder(ctx, id)
}

// Operations returns snapshots of active indexing operations.
func (s *Service) Operations() []OperationSnapshot {
	return s.orch.Operations().List()
}

// Subscribe returns a channel of state change events.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	return s.broker.Subscribe(buffer)
}

// IsWatching reports whether the folder has a live subscription.
func (s *Service) IsWatching(folderID string) bool {
	return s.watching.IsWatching(folderID)
}

// Status summarises the service for status displays.
type Status struct {
	Stats      *store.Stats        `json:"stats"`
	Operations []OperationSnapshot `json:"operations"`
	Watching   int                 `json:"watching"`
	Search     *telemetry.Snapshot `json:"search,omitempty"`
}

// Status returns store statistics with live operation and watcher counts.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Stats:      stats,
		Operations: s.Operations(),
		Watching:   len(s.watching.Watching()),
		Search:     s.metrics.Snapshot(),
	}, nil
}

// Close cancels indexing, stops every watcher and ends subscriptions. The
// store is owned by the caller and stays open.
func (s *Service) Close() {
	s.orch.CancelAllIndexing()
	s.orch.Wait()
	s.watching.StopAll()
	if n := s.broker.Dropped(); n > 0 {
		s.logger.Info("broker_events_dropped", slog.Uint64("count", n))
	}
	s.broker.Close()
}
