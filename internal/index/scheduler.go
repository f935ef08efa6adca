package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// Defaults for background passes.
const (
	DefaultStaleAfter       = 24 * time.Hour
	DefaultInterFolderDelay = 500 * time.Millisecond
)

// indexer is what the scheduler needs from the Orchestrator.
type indexer interface {
	StartIndexing(ctx context.Context, folderID string) error
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Registry store.FolderRegistry
	Indexer  indexer

	// Watching restarts missing watchers on each Run pass (optional).
	Watching watchStarter

	// StaleAfter is how old an indexed folder may get before it is
	// rescanned. Default: 24h
	StaleAfter time.Duration

	// InterFolderDelay separates consecutive folders. Default: 500ms
	InterFolderDelay time.Duration

	Logger *slog.Logger
}

// Scheduler recovers interrupted folders and reindexes stale ones, one
// folder at a time.
type Scheduler struct {
	registry   store.FolderRegistry
	indexer    indexer
	watching   watchStarter
	staleAfter time.Duration
	delay      time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("folder registry is required")
	}
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.InterFolderDelay < 0 {
		cfg.InterFolderDelay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		registry:   cfg.Registry,
		indexer:    cfg.Indexer,
		watching:   cfg.Watching,
		staleAfter: cfg.StaleAfter,
		delay:      cfg.InterFolderDelay,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ResetStuckFolders moves every folder left in the indexing state by a
// terminated process back to pending. Run it once at startup before any
// other indexing.
func (s *Scheduler) ResetStuckFolders(ctx context.Context) (int, error) {
	stuck, err := s.registry.ListByStatus(ctx, store.StatusIndexing)
	if err != nil {
		return 0, err
	}
	for _, f := range stuck {
		if err := s.registry.UpdateStatus(ctx, f.ID, store.StatusPending, ""); err != nil {
			return 0, err
		}
		s.logger.Info("folder_reset_stuck",
			slog.String("folder_id", f.ID),
			slog.String("path", f.FolderPath))
	}
	return len(stuck), nil
}

// Due returns the folders a background pass would index: pending, error,
// and indexed ones older than the stale threshold. Oldest attachment first.
func (s *Scheduler) Due(ctx context.Context) ([]store.ProjectFolder, error) {
	all, err := s.registry.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var due []store.ProjectFolder
	for _, f := range all {
		switch f.Status {
		case store.StatusPending, store.StatusError:
			due = append(due, f)
		case store.StatusIndexed:
			if f.LastIndexedAt == nil || now.Sub(*f.LastIndexedAt) > s.staleAfter {
				due = append(due, f)
			}
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].AddedAt.Before(due[j].AddedAt) })
	return due, nil
}

// StartBackgroundIndexing indexes every due folder sequentially. A
// folder's failure is logged and does not stop the queue; cancelling ctx
// aborts the remaining queue.
func (s *Scheduler) StartBackgroundIndexing(ctx context.Context) error {
	due, err := s.Due(ctx)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	s.logger.Info("background_index_started", slog.Int("folders", len(due)))

	done := 0
	for i, f := range due {
		if err := ctx.Err(); err != nil {
			s.logger.Info("background_index_aborted",
				slog.Int("done", done),
				slog.Int("remaining", len(due)-done))
			return err
		}
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				s.logger.Info("background_index_aborted",
					slog.Int("done", done),
					slog.Int("remaining", len(due)-done))
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}

		if err := s.indexer.StartIndexing(ctx, f.ID); err != nil {
			attrs := append([]any{slog.String("folder_id", f.ID)}, pierrors.LogAttrs(err)...)
			s.logger.Warn("background_index_folder_failed", attrs...)
		}
		done++
	}

	s.logger.Info("background_index_complete", slog.Int("folders", done))
	return nil
}

// Run performs a background pass immediately and then every interval
// until ctx is done. Each pass first restarts watchers that indexed
// folders lost. interval <= 0 runs a single pass.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if err := s.pass(ctx); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.pass(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) error {
	s.restartWatchers(ctx)
	if err := s.StartBackgroundIndexing(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("background_pass_failed", pierrors.LogAttrs(err)...)
	}
	return nil
}

func (s *Scheduler) restartWatchers(ctx context.Context) {
	if s.watching == nil {
		return
	}
	indexed, err := s.registry.ListByStatus(ctx, store.StatusIndexed)
	if err != nil {
		s.logger.Warn("watch_restart_failed", slog.String("error", err.Error()))
		return
	}
	for _, f := range indexed {
		if err := s.watching.StartWatching(ctx, f.ID); err != nil {
			err = pierrors.Wrap(pierrors.ErrCodeWatchStartFailed, err)
			attrs := append([]any{slog.String("folder_id", f.ID)}, pierrors.LogAttrs(err)...)
			s.logger.Warn("watch_start_failed", attrs...)
		}
	}
}
