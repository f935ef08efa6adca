// Package index drives full scans of attached folders, keeps indexed
// folders fresh from live change events and schedules background passes.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/normalize"
	"github.com/Aman-CERP/pathindex/internal/scanner"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// watchStarter is what the orchestrator needs from the ChangeWatcher.
type watchStarter interface {
	StartWatching(ctx context.Context, folderID string) error
}

// OrchestratorDependencies contains the injected dependencies for an
// Orchestrator.
type OrchestratorDependencies struct {
	// Registry resolves and updates folders (required).
	Registry store.FolderRegistry

	// Entries receives the scan results (required).
	Entries store.ChunkWriter

	// Scanner walks folders (required).
	Scanner scanner.Scanner

	// Watching is started for a folder after a successful scan (optional).
	Watching watchStarter

	// Operations is the active operation registry. Created when nil.
	Operations *Operations

	// Broker receives progress notifications (optional).
	Broker *Broker

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// BatchSize is the persistence chunk size. Default: store.DefaultBatchSize
	BatchSize int
}

// Orchestrator runs full scans and owns the Operations registry.
type Orchestrator struct {
	registry store.FolderRegistry
	writer   *store.BatchWriter
	scanner  scanner.Scanner
	watching watchStarter
	ops      *Operations
	broker   *Broker
	logger   *slog.Logger

	batchSize int
	now       func() time.Time

	// background watcher starts
	wg sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator with injected dependencies.
func NewOrchestrator(deps OrchestratorDependencies) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("folder registry is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("index store is required")
	}
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ops := deps.Operations
	if ops == nil {
		ops = NewOperations()
	}
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = store.DefaultBatchSize
	}

	return &Orchestrator{
		registry:  deps.Registry,
		writer:    store.NewBatchWriter(deps.Entries, logger),
		scanner:   deps.Scanner,
		watching:  deps.Watching,
		ops:       ops,
		broker:    deps.Broker,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

// Operations returns the active operation registry.
func (o *Orchestrator) Operations() *Operations {
	return o.ops
}

// StartIndexing scans folderID and replaces its entries with the result.
// It blocks until the scan and save complete. An unknown folder is a
// silent no-op. A cancelled scan returns nil and leaves the folder status
// untouched; any other failure is recorded on the folder and returned.
func (o *Orchestrator) StartIndexing(ctx context.Context, folderID string) error {
	folder, err := o.registry.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder == nil {
		return nil
	}

	opID := uuid.NewString()
	if err := o.ops.Begin(opID, folderID); err != nil {
		return err
	}
	defer o.finish(opID)

	logger := o.logger.With(
		slog.String("operation_id", opID),
		slog.String("folder_id", folderID),
		slog.String("path", folder.FolderPath))
	start := o.now()

	if err := o.registry.UpdateStatus(ctx, folderID, store.StatusIndexing, ""); err != nil {
		o.setPhase(opID, PhaseError, err.Error())
		return err
	}
	o.broker.Publish(Event{Kind: EventFolderStatus, FolderID: folderID, Status: store.StatusIndexing})
	logger.Info("index_scan_started")

	descs, err := o.scanner.Scan(ctx, folder.FolderPath, opID, func(p scanner.Progress) {
		o.ops.Update(opID, func(op *Operation) {
			op.DirectoriesScanned = p.DirectoriesScanned
			op.Skipped = p.Skipped
			op.CurrentFile = p.CurrentFile
			op.Current = p.Current
		})
		o.publishProgress(opID)
	})
	if err != nil {
		return o.fail(ctx, logger, opID, folderID, err)
	}
	logger.Info("index_scan_complete",
		slog.Int("files", len(descs)),
		slog.Int64("duration_ms", o.now().Sub(start).Milliseconds()))

	o.setPhase(opID, PhaseIndexing, "")
	entries := toEntries(folder, descs, o.now())

	total := len(entries)
	o.ops.Update(opID, func(op *Operation) {
		op.Phase = PhaseSaving
		op.Current = 0
		op.Total = &total
		op.CurrentFile = ""
	})
	o.publishProgress(opID)

	written, err := o.writer.ReplaceAll(ctx, folderID, entries, o.batchSize, func(processed, total int) {
		o.ops.Update(opID, func(op *Operation) {
			op.Current = processed
			op.Total = &total
		})
		o.publishProgress(opID)
	})
	if err != nil {
		return o.fail(ctx, logger, opID, folderID, err)
	}

	// The save is not cancellable, so neither is recording its outcome.
	saveCtx := context.WithoutCancel(ctx)
	if err := o.registry.UpdateIndexStats(saveCtx, folderID, written); err != nil {
		return o.fail(saveCtx, logger, opID, folderID, err)
	}
	if err := o.registry.UpdateStatus(saveCtx, folderID, store.StatusIndexed, ""); err != nil {
		return o.fail(saveCtx, logger, opID, folderID, err)
	}

	o.setPhase(opID, PhaseComplete, "")
	o.broker.Publish(Event{Kind: EventFolderStatus, FolderID: folderID, Status: store.StatusIndexed})
	logger.Info("index_complete",
		slog.Int("files", written),
		slog.Int("dropped", total-written),
		slog.Int64("duration_total_ms", o.now().Sub(start).Milliseconds()))

	o.startWatching(saveCtx, logger, folderID)
	return nil
}

// fail records a scan or save failure. Aborted scans are not failures.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, opID, folderID string, err error) error {
	if scanner.IsAborted(err) {
		o.setPhase(opID, PhaseCancelled, "")
		logger.Info("index_cancelled")
		return nil
	}

	o.setPhase(opID, PhaseError, err.Error())
	logger.Error("index_failed", pierrors.LogAttrs(err)...)

	ctx = context.WithoutCancel(ctx)
	if uerr := o.registry.UpdateStatus(ctx, folderID, store.StatusError, err.Error()); uerr != nil {
		logger.Warn("index_status_update_failed", slog.String("error", uerr.Error()))
	}
	o.broker.Publish(Event{Kind: EventFolderStatus, FolderID: folderID, Status: store.StatusError, Error: err.Error()})
	return err
}

// startWatching starts the folder's watcher in a supervised goroutine. A
// failure is logged; the next background pass retries.
func (o *Orchestrator) startWatching(ctx context.Context, logger *slog.Logger, folderID string) {
	if o.watching == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.watching.StartWatching(ctx, folderID); err != nil {
			err = pierrors.Wrap(pierrors.ErrCodeWatchStartFailed, err)
			logger.Warn("watch_start_failed", pierrors.LogAttrs(err)...)
		}
	}()
}

// Wait blocks until background watcher starts have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// CancelIndexing requests cancellation of opID and removes it from the
// active set immediately. The folder stays reserved until the cancelled
// scan has returned, so a new run cannot overlap it. Unknown ids are a
// no-op.
func (o *Orchestrator) CancelIndexing(opID string) {
	snap, ok := o.ops.Get(opID)
	if !ok {
		return
	}
	o.scanner.Cancel(opID)
	o.ops.Detach(opID)
	o.logger.Info("index_cancel_requested",
		slog.String("operation_id", opID),
		slog.String("folder_id", snap.FolderID))

	snap.Phase = PhaseCancelled
	o.broker.Publish(Event{Kind: EventOperationDone, FolderID: snap.FolderID, Operation: &snap})
}

// CancelAllIndexing cancels every active operation.
func (o *Orchestrator) CancelAllIndexing() {
	for _, id := range o.ops.IDs() {
		o.CancelIndexing(id)
	}
}

// finish always runs when StartIndexing returns.
func (o *Orchestrator) finish(opID string) {
	snap, ok := o.ops.Get(opID)
	o.ops.Remove(opID)
	if ok {
		o.broker.Publish(Event{Kind: EventOperationDone, FolderID: snap.FolderID, Operation: &snap})
	}
}

func (o *Orchestrator) setPhase(opID string, phase Phase, errMsg string) {
	o.ops.Update(opID, func(op *Operation) {
		op.Phase = phase
		op.Error = errMsg
	})
}

func (o *Orchestrator) publishProgress(opID string) {
	if o.broker == nil {
		return
	}
	snap, ok := o.ops.Get(opID)
	if !ok {
		return
	}
	o.broker.Publish(Event{Kind: EventProgress, FolderID: snap.FolderID, Operation: &snap})
}

// toEntries converts scan results into index entries for folder.
func toEntries(folder *store.ProjectFolder, descs []scanner.FileDescriptor, now time.Time) []store.FileIndexEntry {
	entries := make([]store.FileIndexEntry, 0, len(descs))
	for _, d := range descs {
		entries = append(entries, store.FileIndexEntry{
			ProjectFolderID: folder.ID,
			FileName:        d.Name,
			NormalizedName:  normalize.Name(d.Name),
			FullPath:        d.Path,
			RelativePath:    d.RelativePath,
			Extension:       normalize.Extension(d.Name),
			Size:            d.Size,
			ModifiedAt:      d.ModifiedAt,
			IndexedAt:       now,
		})
	}
	return entries
}
