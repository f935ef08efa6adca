package ui

import (
	"context"
	"errors"
	"time"

	"github.com/Aman-CERP/pathindex/internal/index"
)

// Follow feeds broker events into r until done is closed or ctx ends, then
// drains what is still buffered and returns the run summary. The caller
// owns r's Start, Complete and Stop.
func Follow(ctx context.Context, events <-chan index.Event, r Renderer, done <-chan struct{}) CompletionStats {
	start := time.Now()
	var stats CompletionStats
	finished := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			stats.Duration = time.Since(start)
			return stats
		case <-done:
			drain(events, r, &stats, finished)
			stats.Duration = time.Since(start)
			return stats
		case ev, ok := <-events:
			if !ok {
				stats.Duration = time.Since(start)
				return stats
			}
			apply(ev, r, &stats, finished)
		}
	}
}

func drain(events <-chan index.Event, r Renderer, stats *CompletionStats, finished map[string]bool) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			apply(ev, r, stats, finished)
		default:
			return
		}
	}
}

// apply translates one event. Only operation events matter here; folder
// status and watcher events are ignored.
func apply(ev index.Event, r Renderer, stats *CompletionStats, finished map[string]bool) {
	if ev.Operation == nil {
		return
	}
	op := ev.Operation

	switch ev.Kind {
	case index.EventProgress:
		pe := ProgressEvent{
			FolderID:    op.FolderID,
			Stage:       StageFromPhase(op.Phase),
			Current:     op.Current,
			CurrentFile: op.CurrentFile,
		}
		if op.Total != nil {
			pe.Total = *op.Total
		}
		r.UpdateProgress(pe)

	case index.EventOperationDone:
		if finished[op.ID] {
			return
		}
		finished[op.ID] = true
		stats.Folders++
		stats.Skipped += op.Skipped

		switch op.Phase {
		case index.PhaseComplete:
			stats.Files += op.Current
			r.UpdateProgress(ProgressEvent{FolderID: op.FolderID, Stage: StageComplete, Current: op.Current, Total: op.Current})
		case index.PhaseCancelled:
			stats.Cancelled++
			r.AddError(ErrorEvent{FolderID: op.FolderID, Err: errors.New("cancelled"), IsWarn: true})
		default:
			stats.Errors++
			msg := op.Error
			if msg == "" {
				msg = "indexing failed"
			}
			r.AddError(ErrorEvent{FolderID: op.FolderID, Err: errors.New(msg)})
		}
	}
}
