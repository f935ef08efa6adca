package store

import (
	"context"
	"log/slog"
	"runtime"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

// DefaultBatchSize is the chunk size used when none is configured.
const DefaultBatchSize = 1000

// ProgressFunc receives the cumulative number of processed entries.
type ProgressFunc func(processed, total int)

// ChunkWriter is the subset of IndexStore the BatchWriter needs.
type ChunkWriter interface {
	RemoveAllForFolder(ctx context.Context, folderID string) error
	InsertChunk(ctx context.Context, entries []FileIndexEntry) error
	UpsertOne(ctx context.Context, entry FileIndexEntry) error
}

// BatchWriter replaces a folder's entries in bounded chunks.
type BatchWriter struct {
	w      ChunkWriter
	logger *slog.Logger
	yield  func()
}

// NewBatchWriter wraps w. A nil logger uses slog.Default().
func NewBatchWriter(w ChunkWriter, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{w: w, logger: logger, yield: runtime.Gosched}
}

// ReplaceAll deletes every entry of folderID, then writes entries in
// chunks of batchSize. A failed chunk is retried entry by entry and only
// the entries that fail on their own are dropped. onProgress runs after
// every chunk with the cumulative count.
//
// Cancelling ctx does not interrupt the write once it has started. The
// returned count is the number of entries actually persisted; the error
// is non-nil only when the initial delete fails.
func (b *BatchWriter) ReplaceAll(ctx context.Context, folderID string, entries []FileIndexEntry, batchSize int, onProgress ProgressFunc) (int, error) {
	ctx = context.WithoutCancel(ctx)
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if err := b.w.RemoveAllForFolder(ctx, folderID); err != nil {
		return 0, err
	}

	total := len(entries)
	written, dropped := 0, 0

	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)
		chunk := entries[start:end]

		if err := b.w.InsertChunk(ctx, chunk); err != nil {
			b.logger.Warn("batch_chunk_failed",
				append(pierrors.LogAttrs(pierrors.Wrap(pierrors.ErrCodePersistenceChunkFailed, err)),
					slog.String("folder_id", folderID),
					slog.Int("chunk_start", start),
					slog.Int("chunk_size", len(chunk)))...)

			for _, e := range chunk {
				if err := b.w.UpsertOne(ctx, e); err != nil {
					dropped++
					b.logger.Debug("batch_entry_dropped",
						slog.String("path", e.FullPath),
						slog.String("error", err.Error()))
					continue
				}
				written++
			}
		} else {
			written += len(chunk)
		}

		if onProgress != nil {
			onProgress(end, total)
		}
		b.yield()
	}

	if dropped > 0 {
		b.logger.Warn("batch_entries_dropped",
			slog.String("folder_id", folderID),
			slog.Int("dropped", dropped),
			slog.Int("written", written))
	}
	return written, nil
}
