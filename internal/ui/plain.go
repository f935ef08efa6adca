package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// plainMinInterval throttles repeated progress lines for the same folder
// and stage so pipes are not flooded by per-file updates.
const plainMinInterval = 500 * time.Millisecond

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	last     map[string]plainLine
	interval time.Duration
	now      func() time.Time
}

type plainLine struct {
	stage Stage
	at    time.Time
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:      cfg.Output,
		last:     make(map[string]plainLine),
		interval: plainMinInterval,
		now:      time.Now,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. A stage change always prints; within
// a stage lines are throttled per folder.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if prev, ok := r.last[event.FolderID]; ok && prev.stage == event.Stage && now.Sub(prev.at) < r.interval {
		return
	}
	r.last[event.FolderID] = plainLine{stage: event.Stage, at: now}

	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}
	prefix := fmt.Sprintf("[%s]", event.Stage.Icon())
	if event.FolderID != "" {
		prefix += " " + shortID(event.FolderID)
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "%s %d/%d %s\n", prefix, event.Current, event.Total, msg)
	case event.Current > 0:
		_, _ = fmt.Fprintf(r.out, "%s %d files %s\n", prefix, event.Current, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "%s %s\n", prefix, msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.FolderID != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, shortID(event.FolderID), event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d files in %d folder(s) indexed in %s",
		stats.Files, stats.Folders, stats.Duration.Round(100*time.Millisecond))
	if stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d skipped", stats.Skipped)
	}
	if stats.Errors > 0 || stats.Cancelled > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed, %d cancelled)", stats.Errors, stats.Cancelled)
	}
	_, _ = fmt.Fprintln(r.out)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// shortID trims a UUID to its first group for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ Renderer = (*PlainRenderer)(nil)
