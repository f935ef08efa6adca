package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces rapid events for the same path within a window:
//   - add + change = add (file is still new)
//   - add + unlink = nothing (file never really existed)
//   - change + unlink = unlink (file is gone)
//   - unlink + add = change (file was replaced)
type Debouncer struct {
	window  time.Duration
	pending map[string]Event
	mu      sync.Mutex
	output  chan []Event
	done    chan struct{}
	timer   *time.Timer
	stopped bool
	logger  *slog.Logger

	// sendMu serializes flushes so batches leave in the order they formed.
	sendMu sync.Mutex
}

// NewDebouncer creates a debouncer that emits batches window after the
// last event it received.
func NewDebouncer(window time.Duration, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		pending: make(map[string]Event),
		output:  make(chan []Event, 10),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Add queues an event, merging it with any pending event for the same path.
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		merged, keep := coalesce(existing, ev)
		if keep {
			d.pending[ev.Path] = merged
		} else {
			delete(d.pending, ev.Path)
		}
	} else {
		d.pending[ev.Path] = ev
	}

	d.scheduleFlush()
}

// coalesce merges next into prev. keep is false when they cancel out.
func coalesce(prev, next Event) (merged Event, keep bool) {
	switch prev.Type {
	case EventAdd:
		switch next.Type {
		case EventChange:
			return prev, true
		case EventUnlink:
			return Event{}, false
		}
	case EventUnlink:
		switch next.Type {
		case EventAdd:
			next.Type = EventChange
			return next, true
		case EventUnlink:
			next.IsDir = next.IsDir || prev.IsDir
			return next, true
		}
	}
	return next, true
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits all pending events ordered by path. When the output buffer
// is full it waits for the consumer rather than dropping the batch.
func (d *Debouncer) flush() {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	events := make([]Event, 0, len(d.pending))
	for _, ev := range d.pending {
		events = append(events, ev)
	}
	d.pending = make(map[string]Event)
	d.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
		d.logger.Debug("debouncer_output_full", slog.Int("batch_size", len(events)))
		select {
		case d.output <- events:
		case <-d.done:
		}
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop drops pending events and closes the output channel once no flush
// is sending. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
	close(d.done)
	d.mu.Unlock()

	d.sendMu.Lock()
	close(d.output)
	d.sendMu.Unlock()
}
