package ui

import (
	"sort"
	"sync"
	"time"
)

// etaSmoothingFactor weighs a new ETA against the previous one.
const etaSmoothingFactor = 0.3

// ProgressTracker keeps per-folder scan progress for the TUI.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu        sync.Mutex
	folders   map[string]*folderProgress
	order     []string
	errors    []ErrorEvent
	warnings  []ErrorEvent
	startTime time.Time
	now       func() time.Time
}

type folderProgress struct {
	stage       Stage
	current     int
	total       int
	currentFile string
	stageStart  time.Time
	lastETA     time.Duration
	failed      bool
}

// FolderStats is a snapshot of one folder's progress.
type FolderStats struct {
	FolderID    string
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	Failed      bool
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Folders    []FolderStats
	Active     int
	Done       int
	ErrorCount int
	WarnCount  int
	Elapsed    time.Duration
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(now func() time.Time) *ProgressTracker {
	return &ProgressTracker{
		folders:   make(map[string]*folderProgress),
		startTime: now(),
		now:       now,
	}
}

// Update records a progress event. A stage change resets the folder's ETA.
func (p *ProgressTracker) Update(ev ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := p.folderLocked(ev.FolderID)
	if f.stage != ev.Stage {
		f.stage = ev.Stage
		f.stageStart = p.now()
		f.lastETA = 0
		f.currentFile = ""
	}
	f.current = ev.Current
	f.total = ev.Total
	if ev.CurrentFile != "" {
		f.currentFile = ev.CurrentFile
	}
}

// AddError records an error or warning and marks the folder finished.
func (p *ProgressTracker) AddError(ev ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.IsWarn {
		p.warnings = append(p.warnings, ev)
	} else {
		p.errors = append(p.errors, ev)
	}
	if ev.FolderID != "" {
		f := p.folderLocked(ev.FolderID)
		f.stage = StageComplete
		f.failed = !ev.IsWarn
	}
}

func (p *ProgressTracker) folderLocked(id string) *folderProgress {
	f, ok := p.folders[id]
	if !ok {
		f = &folderProgress{stageStart: p.now()}
		p.folders[id] = f
		p.order = append(p.order, id)
	}
	return f
}

// Stats returns the current snapshot, folders in first-seen order.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := ProgressStats{
		Folders:    make([]FolderStats, 0, len(p.order)),
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Elapsed:    p.now().Sub(p.startTime),
	}
	for _, id := range p.order {
		f := p.folders[id]
		fs := FolderStats{
			FolderID:    id,
			Stage:       f.stage,
			Current:     f.current,
			Total:       f.total,
			Progress:    fraction(f.current, f.total),
			ETA:         p.etaLocked(f),
			CurrentFile: f.currentFile,
			Failed:      f.failed,
		}
		if f.stage == StageComplete {
			out.Done++
		} else {
			out.Active++
		}
		out.Folders = append(out.Folders, fs)
	}
	return out
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// FolderIDs returns the tracked folder ids sorted.
func (p *ProgressTracker) FolderIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := append([]string(nil), p.order...)
	sort.Strings(ids)
	return ids
}

// etaLocked estimates the remaining time of f's stage with exponential
// smoothing. Only the indexing stage has a known total.
func (p *ProgressTracker) etaLocked(f *folderProgress) time.Duration {
	progress := fraction(f.current, f.total)
	if progress <= 0 || progress >= 1 || f.stage == StageComplete {
		return 0
	}

	elapsed := p.now().Sub(f.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if f.lastETA == 0 {
		f.lastETA = raw
		return raw
	}
	f.lastETA = time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(f.lastETA))
	return f.lastETA
}

func fraction(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(current) / float64(total)
	if pct > 1 {
		return 1
	}
	return pct
}
