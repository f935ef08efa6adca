package index

import (
	"sort"
	"sync"
	"time"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

// Phase is the stage of an indexing operation.
type Phase string

const (
	PhaseScanning  Phase = "scanning"
	PhaseIndexing  Phase = "indexing"
	PhaseSaving    Phase = "saving"
	PhaseComplete  Phase = "complete"
	PhaseCancelled Phase = "cancelled"
	PhaseError     Phase = "error"
)

// Operation is the progress state of one full scan of a folder.
type Operation struct {
	ID                 string    `json:"id"`
	FolderID           string    `json:"folder_id"`
	Phase              Phase     `json:"phase"`
	Current            int       `json:"current"`
	Total              *int      `json:"total,omitempty"`
	CurrentFile        string    `json:"current_file,omitempty"`
	DirectoriesScanned int       `json:"directories_scanned"`
	Skipped            int       `json:"skipped"`
	Error              string    `json:"error,omitempty"`
	StartedAt          time.Time `json:"started_at"`
}

// OperationSnapshot is an immutable copy of an Operation for readers.
type OperationSnapshot struct {
	Operation
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
}

// Operations is the registry of active indexing operations. Only the
// Orchestrator mutates it.
type Operations struct {
	mu       sync.RWMutex
	ops      map[string]*Operation
	byFolder map[string]string
	// detached maps cancelled operation ids to their folder. They are
	// hidden from readers but keep the folder reserved until Remove.
	detached map[string]string
	now      func() time.Time
}

// NewOperations creates an empty registry.
func NewOperations() *Operations {
	return &Operations{
		ops:      make(map[string]*Operation),
		byFolder: make(map[string]string),
		detached: make(map[string]string),
		now:      time.Now,
	}
}

// Begin registers a new operation in the scanning phase. A folder can have
// at most one active operation.
func (o *Operations) Begin(id, folderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if active, ok := o.byFolder[folderID]; ok {
		return pierrors.New(pierrors.ErrCodeAlreadyIndexing, "folder is already being indexed", nil).
			WithDetail("folder_id", folderID).
			WithDetail("operation_id", active)
	}
	o.ops[id] = &Operation{
		ID:        id,
		FolderID:  folderID,
		Phase:     PhaseScanning,
		StartedAt: o.now(),
	}
	o.byFolder[folderID] = id
	return nil
}

// Update applies fn to the operation under the write lock. It reports
// false when id is not active.
func (o *Operations) Update(id string, fn func(op *Operation)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	op, ok := o.ops[id]
	if !ok {
		return false
	}
	fn(op)
	return true
}

// Detach hides the operation from readers while its folder stays
// reserved. The reservation ends when the owner calls Remove.
func (o *Operations) Detach(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	op, ok := o.ops[id]
	if !ok {
		return
	}
	delete(o.ops, id)
	o.detached[id] = op.FolderID
}

// Remove drops the operation and releases its folder. Unknown ids are a
// no-op.
func (o *Operations) Remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	folderID, ok := o.detached[id]
	if ok {
		delete(o.detached, id)
	} else {
		op, found := o.ops[id]
		if !found {
			return
		}
		delete(o.ops, id)
		folderID = op.FolderID
	}
	if o.byFolder[folderID] == id {
		delete(o.byFolder, folderID)
	}
}

// Get returns a snapshot of the operation.
func (o *Operations) Get(id string) (OperationSnapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	op, ok := o.ops[id]
	if !ok {
		return OperationSnapshot{}, false
	}
	return o.snapshot(op), true
}

// ActiveFor returns the id of the operation holding the folder, if any.
// A cancelled operation holds it until its scan has returned.
func (o *Operations) ActiveFor(folderID string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	id, ok := o.byFolder[folderID]
	return id, ok
}

// List returns snapshots of all active operations, oldest first.
func (o *Operations) List() []OperationSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]OperationSnapshot, 0, len(o.ops))
	for _, op := range o.ops {
		out = append(out, o.snapshot(op))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// IDs returns the ids of all active operations.
func (o *Operations) IDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]string, 0, len(o.ops))
	for id := range o.ops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of active operations.
func (o *Operations) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.ops)
}

// snapshot must be called with o.mu held.
func (o *Operations) snapshot(op *Operation) OperationSnapshot {
	cp := *op
	if op.Total != nil {
		total := *op.Total
		cp.Total = &total
	}

	var pct float64
	if cp.Total != nil && *cp.Total > 0 {
		pct = float64(cp.Current) / float64(*cp.Total) * 100.0
	}
	return OperationSnapshot{
		Operation:      cp,
		ProgressPct:    pct,
		ElapsedSeconds: int(o.now().Sub(op.StartedAt).Seconds()),
	}
}
