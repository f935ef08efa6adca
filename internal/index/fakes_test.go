package index

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathindex/internal/config"
	"github.com/Aman-CERP/pathindex/internal/scanner"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/internal/watcher"
)

// fakeScanner returns canned descriptors per folder path. With blocking
// set, Scan waits until Cancel is called for its operation.
type fakeScanner struct {
	mu        sync.Mutex
	files     map[string][]scanner.FileDescriptor
	errs      map[string]error
	blocking  bool
	linger    chan struct{}
	started   chan string
	cancelled map[string]chan struct{}
	calls     int
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{
		files:     make(map[string][]scanner.FileDescriptor),
		errs:      make(map[string]error),
		started:   make(chan string, 8),
		cancelled: make(map[string]chan struct{}),
	}
}

func (f *fakeScanner) set(dir string, names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	descs := make([]scanner.FileDescriptor, 0, len(names))
	for _, n := range names {
		descs = append(descs, scanner.FileDescriptor{
			Name:         filepath.Base(n),
			Path:         filepath.Join(dir, n),
			RelativePath: n,
			Size:         1,
		})
	}
	f.files[dir] = descs
}

func (f *fakeScanner) fail(dir string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[dir] = err
}

func (f *fakeScanner) setBlocking(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocking = b
}

// lingerAfterCancel keeps cancelled scans running until release is closed.
func (f *fakeScanner) lingerAfterCancel(release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linger = release
}

func (f *fakeScanner) Scan(ctx context.Context, folderPath, operationID string, progress scanner.ProgressFunc) ([]scanner.FileDescriptor, error) {
	f.mu.Lock()
	f.calls++
	files := f.files[folderPath]
	err := f.errs[folderPath]
	blocking := f.blocking
	linger := f.linger
	ch := make(chan struct{})
	f.cancelled[operationID] = ch
	f.mu.Unlock()

	if progress != nil {
		progress(scanner.Progress{Phase: "scanning", DirectoriesScanned: 1, CurrentFile: folderPath})
	}
	if blocking {
		f.started <- operationID
		select {
		case <-ch:
		case <-ctx.Done():
		}
		if linger != nil {
			<-linger
		}
		return nil, scanner.ErrAborted
	}
	if err != nil {
		return nil, err
	}
	return append([]scanner.FileDescriptor(nil), files...), nil
}

func (f *fakeScanner) Cancel(operationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.cancelled[operationID]; ok {
		close(ch)
		delete(f.cancelled, operationID)
	}
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSub struct {
	path string
	opts watcher.Options
	cb   watcher.Callback
}

// fakeWatcher records subscriptions and lets tests fire events.
type fakeWatcher struct {
	mu         sync.Mutex
	next       watcher.Handle
	subs       map[watcher.Handle]fakeSub
	watchErr   error
	watchCalls int
	unwatched  []watcher.Handle
	// onWatch runs after a subscription is created, outside the lock.
	onWatch func()
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{subs: make(map[watcher.Handle]fakeSub)}
}

func (f *fakeWatcher) Watch(path string, opts watcher.Options, cb watcher.Callback) (watcher.Handle, error) {
	f.mu.Lock()
	f.watchCalls++
	if f.watchErr != nil {
		f.mu.Unlock()
		return 0, f.watchErr
	}
	f.next++
	h := f.next
	f.subs[h] = fakeSub{path: path, opts: opts, cb: cb}
	hook := f.onWatch
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return h, nil
}

func (f *fakeWatcher) Unwatch(h watcher.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, h)
	f.unwatched = append(f.unwatched, h)
	return nil
}

func (f *fakeWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = make(map[watcher.Handle]fakeSub)
	return nil
}

func (f *fakeWatcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchErr = err
}

func (f *fakeWatcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watchCalls
}

func (f *fakeWatcher) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// emit delivers ev to every subscription whose root contains ev.Path.
func (f *fakeWatcher) emit(ev watcher.Event) {
	f.mu.Lock()
	var cbs []watcher.Callback
	for _, s := range f.subs {
		if isAncestor(s.path, ev.Path) {
			cbs = append(cbs, s.cb)
		}
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

type harness struct {
	store *store.SQLiteStore
	scan  *fakeScanner
	watch *fakeWatcher
	svc   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.NewSQLiteStore(store.MemoryPath, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.NewConfig()
	cfg.Indexing.InterFolderDelay = "0s"

	h := &harness{store: s, scan: newFakeScanner(), watch: newFakeWatcher()}
	h.svc, err = NewService(ServiceDependencies{
		Store:   s,
		Scanner: h.scan,
		Watcher: h.watch,
		Config:  cfg,
	})
	require.NoError(t, err)
	t.Cleanup(h.svc.Close)
	return h
}

// indexed attaches a temp folder containing names (as far as the fake
// scanner knows) and runs a full scan.
func (h *harness) indexed(t *testing.T, project string, names ...string) *store.ProjectFolder {
	t.Helper()
	dir := t.TempDir()
	h.scan.set(dir, names...)
	f, err := h.svc.AddFolder(context.Background(), project, dir)
	require.NoError(t, err)
	require.NoError(t, h.svc.StartIndexing(context.Background(), f.ID))
	h.svc.orch.Wait()
	return h.folder(t, f.ID)
}

func (h *harness) folder(t *testing.T, id string) *store.ProjectFolder {
	t.Helper()
	f, err := h.store.GetFolder(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, f)
	return f
}

func (h *harness) count(t *testing.T, id string) int {
	t.Helper()
	n, err := h.store.CountForFolder(context.Background(), id)
	require.NoError(t, err)
	return n
}
