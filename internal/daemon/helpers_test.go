package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/search"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// testConfig returns unique paths under /tmp; t.TempDir paths can exceed
// the unix socket path limit.
func testConfig(t *testing.T) Config {
	t.Helper()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	cfg := Config{
		SocketPath:          filepath.Join("/tmp", "pathindex-test-"+suffix+".sock"),
		PIDPath:             filepath.Join("/tmp", "pathindex-test-"+suffix+".pid"),
		LockPath:            filepath.Join("/tmp", "pathindex-test-"+suffix+".lock"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
	}
	t.Cleanup(func() {
		os.Remove(cfg.SocketPath)
		os.Remove(cfg.PIDPath)
		os.Remove(cfg.LockPath)
	})
	return cfg
}

// fakeHandler records calls and returns canned data.
type fakeHandler struct {
	mu         sync.Mutex
	folders    map[string]*store.ProjectFolder
	results    []store.FileIndexEntry
	lastQuery  string
	lastOpts   search.SearchOptions
	indexed    []string
	cancelled  []string
	cancelAll  int
	background int
	ops        []index.OperationSnapshot
	searchErr  error
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{folders: make(map[string]*store.ProjectFolder)}
}

func (f *fakeHandler) AddFolder(_ context.Context, projectPath, folderPath string) (*store.ProjectFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.folders {
		if existing.ProjectPath == projectPath && existing.FolderPath == folderPath {
			return nil, pierrors.New(pierrors.ErrCodeDuplicateFolder, "folder already attached", nil)
		}
	}
	id := fmt.Sprintf("f%d", len(f.folders)+1)
	pf := &store.ProjectFolder{ID: id, ProjectPath: projectPath, FolderPath: folderPath, Status: store.StatusPending}
	f.folders[id] = pf
	return pf, nil
}

func (f *fakeHandler) RemoveFolder(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.folders, id)
	return nil
}

func (f *fakeHandler) Folder(_ context.Context, id string) (*store.ProjectFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.folders[id], nil
}

func (f *fakeHandler) Folders(_ context.Context, projectPath string) ([]store.ProjectFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ProjectFolder
	for _, pf := range f.folders {
		if projectPath == "" || pf.ProjectPath == projectPath {
			out = append(out, *pf)
		}
	}
	return out, nil
}

func (f *fakeHandler) StartIndexing(_ context.Context, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, folderID)
	return nil
}

func (f *fakeHandler) CancelIndexing(opID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, opID)
}

func (f *fakeHandler) CancelAllIndexing() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAll++
}

func (f *fakeHandler) SearchWithOptions(_ context.Context, query string, opts search.SearchOptions) ([]store.FileIndexEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	f.lastOpts = opts
	return f.results, f.searchErr
}

func (f *fakeHandler) List(_ context.Context, _ string) ([]store.FileIndexEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, nil
}

func (f *fakeHandler) StartBackgroundIndexing(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.background++
	return nil
}

func (f *fakeHandler) Operations() []index.OperationSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

func (f *fakeHandler) Status(_ context.Context) (*index.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &index.Status{
		Stats:      &store.Stats{Folders: len(f.folders), ByStatus: map[store.FolderStatus]int{}},
		Operations: f.ops,
		Watching:   1,
	}, nil
}

func (f *fakeHandler) indexedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.indexed...)
}

// startServer serves h on a fresh socket and returns a connected client.
func startServer(t *testing.T, h Handler) (*Client, Config) {
	t.Helper()
	cfg := testConfig(t)
	srv, err := NewServer(cfg, h, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)
	return client, cfg
}
