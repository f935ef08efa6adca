package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/store"
)

func TestClient_NotRunning(t *testing.T) {
	client := NewClient(testConfig(t))

	assert.False(t, client.IsRunning())
	err := client.Ping(context.Background())
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeDaemonNotRunning))

	// WaitReady gives up after its retries
	err = client.WaitReady(context.Background(), pierrors.RetryConfig{
		MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1,
	})
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeDaemonNotRunning))
}

func TestClient_FolderLifecycle(t *testing.T) {
	h := newFakeHandler()
	client, _ := startServer(t, h)
	ctx := context.Background()

	// Given: a folder added over the socket
	f, err := client.AddFolder(ctx, "/work/app", "/data/assets")
	require.NoError(t, err)
	assert.Equal(t, "/work/app", f.ProjectPath)
	assert.Equal(t, store.StatusPending, f.Status)

	// When: the same pair is added again
	_, err = client.AddFolder(ctx, "/work/app", "/data/assets")

	// Then: the typed error code survives the round-trip
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeDuplicateFolder))

	// And: listing and removal work
	folders, err := client.ListFolders(ctx, "/work/app")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, f.ID, folders[0].ID)

	require.NoError(t, client.RemoveFolder(ctx, f.ID))
	folders, err = client.ListFolders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	client := NewClient(testConfig(t))
	ctx := context.Background()

	_, err := client.AddFolder(ctx, "", "/data")
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeInvalidInput))
	assert.True(t, pierrors.IsCode(client.RemoveFolder(ctx, " "), pierrors.ErrCodeInvalidInput))
	assert.True(t, pierrors.IsCode(client.StartIndexing(ctx, ""), pierrors.ErrCodeInvalidInput))
	assert.True(t, pierrors.IsCode(client.CancelIndexing(ctx, ""), pierrors.ErrCodeInvalidInput))
}

func TestClient_StartIndexing(t *testing.T) {
	h := newFakeHandler()
	client, _ := startServer(t, h)
	ctx := context.Background()
	f, err := client.AddFolder(ctx, "/work/app", "/data/a")
	require.NoError(t, err)

	// Unknown folders are reported
	err = client.StartIndexing(ctx, "missing")
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeFolderNotFound))

	// Known folders are indexed in the background
	require.NoError(t, client.StartIndexing(ctx, f.ID))
	assert.Eventually(t, func() bool {
		ids := h.indexedIDs()
		return len(ids) == 1 && ids[0] == f.ID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_Search_PassesOptions(t *testing.T) {
	// Given: a handler with one result
	h := newFakeHandler()
	h.results = []store.FileIndexEntry{{FileName: "Café.tsx", FullPath: "/data/Café.tsx", Extension: "tsx"}}
	client, _ := startServer(t, h)

	// When: searching with every option
	got, err := client.Search(context.Background(), SearchParams{
		Query:       "cafe",
		ProjectPath: "/work/app",
		Limit:       -3,
		Extensions:  []string{"tsx"},
	})

	// Then: results come back and options reach the handler
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Café.tsx", got[0].FileName)
	assert.Equal(t, "cafe", h.lastQuery)
	assert.Equal(t, "/work/app", h.lastOpts.ProjectPath)
	assert.Equal(t, 0, h.lastOpts.Limit)
	assert.Equal(t, []string{"tsx"}, h.lastOpts.Extensions)

	listed, err := client.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestClient_Search_Failure(t *testing.T) {
	h := newFakeHandler()
	h.searchErr = errors.New("disk I/O error")
	client, _ := startServer(t, h)

	_, err := client.Search(context.Background(), SearchParams{Query: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestClient_OperationsAndCancel(t *testing.T) {
	h := newFakeHandler()
	total := 4
	h.ops = []index.OperationSnapshot{{
		Operation:   index.Operation{ID: "op1", FolderID: "f1", Phase: index.PhaseSaving, Current: 2, Total: &total},
		ProgressPct: 50,
	}}
	client, _ := startServer(t, h)
	ctx := context.Background()

	ops, err := client.Operations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op1", ops[0].ID)
	assert.Equal(t, index.PhaseSaving, ops[0].Phase)
	require.NotNil(t, ops[0].Total)
	assert.Equal(t, 4, *ops[0].Total)

	require.NoError(t, client.CancelIndexing(ctx, "op1"))
	require.NoError(t, client.CancelAll(ctx))
	require.NoError(t, client.StartBackground(ctx))

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"op1"}, h.cancelled)
	assert.Equal(t, 1, h.cancelAll)
}

func TestClient_Status(t *testing.T) {
	h := newFakeHandler()
	client, _ := startServer(t, h)
	_, err := client.AddFolder(context.Background(), "/work/app", "/data/a")
	require.NoError(t, err)

	st, err := client.Status(context.Background())

	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Positive(t, st.PID)
	require.NotNil(t, st.Stats)
	assert.Equal(t, 1, st.Stats.Folders)
	assert.Equal(t, 1, st.Watching)
	assert.NotNil(t, st.Operations)
}
