package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/search"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// fakeBackend returns canned data and records the last search.
type fakeBackend struct {
	entries   []store.FileIndexEntry
	folders   []store.ProjectFolder
	status    *index.Status
	err       error
	lastQuery string
	lastOpts  search.SearchOptions
}

func (f *fakeBackend) SearchWithOptions(_ context.Context, query string, opts search.SearchOptions) ([]store.FileIndexEntry, error) {
	f.lastQuery = query
	f.lastOpts = opts
	return f.entries, f.err
}

func (f *fakeBackend) Folders(_ context.Context, projectPath string) ([]store.ProjectFolder, error) {
	var out []store.ProjectFolder
	for _, pf := range f.folders {
		if projectPath == "" || pf.ProjectPath == projectPath {
			out = append(out, pf)
		}
	}
	return out, f.err
}

func (f *fakeBackend) Status(context.Context) (*index.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func sampleBackend() *fakeBackend {
	total := 10
	return &fakeBackend{
		entries: []store.FileIndexEntry{
			{ProjectFolderID: "f1", FileName: "Config.ts", NormalizedName: "config.ts", Extension: "ts", FullPath: "/data/Config.ts", RelativePath: "Config.ts", Size: 2048},
			{ProjectFolderID: "f1", FileName: "config-old.ts", NormalizedName: "config-old.ts", Extension: "ts", FullPath: "/data/config-old.ts", RelativePath: "config-old.ts", Size: 10},
			{ProjectFolderID: "f1", FileName: "myconfig.ts", NormalizedName: "myconfig.ts", Extension: "ts", FullPath: "/data/myconfig.ts", RelativePath: "myconfig.ts"},
		},
		folders: []store.ProjectFolder{
			{ID: "f1", ProjectPath: "/work/app", FolderPath: "/data", Status: store.StatusIndexed, FileCount: 3},
			{ID: "f2", ProjectPath: "/work/other", FolderPath: "/assets", Status: store.StatusError, ErrorMessage: "permission denied"},
		},
		status: &index.Status{
			Stats: &store.Stats{Folders: 2, Entries: 3, ByStatus: map[store.FolderStatus]int{
				store.StatusIndexed: 1, store.StatusError: 1,
			}},
			Operations: []index.OperationSnapshot{{
				Operation:   index.Operation{ID: "op1", FolderID: "f2", Phase: index.PhaseSaving, Current: 5, Total: &total},
				ProgressPct: 50,
			}},
		},
	}
}

func TestNewServer_RequiresBackend(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	s, err := NewServer(sampleBackend(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search_paths", "list_folders", "index_status"}, names)
}

func TestSearchPaths_ConvertsAndExplainsMatches(t *testing.T) {
	// Given: a backend returning ranked entries
	b := sampleBackend()
	s, err := NewServer(b, nil)
	require.NoError(t, err)

	// When: searching through the SDK handler
	_, out, err := s.mcpSearchPathsHandler(context.Background(), nil, SearchPathsInput{
		Query:       "Config",
		ProjectPath: "/work/app",
		Extensions:  []string{"ts"},
	})

	// Then: options reach the backend and results explain their tier
	require.NoError(t, err)
	assert.Equal(t, "Config", b.lastQuery)
	assert.Equal(t, "/work/app", b.lastOpts.ProjectPath)
	assert.Equal(t, DefaultLimit, b.lastOpts.Limit)
	assert.Equal(t, []string{"ts"}, b.lastOpts.Extensions)

	require.Len(t, out.Results, 3)
	assert.Equal(t, "exact", out.Results[0].MatchReason)
	assert.Equal(t, "prefix", out.Results[1].MatchReason)
	assert.Equal(t, "contains", out.Results[2].MatchReason)
	assert.Equal(t, "text/typescript", out.Results[0].MIMEType)
	assert.Equal(t, "f1", out.Results[0].FolderID)
}

func TestSearchPaths_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     SearchPathsInput
		wantLimit int
		wantErr   bool
	}{
		{"empty query", SearchPathsInput{Query: ""}, 0, true},
		{"whitespace query", SearchPathsInput{Query: "   "}, 0, true},
		{"default limit", SearchPathsInput{Query: "a"}, DefaultLimit, false},
		{"limit kept", SearchPathsInput{Query: "a", Limit: 7}, 7, false},
		{"limit clamped", SearchPathsInput{Query: "a", Limit: 10_000}, MaxLimit, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sampleBackend()
			s, err := NewServer(b, nil)
			require.NoError(t, err)

			_, err = s.searchPaths(context.Background(), tt.input)

			if tt.wantErr {
				var me *MCPError
				require.ErrorAs(t, err, &me)
				assert.Equal(t, ErrCodeInvalidParams, me.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, b.lastOpts.Limit)
		})
	}
}

func TestSearchPaths_BackendFailure(t *testing.T) {
	b := sampleBackend()
	b.err = pierrors.StoreError("database is locked", nil)
	s, err := NewServer(b, nil)
	require.NoError(t, err)

	_, err = s.searchPaths(context.Background(), SearchPathsInput{Query: "x"})

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeStoreFailed, me.Code)
}

func TestCallTool_Markdown(t *testing.T) {
	s, err := NewServer(sampleBackend(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	text, err := s.CallTool(ctx, "search_paths", map[string]any{"query": "config", "limit": float64(5), "extensions": []any{"ts"}})
	require.NoError(t, err)
	assert.Contains(t, text, "Found 3 files")
	assert.Contains(t, text, "`/data/Config.ts` (exact, 2.0 KB)")

	text, err = s.CallTool(ctx, "list_folders", map[string]any{"project_path": "/work/other"})
	require.NoError(t, err)
	assert.Contains(t, text, "error: permission denied")
	assert.NotContains(t, text, "/work/app")

	text, err = s.CallTool(ctx, "index_status", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "2 folders, 3 files, 1 scans running (ready: false)")

	_, err = s.CallTool(ctx, "search_code", nil)
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeMethodNotFound, me.Code)
}

func TestIndexStatus_Ready(t *testing.T) {
	// Given: every folder indexed and nothing running
	b := sampleBackend()
	b.status = &index.Status{Stats: &store.Stats{Folders: 1, Entries: 3, ByStatus: map[store.FolderStatus]int{store.StatusIndexed: 1}}, Watching: 1}
	s, err := NewServer(b, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	// When: status is requested
	_, out, err := s.mcpIndexStatusHandler(context.Background(), nil, IndexStatusInput{})

	// Then: the index reports ready
	require.NoError(t, err)
	assert.True(t, out.Ready)
	assert.Equal(t, 1, out.ByStatus["indexed"])
	assert.Equal(t, 1, out.Watching)
	assert.Equal(t, "2026-01-02T03:04:05Z", out.CheckedAt)
}

func TestServer_OverInMemoryTransport(t *testing.T) {
	// Given: a server and a client connected in memory
	s, err := NewServer(sampleBackend(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	// When: search_paths is called
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_paths",
		Arguments: map[string]any{"query": "config"},
	})

	// Then: structured results come back
	require.NoError(t, err)
	require.False(t, res.IsError)
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out SearchPathsOutput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out.Results, 3)

	// And: the folders resource is readable
	rr, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: FoldersResourceURI})
	require.NoError(t, err)
	require.Len(t, rr.Contents, 1)
	var folders ListFoldersOutput
	require.NoError(t, json.Unmarshal([]byte(rr.Contents[0].Text), &folders))
	assert.Len(t, folders.Folders, 2)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid input", pierrors.ValidationError("bad", nil), ErrCodeInvalidParams},
		{"folder not found", pierrors.New(pierrors.ErrCodeFolderNotFound, "gone", nil), ErrCodeFolderNotFound},
		{"invalid folder", pierrors.New(pierrors.ErrCodeInvalidFolder, "not a dir", nil), ErrCodeInvalidParams},
		{"store", pierrors.StoreError("locked", nil), ErrCodeStoreFailed},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
		})
	}
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := pierrors.New(pierrors.ErrCodeFolderNotFound, "folder not found", nil).WithSuggestion("Run 'pathindex folder list'.")

	got := MapError(err)

	assert.Equal(t, "folder not found Run 'pathindex folder list'.", got.Message)
}
