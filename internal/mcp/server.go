package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/search"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/pkg/version"
)

// Tool limits for search_paths.
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Backend is the read surface the tools use. *index.Service implements it.
type Backend interface {
	SearchWithOptions(ctx context.Context, query string, opts search.SearchOptions) ([]store.FileIndexEntry, error)
	Folders(ctx context.Context, projectPath string) ([]store.ProjectFolder, error)
	Status(ctx context.Context) (*index.Status, error)
}

// Server is the MCP server for pathindex.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_paths",
		Description: "Find files in external folders attached to a project by part of their name. Matching ignores case and accents, so 'cafe' finds 'Café.tsx'. Exact names rank first, then prefixes, then substrings.",
	},
	{
		Name:        "list_folders",
		Description: "List the external folders attached to projects with their indexing status and file counts.",
	},
	{
		Name:        "index_status",
		Description: "Report folder and file counts and any scans in progress. Use it to check whether search results are complete.",
	},
}

// NewServer creates a new MCP server backed by b.
func NewServer(b Backend, logger *slog.Logger) (*Server, error) {
	if b == nil {
		return nil, errors.New("backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		backend: b,
		logger:  logger,
		now:     time.Now,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "pathindex",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with loosely typed arguments and returns
// a markdown rendering. It backs the CLI's tool debugging path and tests.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search_paths":
		in := SearchPathsInput{}
		in.Query, _ = args["query"].(string)
		in.ProjectPath, _ = args["project_path"].(string)
		if l, ok := args["limit"].(float64); ok {
			in.Limit = int(l)
		}
		if exts, ok := args["extensions"].([]any); ok {
			for _, e := range exts {
				if str, ok := e.(string); ok {
					in.Extensions = append(in.Extensions, str)
				}
			}
		}
		out, err := s.searchPaths(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(in.Query, out.Results), nil

	case "list_folders":
		project, _ := args["project_path"].(string)
		out, err := s.listFolders(ctx, project)
		if err != nil {
			return "", MapError(err)
		}
		return FormatFolders(out.Folders), nil

	case "index_status":
		out, err := s.indexStatus(ctx)
		if err != nil {
			return "", MapError(err)
		}
		return fmt.Sprintf("%d folders, %d files, %d scans running (ready: %t)",
			out.Folders, out.Entries, len(out.Indexing), out.Ready), nil

	default:
		return "", NewMethodNotFoundError(name)
	}
}

// searchPaths validates input, searches and converts results.
func (s *Server) searchPaths(ctx context.Context, in SearchPathsInput) (SearchPathsOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(in.Query) == "" {
		return SearchPathsOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	limit := clampLimit(in.Limit, DefaultLimit, 1, MaxLimit)

	results, err := s.backend.SearchWithOptions(ctx, in.Query, search.SearchOptions{
		ProjectPath: in.ProjectPath,
		Limit:       limit,
		Extensions:  in.Extensions,
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return SearchPathsOutput{}, MapError(err)
	}

	needle := needleFor(in.Query)
	out := SearchPathsOutput{Results: make([]PathResult, 0, len(results))}
	for _, e := range results {
		out.Results = append(out.Results, ToPathResult(e, needle))
	}

	s.logger.Info("mcp_search_complete",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(out.Results)))
	return out, nil
}

func (s *Server) listFolders(ctx context.Context, projectPath string) (ListFoldersOutput, error) {
	folders, err := s.backend.Folders(ctx, projectPath)
	if err != nil {
		return ListFoldersOutput{}, err
	}
	out := ListFoldersOutput{Folders: make([]FolderOutput, 0, len(folders))}
	for _, f := range folders {
		out.Folders = append(out.Folders, ToFolderOutput(f))
	}
	return out, nil
}

func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	st, err := s.backend.Status(ctx)
	if err != nil {
		return nil, err
	}

	out := &IndexStatusOutput{
		ByStatus:  make(map[string]int),
		Watching:  st.Watching,
		CheckedAt: s.now().UTC().Format(time.RFC3339),
	}
	if st.Stats != nil {
		out.Folders = st.Stats.Folders
		out.Entries = st.Stats.Entries
		for status, n := range st.Stats.ByStatus {
			out.ByStatus[string(status)] = n
		}
	}
	for _, op := range st.Operations {
		out.Indexing = append(out.Indexing, IndexingProgress{
			OperationID:    op.ID,
			FolderID:       op.FolderID,
			Phase:          string(op.Phase),
			Current:        op.Current,
			Total:          op.Total,
			ProgressPct:    op.ProgressPct,
			ElapsedSeconds: op.ElapsedSeconds,
			CurrentFile:    op.CurrentFile,
		})
	}
	out.Ready = len(out.Indexing) == 0 &&
		out.ByStatus[string(store.StatusPending)] == 0 &&
		out.ByStatus[string(store.StatusIndexing)] == 0
	return out, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchPathsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpListFoldersHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchPathsHandler is the MCP SDK handler for the search_paths tool.
func (s *Server) mcpSearchPathsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchPathsInput) (
	*mcp.CallToolResult,
	SearchPathsOutput,
	error,
) {
	out, err := s.searchPaths(ctx, input)
	if err != nil {
		return nil, SearchPathsOutput{}, err
	}
	return nil, out, nil
}

// mcpListFoldersHandler is the MCP SDK handler for the list_folders tool.
func (s *Server) mcpListFoldersHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListFoldersInput) (
	*mcp.CallToolResult,
	ListFoldersOutput,
	error,
) {
	out, err := s.listFolders(ctx, input.ProjectPath)
	if err != nil {
		return nil, ListFoldersOutput{}, MapError(err)
	}
	return nil, out, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, out, nil
}

// Serve runs the server on stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
