package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/search"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// Handler is the service surface the server dispatches to.
// *index.Service implements it.
type Handler interface {
	AddFolder(ctx context.Context, projectPath, folderPath string) (*store.ProjectFolder, error)
	RemoveFolder(ctx context.Context, id string) error
	Folder(ctx context.Context, id string) (*store.ProjectFolder, error)
	Folders(ctx context.Context, projectPath string) ([]store.ProjectFolder, error)
	StartIndexing(ctx context.Context, folderID string) error
	CancelIndexing(opID string)
	CancelAllIndexing()
	SearchWithOptions(ctx context.Context, query string, opts search.SearchOptions) ([]store.FileIndexEntry, error)
	List(ctx context.Context, projectPath string) ([]store.FileIndexEntry, error)
	StartBackgroundIndexing(ctx context.Context) error
	Operations() []index.OperationSnapshot
	Status(ctx context.Context) (*index.Status, error)
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	timeout    time.Duration
	listener   net.Listener
	handler    Handler
	logger     *slog.Logger
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	baseCtx  context.Context
	wg       sync.WaitGroup
	tasks    sync.WaitGroup
}

// NewServer creates a server for cfg that dispatches to h.
func NewServer(cfg Config, h Handler, logger *slog.Logger) (*Server, error) {
	if h == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		socketPath: cfg.SocketPath,
		timeout:    timeout,
		handler:    h,
		logger:     logger,
		baseCtx:    context.Background(),
	}, nil
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
// Background indexing started over the socket runs under ctx and is
// waited for before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.baseCtx = ctx
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	s.tasks.Wait()

	return ctx.Err()
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("connection_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	s.logger.Debug("rpc_handled",
		slog.String("method", req.Method),
		slog.Bool("ok", resp.Error == nil),
		slog.Duration("duration", time.Since(start)))
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return s.handleStatus(ctx, req)

	case MethodAddFolder:
		var p AddFolderParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		f, err := s.handler.AddFolder(ctx, p.ProjectPath, p.FolderPath)
		if err != nil {
			return newErrorResponseFrom(req.ID, ErrCodeFolderFailed, err)
		}
		return NewSuccessResponse(req.ID, f)

	case MethodRemoveFolder:
		var p FolderIDParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		if err := s.handler.RemoveFolder(ctx, p.FolderID); err != nil {
			return newErrorResponseFrom(req.ID, ErrCodeFolderFailed, err)
		}
		return NewSuccessResponse(req.ID, StartedResult{Started: true, FolderID: p.FolderID})

	case MethodListFolders:
		var p ProjectParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		folders, err := s.handler.Folders(ctx, p.ProjectPath)
		if err != nil {
			return newErrorResponseFrom(req.ID, ErrCodeFolderFailed, err)
		}
		if folders == nil {
			folders = []store.ProjectFolder{}
		}
		return NewSuccessResponse(req.ID, folders)

	case MethodStartIndexing:
		return s.handleStartIndexing(ctx, req)

	case MethodCancelIndexing:
		var p OperationIDParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		s.handler.CancelIndexing(p.OperationID)
		return NewSuccessResponse(req.ID, StartedResult{Started: true})

	case MethodCancelAll:
		s.handler.CancelAllIndexing()
		return NewSuccessResponse(req.ID, StartedResult{Started: true})

	case MethodSearch:
		var p SearchParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		results, err := s.handler.SearchWithOptions(ctx, p.Query, search.SearchOptions{
			ProjectPath: p.ProjectPath,
			Limit:       p.Limit,
			Extensions:  p.Extensions,
		})
		if err != nil {
			return newErrorResponseFrom(req.ID, ErrCodeSearchFailed, err)
		}
		return NewSuccessResponse(req.ID, nonNil(results))

	case MethodList:
		var p ProjectParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		results, err := s.handler.List(ctx, p.ProjectPath)
		if err != nil {
			return newErrorResponseFrom(req.ID, ErrCodeSearchFailed, err)
		}
		return NewSuccessResponse(req.ID, nonNil(results))

	case MethodStartBackground:
		s.runTask("background", func(taskCtx context.Context) error {
			return s.handler.StartBackgroundIndexing(taskCtx)
		})
		return NewSuccessResponse(req.ID, StartedResult{Started: true})

	case MethodOperations:
		ops := s.handler.Operations()
		if ops == nil {
			ops = []index.OperationSnapshot{}
		}
		return NewSuccessResponse(req.ID, ops)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleStartIndexing checks the folder exists, then indexes it in the
// background so the response does not wait for the scan.
func (s *Server) handleStartIndexing(ctx context.Context, req Request) Response {
	var p FolderIDParams
	if resp, ok := decodeParams(req, &p); !ok {
		return resp
	}
	f, err := s.handler.Folder(ctx, p.FolderID)
	if err != nil {
		return newErrorResponseFrom(req.ID, ErrCodeIndexingFailed, err)
	}
	if f == nil {
		return newErrorResponseFrom(req.ID, ErrCodeFolderNotFound,
			pierrors.New(pierrors.ErrCodeFolderNotFound, fmt.Sprintf("folder not found: %s", p.FolderID), nil))
	}

	s.runTask("index", func(taskCtx context.Context) error {
		return s.handler.StartIndexing(taskCtx, p.FolderID)
	})
	return NewSuccessResponse(req.ID, StartedResult{Started: true, FolderID: p.FolderID})
}

func (s *Server) handleStatus(ctx context.Context, req Request) Response {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status := StatusResult{
		Running:    true,
		PID:        os.Getpid(),
		Uptime:     time.Since(started).Round(time.Second).String(),
		Operations: []index.OperationSnapshot{},
	}

	st, err := s.handler.Status(ctx)
	if err != nil {
		return newErrorResponseFrom(req.ID, ErrCodeInternalError, err)
	}
	status.Stats = st.Stats
	status.Watching = st.Watching
	status.Search = st.Search
	if st.Operations != nil {
		status.Operations = st.Operations
	}
	return NewSuccessResponse(req.ID, status)
}

// runTask runs fn outside the request, bounded by the server's lifetime.
func (s *Server) runTask(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			attrs := append([]any{slog.String("task", name)}, pierrors.LogAttrs(err)...)
			s.logger.Warn("rpc_task_failed", attrs...)
		}
	}()
}

// decodeParams re-decodes the generic params into dst and validates it.
func decodeParams(req Request, dst any) (Response, bool) {
	if req.Params != nil {
		data, err := json.Marshal(req.Params)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
		}
	}
	if v, ok := dst.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return newErrorResponseFrom(req.ID, ErrCodeInvalidParams, err), false
		}
	}
	return Response{}, true
}

func nonNil(entries []store.FileIndexEntry) []store.FileIndexEntry {
	if entries == nil {
		return []store.FileIndexEntry{}
	}
	return entries
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		return l.Close()
	}
	return nil
}
