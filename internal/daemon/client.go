package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// Client talks to a running daemon. Each call opens one connection.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    timeout,
	}
}

// Connect establishes a connection to the daemon. It fails with
// ERR_601_DAEMON_NOT_RUNNING when nothing listens on the socket.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, pierrors.New(pierrors.ErrCodeDaemonNotRunning,
			fmt.Sprintf("daemon is not running at %s", c.socketPath), err).
			WithSuggestion("Start it with 'pathindex serve'")
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitReady pings with exponential backoff until the daemon answers, for
// callers that have just started one.
func (c *Client) WaitReady(ctx context.Context, cfg pierrors.RetryConfig) error {
	_, err := pierrors.Retry(ctx, cfg, true, func() (struct{}, error) {
		return struct{}{}, c.Ping(ctx)
	})
	return err
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	return c.call(ctx, MethodPing, nil, &res)
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// AddFolder attaches folderPath to projectPath.
func (c *Client) AddFolder(ctx context.Context, projectPath, folderPath string) (*store.ProjectFolder, error) {
	params := AddFolderParams{ProjectPath: projectPath, FolderPath: folderPath}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var f store.ProjectFolder
	if err := c.call(ctx, MethodAddFolder, params, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// RemoveFolder detaches a folder and deletes its entries.
func (c *Client) RemoveFolder(ctx context.Context, folderID string) error {
	params := FolderIDParams{FolderID: folderID}
	if err := params.Validate(); err != nil {
		return err
	}
	var res StartedResult
	return c.call(ctx, MethodRemoveFolder, params, &res)
}

// ListFolders returns the folders of projectPath, or all when empty.
func (c *Client) ListFolders(ctx context.Context, projectPath string) ([]store.ProjectFolder, error) {
	var folders []store.ProjectFolder
	if err := c.call(ctx, MethodListFolders, ProjectParams{ProjectPath: projectPath}, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// StartIndexing asks the daemon to re-index a folder. It returns once the
// run has been accepted; progress is visible through Operations.
func (c *Client) StartIndexing(ctx context.Context, folderID string) error {
	params := FolderIDParams{FolderID: folderID}
	if err := params.Validate(); err != nil {
		return err
	}
	var res StartedResult
	return c.call(ctx, MethodStartIndexing, params, &res)
}

// CancelIndexing cancels one operation. Unknown ids are a no-op.
func (c *Client) CancelIndexing(ctx context.Context, operationID string) error {
	params := OperationIDParams{OperationID: operationID}
	if err := params.Validate(); err != nil {
		return err
	}
	var res StartedResult
	return c.call(ctx, MethodCancelIndexing, params, &res)
}

// CancelAll cancels every active operation.
func (c *Client) CancelAll(ctx context.Context) error {
	var res StartedResult
	return c.call(ctx, MethodCancelAll, nil, &res)
}

// Search sends a search request to the daemon.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]store.FileIndexEntry, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var results []store.FileIndexEntry
	if err := c.call(ctx, MethodSearch, params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// List browses a project, or every folder when projectPath is empty.
func (c *Client) List(ctx context.Context, projectPath string) ([]store.FileIndexEntry, error) {
	var results []store.FileIndexEntry
	if err := c.call(ctx, MethodList, ProjectParams{ProjectPath: projectPath}, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// StartBackground queues a background run over due folders.
func (c *Client) StartBackground(ctx context.Context) error {
	var res StartedResult
	return c.call(ctx, MethodStartBackground, nil, &res)
}

// Operations returns the daemon's active indexing operations.
func (c *Client) Operations(ctx context.Context) ([]index.OperationSnapshot, error) {
	var ops []index.OperationSnapshot
	if err := c.call(ctx, MethodOperations, nil, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// call performs one request/response round-trip and decodes the result
// into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}

	if err := c.send(conn, req); err != nil {
		return err
	}

	resp, err := c.receive(conn)
	if err != nil {
		return err
	}

	if resp.Error != nil {
		return resp.Error.Err()
	}
	if out == nil || resp.Result == nil {
		return nil
	}

	resultData, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultData, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// send encodes and writes a request to the connection.
func (c *Client) send(conn net.Conn, req Request) error {
	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// receive reads and decodes a response from the connection.
func (c *Client) receive(conn net.Conn) (*Response, error) {
	decoder := json.NewDecoder(conn)
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	return &resp, nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
