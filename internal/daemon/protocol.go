package daemon

import (
	"errors"
	"fmt"
	"strings"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/internal/telemetry"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing            = "ping"
	MethodStatus          = "status"
	MethodAddFolder       = "add_folder"
	MethodRemoveFolder    = "remove_folder"
	MethodListFolders     = "list_folders"
	MethodStartIndexing   = "start_indexing"
	MethodCancelIndexing  = "cancel_indexing"
	MethodCancelAll       = "cancel_all"
	MethodSearch          = "search"
	MethodList            = "list"
	MethodStartBackground = "start_background"
	MethodOperations      = "operations"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	ErrCodeFolderFailed   = -32001
	ErrCodeSearchFailed   = -32002
	ErrCodeIndexingFailed = -32003
	ErrCodeFolderNotFound = -32004
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the pathindex error
// code, when there is one, so clients can rebuild a typed error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData is the structured part of an Error.
type ErrorData struct {
	Code       string `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// newErrorResponseFrom maps err to an error response, keeping the
// pathindex code in Data.
func newErrorResponseFrom(id string, fallback int, err error) Response {
	resp := NewErrorResponse(id, fallback, err.Error())
	var pe *pierrors.PathIndexError
	if errors.As(err, &pe) {
		resp.Error.Message = pe.Message
		resp.Error.Data = &ErrorData{Code: pe.Code, Suggestion: pe.Suggestion}
		switch pe.Code {
		case pierrors.ErrCodeInvalidInput, pierrors.ErrCodeInvalidFolder:
			resp.Error.Code = ErrCodeInvalidParams
		case pierrors.ErrCodeFolderNotFound:
			resp.Error.Code = ErrCodeFolderNotFound
		}
	}
	return resp
}

// Err converts a response error back into a Go error. Errors that carry a
// pathindex code come back as *errors.PathIndexError.
func (e *Error) Err() error {
	if e == nil {
		return nil
	}
	if e.Data != nil && e.Data.Code != "" {
		pe := pierrors.New(e.Data.Code, e.Message, nil)
		if e.Data.Suggestion != "" {
			pe = pe.WithSuggestion(e.Data.Suggestion)
		}
		return pe
	}
	return fmt.Errorf("rpc error %d: %s", e.Code, e.Message)
}

// AddFolderParams are the parameters for add_folder.
type AddFolderParams struct {
	ProjectPath string `json:"project_path"`
	FolderPath  string `json:"folder_path"`
}

// Validate checks that required fields are present.
func (p *AddFolderParams) Validate() error {
	if strings.TrimSpace(p.ProjectPath) == "" {
		return pierrors.ValidationError("project_path is required", nil)
	}
	if strings.TrimSpace(p.FolderPath) == "" {
		return pierrors.ValidationError("folder_path is required", nil)
	}
	return nil
}

// FolderIDParams identifies one folder (remove_folder, start_indexing).
type FolderIDParams struct {
	FolderID string `json:"folder_id"`
}

// Validate checks that required fields are present.
func (p *FolderIDParams) Validate() error {
	if strings.TrimSpace(p.FolderID) == "" {
		return pierrors.ValidationError("folder_id is required", nil)
	}
	return nil
}

// OperationIDParams identifies one indexing operation.
type OperationIDParams struct {
	OperationID string `json:"operation_id"`
}

// Validate checks that required fields are present.
func (p *OperationIDParams) Validate() error {
	if strings.TrimSpace(p.OperationID) == "" {
		return pierrors.ValidationError("operation_id is required", nil)
	}
	return nil
}

// ProjectParams optionally scopes list_folders and list to a project.
type ProjectParams struct {
	ProjectPath string `json:"project_path,omitempty"`
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is matched against normalized file names. Empty browses.
	Query string `json:"query"`

	// ProjectPath restricts results to one project (optional).
	ProjectPath string `json:"project_path,omitempty"`

	// Limit caps the result count; 0 uses the configured maximum.
	Limit int `json:"limit,omitempty"`

	// Extensions keeps only matching extensions (optional).
	Extensions []string `json:"extensions,omitempty"`
}

// Validate normalises the parameters.
func (p *SearchParams) Validate() error {
	// Correct negative limit to default
	if p.Limit < 0 {
		p.Limit = 0
	}
	return nil
}

// StartedResult acknowledges work that continues in the background.
type StartedResult struct {
	Started  bool   `json:"started"`
	FolderID string `json:"folder_id,omitempty"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running    bool                      `json:"running"`
	PID        int                       `json:"pid"`
	Uptime     string                    `json:"uptime"`
	Stats      *store.Stats              `json:"stats,omitempty"`
	Operations []index.OperationSnapshot `json:"operations"`
	Watching   int                       `json:"watching"`
	Search     *telemetry.Snapshot       `json:"search,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
