// Package mcp exposes the path index to AI clients over the Model Context
// Protocol. Tools read from the shared store; indexing stays with the
// daemon and the CLI.
package mcp

import (
	"context"
	"errors"
	"fmt"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

// Custom MCP error codes for pathindex.
const (
	// ErrCodeFolderNotFound indicates an unknown folder or project.
	ErrCodeFolderNotFound = -32001

	// ErrCodeStoreFailed indicates the index could not be read.
	ErrCodeStoreFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var pe *pierrors.PathIndexError
	if errors.As(err, &pe) {
		return mapPathIndexError(pe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapPathIndexError picks a code from the error's category.
func mapPathIndexError(pe *pierrors.PathIndexError) *MCPError {
	message := pe.Message
	if pe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", pe.Message, pe.Suggestion)
	}

	switch {
	case pe.Code == pierrors.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case pe.Category == pierrors.CategoryFolder:
		if pe.Code == pierrors.ErrCodeFolderNotFound {
			return &MCPError{Code: ErrCodeFolderNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case pe.Category == pierrors.CategoryStore:
		return &MCPError{Code: ErrCodeStoreFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
