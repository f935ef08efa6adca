package errors

import (
	stderrors "errors"
	"fmt"
)

// PathIndexError is the structured error type for pathindex.
// It provides rich context for error handling, logging, and user presentation.
type PathIndexError struct {
	// Code is the unique error code (e.g., "ERR_101_DUPLICATE_FOLDER").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Folder, Scan, Store, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *PathIndexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PathIndexError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PathIndexError with the same code.
func (e *PathIndexError) Is(target error) bool {
	if t, ok := target.(*PathIndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PathIndexError) WithDetail(key, value string) *PathIndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *PathIndexError) WithSuggestion(suggestion string) *PathIndexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PathIndexError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PathIndexError {
	return &PathIndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PathIndexError from an existing error.
// The error's message becomes the PathIndexError message.
func Wrap(code string, err error) *PathIndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *PathIndexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError creates a persistence error.
func StoreError(message string, cause error) *PathIndexError {
	return New(ErrCodeStoreQuery, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *PathIndexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PathIndexError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first PathIndexError in err's chain.
func as(err error) (*PathIndexError, bool) {
	var pe *PathIndexError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if pe, ok := as(err); ok {
		return pe.Retryable
	}
	return false
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from a PathIndexError.
// Returns empty string if there is none in the chain.
func GetCode(err error) string {
	if pe, ok := as(err); ok {
		return pe.Code
	}
	return ""
}
