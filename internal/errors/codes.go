// Package errors provides structured error handling for pathindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Folder registry errors
//   - 2XX: Scan and indexing errors
//   - 3XX: Store errors
//   - 4XX: Watch errors
//   - 5XX: Configuration errors
//   - 6XX: Daemon errors
//   - 9XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryFolder indicates folder registration errors.
	CategoryFolder Category = "FOLDER"
	// CategoryScan indicates scan and indexing errors.
	CategoryScan Category = "SCAN"
	// CategoryStore indicates persistence errors.
	CategoryStore Category = "STORE"
	// CategoryWatch indicates live change notification errors.
	CategoryWatch Category = "WATCH"
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryDaemon indicates daemon and IPC errors.
	CategoryDaemon Category = "DAEMON"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Folder errors (100-199)
	ErrCodeDuplicateFolder = "ERR_101_DUPLICATE_FOLDER"
	ErrCodeInvalidFolder   = "ERR_102_INVALID_FOLDER"
	ErrCodeFolderNotFound  = "ERR_103_FOLDER_NOT_FOUND"

	// Scan errors (200-299)
	ErrCodeScanAborted     = "ERR_201_SCAN_ABORTED"
	ErrCodeScanFailed      = "ERR_202_SCAN_FAILED"
	ErrCodeAlreadyIndexing = "ERR_203_ALREADY_INDEXING"

	// Store errors (300-399)
	ErrCodeStoreOpen              = "ERR_301_STORE_OPEN"
	ErrCodePersistenceChunkFailed = "ERR_302_PERSISTENCE_CHUNK_FAILED"
	ErrCodeStoreQuery             = "ERR_303_STORE_QUERY"

	// Watch errors (400-499)
	ErrCodeWatchStartFailed = "ERR_401_WATCH_START_FAILED"

	// Config errors (500-599)
	ErrCodeConfigInvalid  = "ERR_501_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_502_CONFIG_NOT_FOUND"

	// Daemon errors (600-699)
	ErrCodeDaemonNotRunning = "ERR_601_DAEMON_NOT_RUNNING"
	ErrCodeDaemonRunning    = "ERR_602_DAEMON_RUNNING"

	// Internal errors (900-999)
	ErrCodeInternal     = "ERR_901_INTERNAL"
	ErrCodeInvalidInput = "ERR_902_INVALID_INPUT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_DUPLICATE_FOLDER"
	switch code[4] {
	case '1':
		return CategoryFolder
	case '2':
		return CategoryScan
	case '3':
		return CategoryStore
	case '4':
		return CategoryWatch
	case '5':
		return CategoryConfig
	case '6':
		return CategoryDaemon
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreOpen:
		return SeverityFatal
	case ErrCodeScanAborted:
		return SeverityInfo
	case ErrCodePersistenceChunkFailed:
		// Salvaged entry by entry, never surfaced.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeWatchStartFailed, ErrCodeDaemonNotRunning, ErrCodeAlreadyIndexing:
		return true
	default:
		return false
	}
}
