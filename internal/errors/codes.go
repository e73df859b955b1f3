// Package errors provides structured error handling for the code index.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, store)
//   - 3XX: Query errors
//   - 4XX: Search-source errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk and store I/O errors.
	CategoryIO Category = "IO"
	// CategoryQuery indicates query parsing and validation errors.
	CategoryQuery Category = "QUERY"
	// CategorySource indicates search-source (backend) errors.
	CategorySource Category = "SOURCE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeStoreOpen   = "ERR_201_STORE_OPEN"
	ErrCodeStoreLocked = "ERR_202_STORE_LOCKED"
	ErrCodeStoreWrite  = "ERR_203_STORE_WRITE"
	ErrCodeStoreRead   = "ERR_204_STORE_READ"

	// Query errors (300-399)
	ErrCodeQuerySyntax = "ERR_301_QUERY_SYNTAX"
	ErrCodeQueryEmpty  = "ERR_302_QUERY_EMPTY"

	// Search-source errors (400-499)
	ErrCodeSourceTimeout     = "ERR_401_SOURCE_TIMEOUT"
	ErrCodeSourceUnavailable = "ERR_402_SOURCE_UNAVAILABLE"
	ErrCodeSourceFailed      = "ERR_403_SOURCE_FAILED"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeIndexCorruption = "ERR_502_INDEX_CORRUPTION"
	ErrCodeEmbeddingFailed = "ERR_503_EMBEDDING_FAILED"
)

// categoryFromCode extracts the category from an error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryQuery
	case '4':
		return CategorySource
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on the error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreLocked:
		return SeverityFatal
	case ErrCodeSourceTimeout, ErrCodeSourceUnavailable, ErrCodeIndexCorruption:
		// Recovered locally: a degraded source or a dropped document
		// never fails the overall operation.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeSourceTimeout, ErrCodeSourceFailed:
		return true
	default:
		return false
	}
}
