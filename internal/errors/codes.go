// Package errors provides structured error handling for amanlaunch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage and file errors
//   - 4XX: Validation errors
//   - 5XX: Internal and source errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates persisted state and file errors.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Storage errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeStateCorrupt    = "ERR_203_STATE_CORRUPT"
	ErrCodeStorageFailed   = "ERR_204_STORAGE_FAILED"
	ErrCodeLockUnavailable = "ERR_205_LOCK_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeAliasKeyInvalid  = "ERR_402_ALIAS_KEY_INVALID"
	ErrCodeAliasDuplicate   = "ERR_403_ALIAS_DUPLICATE"
	ErrCodeUnknownCandidate = "ERR_404_UNKNOWN_CANDIDATE"
	ErrCodeUnknownSource    = "ERR_405_UNKNOWN_SOURCE"
	ErrCodeUnknownTarget    = "ERR_406_UNKNOWN_TARGET"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeSourceFailed  = "ERR_502_SOURCE_FAILED"
	ErrCodeSourceTimeout = "ERR_503_SOURCE_TIMEOUT"
	ErrCodeSourcePanic   = "ERR_504_SOURCE_PANIC"
	ErrCodeActionFailed  = "ERR_505_ACTION_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigPermission, ErrCodeFilePermission:
		return SeverityFatal
	case ErrCodeStateCorrupt, ErrCodeSourceTimeout, ErrCodeSourceFailed, ErrCodeSourcePanic:
		// Degraded: the turn or session continues with empty state.
		return SeverityWarning
	}
	return SeverityError
}
