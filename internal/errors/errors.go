package errors

import (
	"errors"
	"fmt"
)

// ErrNilDependency is returned by constructors when a required collaborator is nil.
var ErrNilDependency = errors.New("required dependency is nil")

// LaunchError is the structured error type for amanlaunch.
// It carries enough context for logging and for CLI presentation.
type LaunchError struct {
	// Code is the unique error code (e.g., "ERR_403_ALIAS_DUPLICATE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// Is matches another LaunchError by code, so errors.Is works against
// code-only sentinels such as New(ErrCodeAliasDuplicate, "", nil).
func (e *LaunchError) Is(target error) bool {
	var t *LaunchError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *LaunchError) WithDetail(key, value string) *LaunchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *LaunchError) WithSuggestion(suggestion string) *LaunchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LaunchError. Category and severity derive from the code.
func New(code string, message string, cause error) *LaunchError {
	return &LaunchError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a LaunchError from an existing error, reusing its message.
func Wrap(code string, err error) *LaunchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *LaunchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a persisted-state error.
func StorageError(message string, cause error) *LaunchError {
	return New(ErrCodeStorageFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *LaunchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *LaunchError {
	return New(ErrCodeInternal, message, cause)
}

// GetCode extracts the error code from the first LaunchError in err's chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// GetCategory extracts the category from the first LaunchError in err's chain.
func GetCategory(err error) Category {
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Severity == SeverityFatal
	}
	return false
}
