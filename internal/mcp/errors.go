// Package mcp exposes the launcher engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"errors"
	"fmt"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

// Custom MCP error codes for amanlaunch.
const (
	// ErrCodeUnknownCandidate indicates the selected id is not in the last results.
	ErrCodeUnknownCandidate = -32001

	// ErrCodeActionFailed indicates the candidate's action could not be carried out.
	ErrCodeActionFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeStorage indicates persisted state could not be read or written.
	ErrCodeStorage = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
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

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var le *lerrors.LaunchError
	if errors.As(err, &le) {
		return mapLaunchError(le)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: "Invalid parameters."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapLaunchError(le *lerrors.LaunchError) *MCPError {
	message := le.Message
	if le.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", le.Message, le.Suggestion)
	}

	switch le.Code {
	case lerrors.ErrCodeUnknownCandidate:
		return &MCPError{Code: ErrCodeUnknownCandidate, Message: message}
	case lerrors.ErrCodeActionFailed:
		return &MCPError{Code: ErrCodeActionFailed, Message: message}
	case lerrors.ErrCodeSourceTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	}

	switch le.Category {
	case lerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case lerrors.CategoryStorage:
		return &MCPError{Code: ErrCodeStorage, Message: message}
	default: // config, internal and unknown
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
