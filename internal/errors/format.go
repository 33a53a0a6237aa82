package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// asLaunchError returns err as a LaunchError, wrapping plain errors as internal.
func asLaunchError(err error) *LaunchError {
	var le *LaunchError
	if errors.As(err, &le) {
		return le
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	le := asLaunchError(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", le.Message)
	if le.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", le.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", le.Code)
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error, used by
// `--format json` CLI output and MCP tool errors.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	le := asLaunchError(err)

	je := jsonError{
		Code:       le.Code,
		Message:    le.Message,
		Category:   string(le.Category),
		Severity:   string(le.Severity),
		Details:    le.Details,
		Suggestion: le.Suggestion,
	}
	if le.Cause != nil {
		je.Cause = le.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs returns slog attributes describing err.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	var le *LaunchError
	if !errors.As(err, &le) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", le.Code),
		slog.String("error", le.Message),
		slog.String("severity", string(le.Severity)),
	}
	if le.Cause != nil {
		attrs = append(attrs, slog.String("cause", le.Cause.Error()))
	}
	for k, v := range le.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return attrs
}
