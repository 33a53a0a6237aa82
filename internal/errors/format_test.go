package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeAliasDuplicate, `alias "g" already exists`, nil).
		WithSuggestion("Remove it first with 'amanlaunch alias rm g'")

	out := FormatForCLI(err)

	assert.Contains(t, out, `Error: alias "g" already exists`)
	assert.Contains(t, out, "Hint: Remove it first")
	assert.Contains(t, out, "Code: ERR_403_ALIAS_DUPLICATE")
}

func TestFormatForCLI_PlainError(t *testing.T) {
	out := FormatForCLI(errors.New("something broke"))

	assert.Contains(t, out, "Error: something broke")
	assert.Contains(t, out, "Code: ERR_501_INTERNAL")
	assert.NotContains(t, out, "Hint:")
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodeUnknownCandidate, "no such candidate", errors.New("cause")).
		WithDetail("id", "apps:x")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ERR_404_UNKNOWN_CANDIDATE", decoded["code"])
	assert.Equal(t, "VALIDATION", decoded["category"])
	assert.Equal(t, "cause", decoded["cause"])
	assert.Equal(t, map[string]any{"id": "apps:x"}, decoded["details"])
}

func TestLogAttrs(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
	assert.Len(t, LogAttrs(errors.New("x")), 1)

	err := New(ErrCodeSourceFailed, "apps failed", errors.New("io")).WithDetail("source", "apps")
	attrs := LogAttrs(err)
	assert.Len(t, attrs, 5)
}
