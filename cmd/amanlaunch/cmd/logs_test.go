package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amanlaunch.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestLogsCmd_TailsFile(t *testing.T) {
	// Given: a log with two entries
	newTestEnv(t, "")
	path := writeLog(t,
		`{"time":"2026-03-10T12:00:00Z","level":"INFO","msg":"turn_delivered","outcome":"completed"}`,
		`{"time":"2026-03-10T12:00:01Z","level":"WARN","msg":"source_timeout","source":"files"}`,
	)

	// When: showing the last line
	out, err := execute(t, "logs", "--file", path, "-n", "1", "--no-color")

	// Then: only the newest entry is printed after the header
	require.NoError(t, err)
	assert.Contains(t, out, "Log file: "+path)
	assert.Contains(t, out, "source_timeout")
	assert.NotContains(t, out, "turn_delivered")
}

func TestLogsCmd_LevelFilter(t *testing.T) {
	newTestEnv(t, "")
	path := writeLog(t,
		`{"time":"2026-03-10T12:00:00Z","level":"INFO","msg":"turn_delivered"}`,
		`{"time":"2026-03-10T12:00:01Z","level":"ERROR","msg":"ledger_write_failed"}`,
	)

	out, err := execute(t, "logs", "--file", path, "--level", "warn")

	require.NoError(t, err)
	assert.Contains(t, out, "ledger_write_failed")
	assert.NotContains(t, out, "turn_delivered")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	newTestEnv(t, "")

	_, err := execute(t, "logs", "--file", filepath.Join(t.TempDir(), "nope.log"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")
}

func TestLogsCmd_InvalidFilter(t *testing.T) {
	newTestEnv(t, "")
	path := writeLog(t, `{"time":"2026-03-10T12:00:00Z","level":"INFO","msg":"x"}`)

	_, err := execute(t, "logs", "--file", path, "--filter", "([")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
