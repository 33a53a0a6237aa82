package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testConfig is a small, deterministic setup: two apps, one quicklink, no
// desktop scan and no file watching.
const testConfig = `
sources:
  apps:
    scan_desktop: false
    entries:
      - {id: firefox, name: Firefox, exec: firefox}
      - {id: term, name: Terminal, exec: foot}
  files:
    watch: false
quicklinks:
  - {id: gh, title: GitHub, url: "https://github.com"}
`

type testEnv struct {
	configPath string
	dataDir    string
	filesDir   string
}

// newTestEnv isolates config, data and home directories. An empty
// configYAML leaves the user config file absent.
func newTestEnv(t *testing.T, configYAML string) testEnv {
	t.Helper()

	xdg := t.TempDir()
	env := testEnv{
		configPath: filepath.Join(xdg, "amanlaunch", "config.yaml"),
		dataDir:    t.TempDir(),
		filesDir:   t.TempDir(),
	}
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AMANLAUNCH_DATA_DIR", env.dataDir)
	t.Setenv("AMANLAUNCH_FILES_ROOTS", env.filesDir)
	t.Setenv("AMANLAUNCH_USAGE_BACKEND", "sqlite")
	t.Setenv("NO_COLOR", "1")

	for _, name := range []string{"notes.txt", "report.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(env.filesDir, name), []byte("x"), 0o644))
	}
	if configYAML != "" {
		require.NoError(t, os.MkdirAll(filepath.Dir(env.configPath), 0o755))
		require.NoError(t, os.WriteFile(env.configPath, []byte(configYAML), 0o644))
	}
	return env
}

// execute runs the root command with args and returns everything written.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}
