package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup_MissingFile(t *testing.T) {
	path, err := Backup(filepath.Join(t.TempDir(), "config.yaml"))

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackup_CopiesAndPrunes(t *testing.T) {
	// Given: an existing config file
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	// When: backing it up more than MaxBackups times
	var made []string
	for i := 0; i < MaxBackups+2; i++ {
		b, err := Backup(path)
		require.NoError(t, err)
		made = append(made, b)
		time.Sleep(5 * time.Millisecond)
	}

	// Then: only the newest MaxBackups remain, newest first
	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, made[len(made)-1], backups[0])

	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))
	backup, err := Backup(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("new\n"), 0o644))

	require.NoError(t, Restore(path, backup))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data))
}

func TestRestore_MissingBackup(t *testing.T) {
	err := Restore(filepath.Join(t.TempDir(), "config.yaml"), "/nonexistent/backup")

	assert.Error(t, err)
}
