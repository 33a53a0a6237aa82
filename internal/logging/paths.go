package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.amanlaunch/logs, or a temp directory when the
// home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanlaunch", "logs")
	}
	return filepath.Join(home, ".amanlaunch", "logs")
}

// DefaultLogPath returns the launcher log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "launcher.log")
}

// FindLogFile returns explicit if it exists, else the default log path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}
	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found at %s\nRun a command with --debug to create one", path)
	}
	return path, nil
}
