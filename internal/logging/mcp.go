package logging

import (
	"log/slog"
)

// SetupMCPMode installs a file-only default logger for the MCP server.
// Nothing may be written to stdout or stderr while the server runs, since
// stdout is the JSON-RPC stream and some clients merge stderr into it.
func SetupMCPMode(level string) (func(), error) {
	if level == "" {
		level = "info"
	}
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return cleanup, err
	}
	slog.SetDefault(logger)
	slog.Info("mcp_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}
